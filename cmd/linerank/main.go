// Command linerank reads lines from stdin, scores each against the query
// words given as arguments, and prints the best-scoring lines.
//
//	linerank [-config file] [-n capacity] [-quiet] [-metrics-port port] word...
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/linerank/internal/query"
	"github.com/Adithya-Monish-Kumar-K/linerank/internal/ranker"
	"github.com/Adithya-Monish-Kumar-K/linerank/internal/report"
	"github.com/Adithya-Monish-Kumar-K/linerank/internal/scorer"
	"github.com/Adithya-Monish-Kumar-K/linerank/internal/stream"
	"github.com/Adithya-Monish-Kumar-K/linerank/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/linerank/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/linerank/pkg/metrics"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("linerank", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to YAML config file")
	capacity := fs.Int("n", 0, "number of lines to report (overrides ranking.capacity)")
	quiet := fs.Bool("quiet", false, "only print the final ranking")
	metricsPort := fs.Int("metrics-port", 0, "serve Prometheus metrics on this port while running")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Read(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return 1
	}
	if *capacity != 0 {
		cfg.Ranking.Capacity = *capacity
		// maxCapacity only bounds HTTP requests.
		cfg.Ranking.MaxCapacity = max(cfg.Ranking.MaxCapacity, *capacity)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "invalid config: %v\n", err)
		return 1
	}
	logger.SetupWriter(stderr, cfg.Logging.Level, cfg.Logging.Format)

	out := bufio.NewWriter(stdout)
	defer out.Flush()
	rep := report.New(out)

	terms := fs.Args()
	var invalid []string
	for _, term := range terms {
		if !query.Validate(term) {
			invalid = append(invalid, term)
		}
	}
	rep.Query(terms, invalid)
	if len(terms) == 0 || len(invalid) > 0 {
		return 1
	}
	q, err := query.New(terms)
	if err != nil {
		slog.Error("building query", "error", err)
		return 1
	}
	ranked, err := ranker.New(cfg.Ranking.Capacity)
	if err != nil {
		slog.Error("creating ranked set", "error", err)
		return 1
	}

	port := *metricsPort
	if port == 0 && cfg.Metrics.Enabled {
		port = cfg.Metrics.Port
	}
	var m *metrics.Metrics
	if port > 0 {
		m = metrics.New()
		shutdown := metrics.StartServer(port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			shutdown(shutdownCtx)
		}()
	}

	driver := stream.New(scorer.New(q), stream.Options{MaxLineBytes: cfg.Input.MaxLineBytes})
	res, err := driver.Run(ctx, stdin, ranked, func(line scorer.ScoredLine, _ bool) {
		if !*quiet {
			rep.Line(line)
		}
		if m != nil {
			m.LineScore.Observe(line.Score)
		}
	})
	if err != nil {
		slog.Error("reading input", "error", err)
		return 1
	}
	if m != nil {
		m.ObserveRun(res.Stats)
	}
	rep.Ranking(res.Ranked)
	if err := rep.Err(); err != nil {
		slog.Error("writing report", "error", err)
		return 1
	}
	if err := out.Flush(); err != nil {
		slog.Error("flushing report", "error", err)
		return 1
	}
	slog.Debug("run complete",
		"query", q.String(),
		"lines_read", res.Stats.LinesRead,
		"lines_admitted", res.Stats.LinesAdmitted,
		"reported", len(res.Ranked),
	)
	return 0
}
