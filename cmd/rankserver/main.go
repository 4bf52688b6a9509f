// Command rankserver serves the line ranking engine over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/linerank/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/linerank/internal/ranker"
	"github.com/Adithya-Monish-Kumar-K/linerank/internal/service"
	"github.com/Adithya-Monish-Kumar-K/linerank/internal/stream"
	"github.com/Adithya-Monish-Kumar-K/linerank/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/linerank/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/linerank/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/linerank/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/linerank/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/linerank/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/linerank/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/linerank/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting rank service",
		"port", cfg.Server.Port,
		"capacity", cfg.Ranking.Capacity,
		"max_capacity", cfg.Ranking.MaxCapacity,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg); err != nil {
		slog.Error("rank service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("rank service stopped")
}

func serve(ctx context.Context, cfg *config.Config) error {
	m := metrics.New()

	var cache *service.ResultCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		var client *pkgredis.Client
		err := resilience.Retry(ctx, "redis-connect", resilience.Backoff{Attempts: 3}, func(ctx context.Context) error {
			c, err := pkgredis.NewClient(ctx, cfg.Redis)
			if err != nil {
				return err
			}
			client = c
			return nil
		})
		if err != nil {
			slog.Warn("redis unavailable, rank caching disabled", "error", err)
		} else {
			redisClient = client
			defer redisClient.Close()
			cache = service.NewResultCache(redisClient, cfg.Redis.CacheTTL)
			slog.Info("rank cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var tracker service.Tracker
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.RankEvents)
		defer producer.Close()
		collector := startCollector(ctx, producer, m)
		defer collector.Close()
		tracker = collector
		slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.RankEvents)
	}

	checker := health.NewChecker()
	checker.Register("ranker", func(ctx context.Context) health.ComponentHealth {
		if _, err := ranker.New(cfg.Ranking.Capacity); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusUp, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	engine := service.NewEngine(stream.Options{MaxLineBytes: cfg.Input.MaxLineBytes}, m)
	h := service.New(engine, cache, tracker, m, cfg.Ranking, cfg.Input.MaxBodyBytes)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/rank", h.Rank)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", metrics.Handler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("rank service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listening on %s: %w", server.Addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// startCollector runs the analytics collector detached from ctx. Events
// tracked while the server drains are kept; the collector stops on Close.
func startCollector(ctx context.Context, pub analytics.Publisher, m *metrics.Metrics) *analytics.Collector {
	collector := analytics.NewCollector(pub, 10000, 100, 5*time.Second)
	collector.OnDrop = m.EventsDroppedTotal.Inc
	collector.Start(context.WithoutCancel(ctx))
	return collector
}
