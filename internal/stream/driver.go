// Package stream feeds lines from a reader through the scorer and into a
// ranked set, one line at a time.
package stream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/linerank/internal/ranker"
	"github.com/Adithya-Monish-Kumar-K/linerank/internal/scorer"
	"github.com/Adithya-Monish-Kumar-K/linerank/pkg/logger"
)

const readBufferSize = 4096

// Options controls line reading. MaxLineBytes of 0 disables truncation.
type Options struct {
	MaxLineBytes int
}

// Stats counts what happened to the lines of one run.
type Stats struct {
	LinesRead      int `json:"lines_read"`
	LinesScored    int `json:"lines_scored"`
	LinesAdmitted  int `json:"lines_admitted"`
	EmptySkipped   int `json:"empty_skipped"`
	LinesTruncated int `json:"lines_truncated"`
}

// Result is the outcome of a run: the final ranking and the counters.
type Result struct {
	Ranked []scorer.ScoredLine
	Stats  Stats
}

// VisitFunc is called for every scored line after it was offered to the
// ranked set.
type VisitFunc func(line scorer.ScoredLine, admitted bool)

type Driver struct {
	scorer *scorer.Scorer
	opts   Options
	logger *slog.Logger
}

func New(s *scorer.Scorer, opts Options) *Driver {
	return &Driver{
		scorer: s,
		opts:   opts,
		logger: logger.WithComponent("stream-driver"),
	}
}

// Run reads r until EOF. Lines end at '\n' or EOF and every '\r' is dropped.
// Lines are numbered from 1; empty lines keep their number but are neither
// scored nor ranked. visit may be nil.
func (d *Driver) Run(ctx context.Context, r io.Reader, ranked *ranker.RankedSet, visit VisitFunc) (Result, error) {
	br := bufio.NewReaderSize(r, readBufferSize)
	var (
		stats Stats
		buf   []byte
		seq   int
	)
	for {
		if err := ctx.Err(); err != nil {
			return Result{Stats: stats}, fmt.Errorf("stream cancelled after %d lines: %w", stats.LinesRead, err)
		}
		var (
			truncated bool
			eof       bool
			err       error
		)
		buf, truncated, eof, err = d.readLine(br, buf[:0])
		if err != nil {
			return Result{Stats: stats}, fmt.Errorf("reading line %d: %w", seq+1, err)
		}
		if eof && len(buf) == 0 && !truncated {
			break
		}
		seq++
		stats.LinesRead++
		if truncated {
			stats.LinesTruncated++
			d.logger.Warn("line truncated", "line", seq, "max_bytes", d.opts.MaxLineBytes)
		}
		if len(buf) == 0 {
			stats.EmptySkipped++
		} else {
			line := d.scorer.Line(seq, string(buf))
			stats.LinesScored++
			admitted := ranked.Admit(line)
			if admitted {
				stats.LinesAdmitted++
			}
			d.logger.Debug("line scored",
				"line", line.Sequence,
				"words", line.WordCount,
				"score", line.Score,
				"admitted", admitted,
			)
			if visit != nil {
				visit(line, admitted)
			}
		}
		if eof {
			break
		}
	}
	d.logger.Debug("stream exhausted",
		"lines_read", stats.LinesRead,
		"lines_scored", stats.LinesScored,
		"lines_admitted", stats.LinesAdmitted,
	)
	return Result{Ranked: ranked.Finalize(), Stats: stats}, nil
}

// readLine appends the next line to buf without its terminator or any '\r'.
// Bytes past MaxLineBytes are consumed and dropped.
func (d *Driver) readLine(br *bufio.Reader, buf []byte) (line []byte, truncated, eof bool, err error) {
	for {
		chunk, readErr := br.ReadSlice('\n')
		for _, c := range chunk {
			if c == '\n' || c == '\r' {
				continue
			}
			if d.opts.MaxLineBytes > 0 && len(buf) >= d.opts.MaxLineBytes {
				truncated = true
				continue
			}
			buf = append(buf, c)
		}
		switch {
		case readErr == nil:
			return buf, truncated, false, nil
		case errors.Is(readErr, bufio.ErrBufferFull):
			continue
		case errors.Is(readErr, io.EOF):
			return buf, truncated, true, nil
		default:
			return buf, truncated, false, readErr
		}
	}
}
