// Package service exposes the ranking engine over HTTP: it validates a rank
// request, runs the stream driver over the request text, and caches results.
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/linerank/internal/query"
	"github.com/Adithya-Monish-Kumar-K/linerank/internal/ranker"
	"github.com/Adithya-Monish-Kumar-K/linerank/internal/scorer"
	"github.com/Adithya-Monish-Kumar-K/linerank/internal/stream"
	apperrors "github.com/Adithya-Monish-Kumar-K/linerank/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/linerank/pkg/metrics"
)

// Result is the outcome of ranking one text.
type Result struct {
	Query    []string            `json:"query"`
	Capacity int                 `json:"capacity"`
	Ranked   []scorer.ScoredLine `json:"ranked"`
	Lines    []scorer.ScoredLine `json:"lines,omitempty"`
	Stats    stream.Stats        `json:"stats"`
}

// Engine runs one ranking pass per call; it holds no per-request state.
type Engine struct {
	opts    stream.Options
	metrics *metrics.Metrics
}

// NewEngine creates an Engine. m may be nil.
func NewEngine(opts stream.Options, m *metrics.Metrics) *Engine {
	return &Engine{opts: opts, metrics: m}
}

// Rank scores every line of text against q and keeps the best capacity
// lines. With includeLines the per-line records are returned as well.
func (e *Engine) Rank(ctx context.Context, q *query.Set, capacity int, text string, includeLines bool) (*Result, error) {
	ranked, err := ranker.New(capacity)
	if err != nil {
		return nil, err
	}
	var lines []scorer.ScoredLine
	visit := func(line scorer.ScoredLine, _ bool) {
		if e.metrics != nil {
			e.metrics.LineScore.Observe(line.Score)
		}
		if includeLines {
			lines = append(lines, line)
		}
	}
	sc := scorer.New(q)
	res, err := stream.New(sc, e.opts).Run(ctx, strings.NewReader(text), ranked, visit)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: ranking text: %v", apperrors.ErrInternal, err)
	}
	if e.metrics != nil {
		e.metrics.ObserveRun(res.Stats)
	}
	return &Result{
		Query:    sc.Query().Terms(),
		Capacity: capacity,
		Ranked:   res.Ranked,
		Lines:    lines,
		Stats:    res.Stats,
	}, nil
}
