package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/linerank/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/linerank/internal/query"
	"github.com/Adithya-Monish-Kumar-K/linerank/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/linerank/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/linerank/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/linerank/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/linerank/pkg/middleware"
)

// Tracker receives one event per completed rank request.
type Tracker interface {
	Track(event analytics.RankEvent)
}

// RankRequest is the body of POST /api/v1/rank.
type RankRequest struct {
	Query        []string `json:"query"`
	Text         string   `json:"text"`
	Limit        int      `json:"limit"`
	IncludeLines bool     `json:"include_lines"`
}

type Handler struct {
	engine  *Engine
	cache   *ResultCache
	tracker Tracker
	metrics *metrics.Metrics
	ranking config.RankingConfig
	maxBody int64
	logger  *slog.Logger
}

// New wires the rank handlers. cache, tracker and m may be nil.
func New(engine *Engine, cache *ResultCache, tracker Tracker, m *metrics.Metrics, ranking config.RankingConfig, maxBody int64) *Handler {
	return &Handler{
		engine:  engine,
		cache:   cache,
		tracker: tracker,
		metrics: m,
		ranking: ranking,
		maxBody: maxBody,
		logger:  logger.WithComponent("rank-handler"),
	}
}

func (h *Handler) Rank(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	var req RankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		h.fail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Query) == 0 {
		h.fail(w, http.StatusBadRequest, "query must contain at least one word")
		return
	}
	q, err := query.New(req.Query)
	if err != nil {
		h.failErr(w, err)
		return
	}

	capacity := h.ranking.Capacity
	if req.Limit != 0 {
		capacity = req.Limit
	}
	if capacity > h.ranking.MaxCapacity {
		capacity = h.ranking.MaxCapacity
	}
	if capacity < 1 {
		h.fail(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	compute := func(ctx context.Context) (*Result, error) {
		return h.engine.Rank(ctx, q, capacity, req.Text, req.IncludeLines)
	}
	var result *Result
	cacheHit := false
	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, Key(q.Terms(), capacity, req.IncludeLines, req.Text), compute)
	} else {
		result, err = compute(ctx)
	}
	if err != nil && ctx.Err() != nil {
		log.Info("rank abandoned by client", "query", q.String(), "error", ctx.Err())
		if h.metrics != nil {
			h.metrics.RankRequestsTotal.WithLabelValues("cancelled").Inc()
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			h.writeError(w, http.StatusGatewayTimeout, "request timeout")
		} else {
			h.writeError(w, http.StatusServiceUnavailable, "request cancelled")
		}
		return
	}
	if err != nil {
		log.Error("rank failed", "query", q.String(), "error", err)
		h.failErr(w, err)
		return
	}

	latency := time.Since(start)
	log.Info("rank completed",
		"query", q.String(),
		"capacity", capacity,
		"lines_read", result.Stats.LinesRead,
		"returned", len(result.Ranked),
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)

	eventType := analytics.EventRank
	resultType := "ok"
	if len(result.Ranked) == 0 {
		eventType = analytics.EventZeroResult
		resultType = "zero_result"
	}
	if h.metrics != nil {
		cacheStatus := "miss"
		if cacheHit {
			cacheStatus = "hit"
			h.metrics.CacheHitsTotal.Inc()
		} else if h.cache != nil {
			h.metrics.CacheMissesTotal.Inc()
		} else {
			cacheStatus = "disabled"
		}
		h.metrics.RankRequestsTotal.WithLabelValues(resultType).Inc()
		h.metrics.RankLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
	}
	if h.tracker != nil {
		var top float64
		if len(result.Ranked) > 0 {
			top = result.Ranked[0].Score
		}
		h.tracker.Track(analytics.RankEvent{
			Type:        eventType,
			Terms:       result.Query,
			Capacity:    capacity,
			LinesRead:   result.Stats.LinesRead,
			LinesScored: result.Stats.LinesScored,
			Returned:    len(result.Ranked),
			TopScore:    top,
			LatencyMs:   latency.Milliseconds(),
			CacheHit:    cacheHit,
			Timestamp:   time.Now().UTC(),
			RequestID:   middleware.GetRequestID(ctx),
		})
	}

	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

// fail answers a request rejected before ranking and counts it as invalid.
func (h *Handler) fail(w http.ResponseWriter, status int, message string) {
	if h.metrics != nil {
		h.metrics.RankRequestsTotal.WithLabelValues("invalid").Inc()
	}
	h.writeError(w, status, message)
}

func (h *Handler) failErr(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		if h.metrics != nil {
			h.metrics.RankRequestsTotal.WithLabelValues("error").Inc()
		}
		h.writeError(w, status, "rank failed")
		return
	}
	h.fail(w, status, err.Error())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
