package analytics

import "time"

type EventType string

const (
	EventRank       EventType = "rank"
	EventZeroResult EventType = "zero_result"
)

// RankEvent describes one completed rank request.
type RankEvent struct {
	Type        EventType `json:"type"`
	Terms       []string  `json:"terms"`
	Capacity    int       `json:"capacity"`
	LinesRead   int       `json:"lines_read"`
	LinesScored int       `json:"lines_scored"`
	Returned    int       `json:"returned"`
	TopScore    float64   `json:"top_score"`
	LatencyMs   int64     `json:"latency_ms"`
	CacheHit    bool      `json:"cache_hit"`
	Timestamp   time.Time `json:"timestamp"`
	RequestID   string    `json:"request_id,omitempty"`
}
