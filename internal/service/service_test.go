package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Adithya-Monish-Kumar-K/linerank/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/linerank/internal/query"
	"github.com/Adithya-Monish-Kumar-K/linerank/internal/stream"
	"github.com/Adithya-Monish-Kumar-K/linerank/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/linerank/pkg/metrics"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string][]byte)}
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, goredis.Nil
	}
	return v, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.sets++
	return nil
}

func (m *memoryStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

type recordingTracker struct {
	events []analytics.RankEvent
}

func (r *recordingTracker) Track(e analytics.RankEvent) {
	r.events = append(r.events, e)
}

const scenarioText = "The cat sat on the mat\nDogs bark\nthe cat the cat the cat\n"

func newTestHandler(t *testing.T, cache *ResultCache, tracker Tracker) (*Handler, *metrics.Metrics) {
	t.Helper()
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	engine := NewEngine(stream.Options{MaxLineBytes: 1000}, m)
	ranking := config.RankingConfig{Capacity: 5, MaxCapacity: 10}
	return New(engine, cache, tracker, m, ranking, 1<<16), m
}

func postRank(t *testing.T, h *Handler, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatal(err)
	}
	rec := httptest.NewRecorder()
	h.Rank(rec, httptest.NewRequest(http.MethodPost, "/api/v1/rank", &buf))
	return rec
}

func TestEngineRank(t *testing.T) {
	q, err := query.New([]string{"the", "cat"})
	if err != nil {
		t.Fatal(err)
	}
	res, err := NewEngine(stream.Options{}, nil).Rank(context.Background(), q, 5, scenarioText, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Ranked) != 2 || res.Ranked[0].Sequence != 3 || res.Ranked[1].Sequence != 1 {
		t.Errorf("Ranked = %+v", res.Ranked)
	}
	if strings.Join(res.Query, " ") != "the cat" {
		t.Errorf("Query = %v", res.Query)
	}
	if len(res.Lines) != 3 || res.Stats.LinesRead != 3 {
		t.Errorf("Lines = %d, Stats = %+v", len(res.Lines), res.Stats)
	}
}

func TestRankHandler(t *testing.T) {
	tracker := &recordingTracker{}
	h, m := newTestHandler(t, nil, tracker)

	rec := postRank(t, h, RankRequest{Query: []string{"the", "cat"}, Text: scenarioText})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var res Result
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.Capacity != 5 || len(res.Ranked) != 2 || res.Ranked[0].Sequence != 3 {
		t.Errorf("result = %+v", res)
	}
	if res.Lines != nil {
		t.Errorf("lines returned without include_lines: %+v", res.Lines)
	}
	if len(tracker.events) != 1 || tracker.events[0].Type != analytics.EventRank || tracker.events[0].Returned != 2 {
		t.Errorf("events = %+v", tracker.events)
	}
	if got := testutil.ToFloat64(m.RankRequestsTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("rank_requests_total{ok} = %v", got)
	}
}

func TestRankHandlerRejectsBadRequests(t *testing.T) {
	h, m := newTestHandler(t, nil, nil)
	tests := []struct {
		name string
		body any
		want int
	}{
		{"malformed json", "{", http.StatusBadRequest},
		{"no query", RankRequest{Text: "x"}, http.StatusBadRequest},
		{"invalid term", RankRequest{Query: []string{"Cat"}, Text: "x"}, http.StatusBadRequest},
		{"negative limit", RankRequest{Query: []string{"cat"}, Limit: -1}, http.StatusBadRequest},
		{"too large", `{"query":["a"],"text":"` + strings.Repeat("a", 1<<16) + `"}`, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postRank(t, h, tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
	if got := testutil.ToFloat64(m.RankRequestsTotal.WithLabelValues("invalid")); got != float64(len(tests)) {
		t.Errorf("rank_requests_total{invalid} = %v, want %d", got, len(tests))
	}
}

func TestRankHandlerClampsLimit(t *testing.T) {
	h, _ := newTestHandler(t, nil, nil)
	rec := postRank(t, h, RankRequest{Query: []string{"a"}, Text: "a", Limit: 500})
	var res Result
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.Capacity != 10 {
		t.Errorf("Capacity = %d, want clamp to 10", res.Capacity)
	}
}

func TestRankHandlerZeroResult(t *testing.T) {
	tracker := &recordingTracker{}
	h, _ := newTestHandler(t, nil, tracker)
	rec := postRank(t, h, RankRequest{Query: []string{"zebra"}, Text: scenarioText})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ranked":[]`) {
		t.Errorf("body = %s, want empty ranked list", rec.Body.String())
	}
	if tracker.events[0].Type != analytics.EventZeroResult {
		t.Errorf("event type = %q", tracker.events[0].Type)
	}
}

func TestRankHandlerCaches(t *testing.T) {
	store := newMemoryStore()
	cache := NewResultCache(store, time.Minute)
	h, m := newTestHandler(t, cache, nil)

	req := RankRequest{Query: []string{"the", "cat"}, Text: scenarioText, IncludeLines: true}
	first := postRank(t, h, req)
	second := postRank(t, h, req)
	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("status = %d, %d", first.Code, second.Code)
	}
	if first.Body.String() != second.Body.String() {
		t.Errorf("cached body differs:\n%s\n%s", first.Body.String(), second.Body.String())
	}
	if hits, misses := cache.Stats(); hits != 1 || misses != 1 {
		t.Errorf("cache stats = %d hits, %d misses", hits, misses)
	}
	if store.sets != 1 {
		t.Errorf("store sets = %d, want 1", store.sets)
	}
	if got := testutil.ToFloat64(m.CacheHitsTotal); got != 1 {
		t.Errorf("cache_hits_total = %v", got)
	}

	rec := httptest.NewRecorder()
	h.CacheInvalidate(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"keys_deleted":1`) {
		t.Errorf("invalidate = %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.CacheStats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil))
	if !strings.Contains(rec.Body.String(), `"hit_rate":"50.0%"`) {
		t.Errorf("stats = %s", rec.Body.String())
	}
}

func TestCacheEndpointsWithoutCache(t *testing.T) {
	h, _ := newTestHandler(t, nil, nil)
	rec := httptest.NewRecorder()
	h.CacheInvalidate(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("invalidate status = %d, want 503", rec.Code)
	}
	rec = httptest.NewRecorder()
	h.CacheStats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil))
	if !strings.Contains(rec.Body.String(), "disabled") {
		t.Errorf("stats = %s", rec.Body.String())
	}
}

func TestKeyDistinguishesRequests(t *testing.T) {
	base := Key([]string{"the", "cat"}, 5, false, "text")
	variants := []string{
		Key([]string{"cat", "the"}, 5, false, "text"),
		Key([]string{"the", "cat"}, 4, false, "text"),
		Key([]string{"the", "cat"}, 5, true, "text"),
		Key([]string{"the", "cat"}, 5, false, "text!"),
	}
	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d collides with base key", i)
		}
	}
	if !strings.HasPrefix(base, keyPrefix) {
		t.Errorf("key %q lacks prefix", base)
	}
}

func TestGetOrComputeCollapsesConcurrentMisses(t *testing.T) {
	cache := NewResultCache(newMemoryStore(), time.Minute)
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex
	compute := func(context.Context) (*Result, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		<-release
		return &Result{Capacity: 1}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := cache.GetOrCompute(context.Background(), "linerank:k", compute); err != nil {
				t.Error(err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls != 1 {
		t.Errorf("compute ran %d times, want 1", calls)
	}
}

type failingStore struct {
	mu    sync.Mutex
	calls int
}

func (f *failingStore) Get(context.Context, string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil, errors.New("connection refused")
}

func (f *failingStore) Set(context.Context, string, []byte, time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return errors.New("connection refused")
}

func (f *failingStore) FlushByPattern(context.Context, string) (int64, error) {
	return 0, errors.New("connection refused")
}

func TestResultCacheStopsCallingFailingStore(t *testing.T) {
	store := &failingStore{}
	cache := NewResultCache(store, time.Minute)
	for i := 0; i < 10; i++ {
		if _, ok := cache.Get(context.Background(), "linerank:k"); ok {
			t.Fatal("hit from failing store")
		}
	}
	if store.calls != 5 {
		t.Errorf("store called %d times, want breaker to stop after 5", store.calls)
	}
	if _, misses := cache.Stats(); misses != 10 {
		t.Errorf("misses = %d, want 10", misses)
	}
}

func TestGetOrComputeSurvivesLeaderCancel(t *testing.T) {
	cache := NewResultCache(newMemoryStore(), time.Minute)
	var once sync.Once
	started := make(chan struct{})
	release := make(chan struct{})
	compute := func(ctx context.Context) (*Result, error) {
		once.Do(func() { close(started) })
		select {
		case <-release:
			return &Result{Capacity: 2}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, _, err := cache.GetOrCompute(leaderCtx, "linerank:k", compute)
		leaderErr <- err
	}()
	<-started

	var got *Result
	followerErr := make(chan error, 1)
	go func() {
		res, _, err := cache.GetOrCompute(context.Background(), "linerank:k", compute)
		got = res
		followerErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancelLeader()
	if err := <-leaderErr; !errors.Is(err, context.Canceled) {
		t.Errorf("leader error = %v, want context.Canceled", err)
	}
	close(release)
	if err := <-followerErr; err != nil {
		t.Fatalf("follower error = %v", err)
	}
	if got == nil || got.Capacity != 2 {
		t.Errorf("follower result = %+v", got)
	}
}

func TestRankHandlerCancelledRequest(t *testing.T) {
	h, m := newTestHandler(t, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(RankRequest{Query: []string{"cat"}, Text: scenarioText}); err != nil {
		t.Fatal(err)
	}
	rec := httptest.NewRecorder()
	h.Rank(rec, httptest.NewRequest(http.MethodPost, "/api/v1/rank", &buf).WithContext(ctx))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if got := testutil.ToFloat64(m.RankRequestsTotal.WithLabelValues("cancelled")); got != 1 {
		t.Errorf("rank_requests_total{cancelled} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RankRequestsTotal.WithLabelValues("error")); got != 0 {
		t.Errorf("rank_requests_total{error} = %v, want 0", got)
	}
}
