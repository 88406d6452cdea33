package health

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Vodeneev/evledger/internal/pipeline"
	"github.com/Vodeneev/evledger/internal/pkg/enums"
	"github.com/Vodeneev/evledger/internal/pkg/health/handlers"
	"github.com/Vodeneev/evledger/internal/pkg/metrics"
	"github.com/Vodeneev/evledger/internal/pkg/models"
	"github.com/Vodeneev/evledger/internal/pkg/performance"
	"github.com/Vodeneev/evledger/internal/pkg/storage"
	"github.com/Vodeneev/evledger/internal/resolver"
)

const validBatch = `[{
	"bookmaker": "PrizePicks", "league": "NBA", "market_domain": "PlayerProps",
	"market": "Points", "subject": "LeBron James", "label": "Over",
	"line": 25.5, "odds": 2.0,
	"game": {"_id": "NBA_20250128_LAL@PHI", "away_team": "LAL", "home_team": "PHI", "game_time": "2025-01-28 19:30:00"}
}]`

type fakeRunner struct {
	mu   sync.Mutex
	runs int
	last *pipeline.RunStats
}

func (f *fakeRunner) RunOnce(context.Context) (pipeline.RunStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs++
	f.last = &pipeline.RunStats{RunID: "run-1", Stored: 3}
	return *f.last, nil
}

func (f *fakeRunner) LastRun() (pipeline.RunStats, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.last == nil {
		return pipeline.RunStats{}, false
	}
	return *f.last, true
}

type fakeCache struct {
	lines []models.StoredBettingLine
	hits  int
}

func (c *fakeCache) PutLatest(_ context.Context, lines []models.StoredBettingLine) error {
	c.lines = lines
	return nil
}

func (c *fakeCache) Latest(_ context.Context, q storage.LineQuery) ([]models.StoredBettingLine, bool, error) {
	if c.lines == nil {
		return nil, false, nil
	}
	c.hits++
	var out []models.StoredBettingLine
	for i := range c.lines {
		if q.Matches(&c.lines[i]) {
			out = append(out, c.lines[i])
		}
	}
	return out, true, nil
}

func (c *fakeCache) Close() error { return nil }

type testServer struct {
	srv    *httptest.Server
	store  *storage.MemoryLineStore
	cache  *fakeCache
	runner *fakeRunner
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.RecordCollected(3)

	registry := resolver.NewRegistry()
	registry.Add(models.CanonicalEntity{Kind: enums.KindSubject, Domain: "NBA", CanonicalName: "LeBron James"})
	registry.Add(models.CanonicalEntity{Kind: enums.KindSubject, Domain: "NFL", CanonicalName: "Patrick Mahomes"})

	ts := &testServer{
		store:  storage.NewMemoryLineStore(),
		cache:  &fakeCache{},
		runner: &fakeRunner{},
	}
	ts.srv = httptest.NewServer(NewRouter(Options{
		Service:  "evledger",
		Store:    ts.store,
		Cache:    ts.cache,
		Registry: registry,
		Runner:   ts.runner,
		Tracker:  performance.NewTracker(0),
		Gatherer: reg,
	}))
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testServer) get(t *testing.T, path string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp
}

func (ts *testServer) post(t *testing.T, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.srv.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	resp.Body.Close()
	return resp
}

type linesResponse struct {
	Lines []models.StoredBettingLine `json:"lines"`
	Meta  struct {
		Count  int    `json:"count"`
		Source string `json:"source"`
	} `json:"meta"`
}

func TestProbes(t *testing.T) {
	ts := newTestServer(t)
	if resp := ts.get(t, "/ping", nil); resp.StatusCode != http.StatusOK {
		t.Errorf("/ping = %d", resp.StatusCode)
	}

	var health handlers.HealthResponse
	if resp := ts.get(t, "/health", &health); resp.StatusCode != http.StatusOK {
		t.Errorf("/health = %d", resp.StatusCode)
	}
	if health.Status != "ok" || health.Entities != 2 || health.LastRunAt != nil {
		t.Errorf("health before any run = %+v", health)
	}
	ts.runner.RunOnce(context.Background())
	ts.get(t, "/health", &health)
	if health.LastRunAt == nil {
		t.Error("health does not report the last run")
	}

	resp, err := http.Get(ts.srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), "evledger_lines_collected_total 3") {
		t.Errorf("metrics output missing collected counter:\n%s", body)
	}
}

func TestPostAndGetLines(t *testing.T) {
	ts := newTestServer(t)

	if resp := ts.post(t, "/api/v1/lines", validBatch); resp.StatusCode != http.StatusOK {
		t.Fatalf("POST = %d", resp.StatusCode)
	}
	if resp := ts.post(t, "/api/v1/lines", validBatch); resp.StatusCode != http.StatusOK {
		t.Fatalf("second POST = %d", resp.StatusCode)
	}

	var got linesResponse
	ts.get(t, "/api/v1/lines?league=nba&subject=LeBron%20James", &got)
	if got.Meta.Count != 1 || got.Meta.Source != "store" {
		t.Fatalf("meta = %+v", got.Meta)
	}
	if n := len(got.Lines[0].Stream); n != 2 || !got.Lines[0].Stream[1].IsHeartbeat() {
		t.Errorf("stream = %+v, want full entry + heartbeat", got.Lines[0].Stream)
	}

	ts.get(t, "/api/v1/lines?bookmaker=Pinnacle", &got)
	if got.Meta.Count != 0 || got.Lines == nil {
		t.Errorf("filtered lines = %+v", got)
	}
}

func TestPostLinesRejectsInvalidBatch(t *testing.T) {
	ts := newTestServer(t)

	missingMarket := strings.Replace(validBatch, `"market": "Points", `, "", 1)
	if resp := ts.post(t, "/api/v1/lines", missingMarket); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing market = %d, want 400", resp.StatusCode)
	}
	stringOdds := strings.Replace(validBatch, `"odds": 2.0`, `"odds": "2.0"`, 1)
	if resp := ts.post(t, "/api/v1/lines", stringOdds); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("string odds = %d, want 400", resp.StatusCode)
	}

	lines, _ := ts.store.Get(context.Background(), storage.LineQuery{}, false)
	if len(lines) != 0 {
		t.Errorf("rejected batch persisted %d lines", len(lines))
	}
}

func TestGetLinesPreviousBatchOnly(t *testing.T) {
	ts := newTestServer(t)
	ts.post(t, "/api/v1/lines", validBatch)

	var got linesResponse
	ts.get(t, "/api/v1/lines?previous_batch_only=true", &got)
	if got.Meta.Source != "store" || got.Meta.Count != 1 {
		t.Errorf("cold cache meta = %+v, want store answer", got.Meta)
	}

	fresh, _ := ts.store.Get(context.Background(), storage.LineQuery{}, true)
	_ = ts.cache.PutLatest(context.Background(), fresh)
	ts.get(t, "/api/v1/lines?previous_batch_only=true&label=Over", &got)
	if got.Meta.Source != "cache" || got.Meta.Count != 1 || ts.cache.hits != 1 {
		t.Errorf("warm cache meta = %+v hits = %d", got.Meta, ts.cache.hits)
	}

	if resp := ts.get(t, "/api/v1/lines?previous_batch_only=maybe", nil); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad flag = %d, want 400", resp.StatusCode)
	}
}

func TestGetEntities(t *testing.T) {
	ts := newTestServer(t)

	var got struct {
		Entities []models.CanonicalEntity `json:"entities"`
		Count    int                      `json:"count"`
	}
	ts.get(t, "/api/v1/entities?kind=subject&domain=NBA", &got)
	if got.Count != 1 || got.Entities[0].CanonicalName != "LeBron James" {
		t.Errorf("NBA subjects = %+v", got)
	}
	ts.get(t, "/api/v1/entities", &got)
	if got.Count != 2 {
		t.Errorf("all subjects = %d, want 2", got.Count)
	}
	if resp := ts.get(t, "/api/v1/entities?kind=coach", nil); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown kind = %d, want 400", resp.StatusCode)
	}
}

func TestRuns(t *testing.T) {
	ts := newTestServer(t)

	if resp := ts.get(t, "/api/v1/runs/last", nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("before any run = %d, want 404", resp.StatusCode)
	}
	if resp := ts.post(t, "/api/v1/runs", ""); resp.StatusCode != http.StatusAccepted {
		t.Fatalf("trigger = %d, want 202", resp.StatusCode)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, ok := ts.runner.LastRun(); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("triggered run never finished")
		}
		time.Sleep(10 * time.Millisecond)
	}

	var got struct {
		Run pipeline.RunStats `json:"run"`
	}
	ts.get(t, "/api/v1/runs/last", &got)
	if got.Run.RunID != "run-1" || got.Run.Stored != 3 {
		t.Errorf("last run = %+v", got.Run)
	}
}

func TestAddrFor(t *testing.T) {
	if addr, err := AddrFor(8080); err != nil || addr != ":8080" {
		t.Errorf("AddrFor(8080) = %q, %v", addr, err)
	}
	if _, err := AddrFor(0); err == nil {
		t.Error("AddrFor(0) should fail")
	}
}
