package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Vodeneev/evledger/internal/pkg/config"
	"github.com/Vodeneev/evledger/internal/pkg/interfaces"
)

const pageJSON = `{"lines":[
 {"bookmaker":"PrizePicks","league":"NBA","market_domain":"PlayerProps","raw_market":"Points",
  "raw_subject":"LeBron James","label":"Over","line":25.5,"odds":2.0,
  "collection_timestamp":"2025-01-28T12:00:00Z","game":{"_id":"NBA_20250128_LAL@PHI"}},
 {"market_domain":"PlayerProps","raw_market":"Points","raw_subject":"Joel Embiid",
  "label":"Under","line":30.5,"odds":1.87}
]}`

func newFeedServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/lines", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprint(w, pageJSON)
		case "2":
			fmt.Fprint(w, `[]`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCollectorTasks(t *testing.T) {
	c, err := New(config.FeedConfig{Name: "pp", Bookmaker: "PrizePicks", BaseURL: "http://x", Leagues: []string{"NBA", "NHL"}, Pages: 2}, time.Second, "")
	if err != nil {
		t.Fatal(err)
	}
	tasks := c.Tasks()
	if len(tasks) != 4 {
		t.Fatalf("tasks = %d, want 4", len(tasks))
	}
	if tasks[3] != (interfaces.Task{Bookmaker: "PrizePicks", League: "NHL", Page: 2}) {
		t.Errorf("last task = %+v", tasks[3])
	}

	if _, err := New(config.FeedConfig{Name: "empty", BaseURL: "http://x"}, time.Second, ""); err == nil {
		t.Error("expected error for a feed without leagues")
	}
}

func TestCollectFillsDefaults(t *testing.T) {
	srv := newFeedServer(t)
	c, err := New(config.FeedConfig{
		Name: "prizepicks", Bookmaker: "PrizePicks", BaseURL: srv.URL,
		Leagues: []string{"NBA"}, Headers: map[string]string{"X-Api-Key": "secret"},
	}, time.Second, "")
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2025, 1, 28, 12, 5, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	lines, err := c.Collect(context.Background(), interfaces.Task{Bookmaker: "PrizePicks", League: "NBA", Page: 1})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	second := lines[1]
	if second.Bookmaker != "PrizePicks" || second.League != "NBA" || !second.CollectionTimestamp.Equal(now) {
		t.Errorf("defaults not filled: %+v", second)
	}
	if lines[0].Line == nil || *lines[0].Line != 25.5 || lines[0].Game.ID != "NBA_20250128_LAL@PHI" {
		t.Errorf("first line decoded wrong: %+v", lines[0])
	}

	empty, err := c.Collect(context.Background(), interfaces.Task{League: "NBA", Page: 2})
	if err != nil || len(empty) != 0 {
		t.Errorf("page 2 = %v, %v", empty, err)
	}
	if _, err := c.Collect(context.Background(), interfaces.Task{League: "NBA", Page: 3}); err == nil {
		t.Error("expected error for non-200 status")
	}
}

func TestMirrorResolution(t *testing.T) {
	target := newFeedServer(t)
	mirror := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL+"/landing?tag=abc", http.StatusFound)
	}))
	defer mirror.Close()

	c := NewClient("", mirror.URL, false, time.Second, "", map[string]string{"X-Api-Key": "secret"})
	lines, err := c.FetchLines(context.Background(), "NBA", 1)
	if err != nil {
		t.Fatalf("FetchLines: %v", err)
	}
	if len(lines) != 2 {
		t.Errorf("lines = %d, want 2", len(lines))
	}
	if c.resolvedURL != target.URL {
		t.Errorf("resolved = %q, want %q", c.resolvedURL, target.URL)
	}
}

func TestMirrorFallsBackToJSResolver(t *testing.T) {
	target := newFeedServer(t)
	mirror := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<script>window.location="elsewhere"</script>`)
	}))
	defer mirror.Close()

	c := NewClient("", mirror.URL, true, time.Second, "", map[string]string{"X-Api-Key": "secret"})
	calls := 0
	c.jsResolver = func(_ context.Context, mirrorURL, _ string) (string, error) {
		calls++
		return target.URL + "/ru/", nil
	}

	for i := 0; i < 2; i++ {
		if _, err := c.FetchLines(context.Background(), "NBA", 1); err != nil {
			t.Fatalf("FetchLines #%d: %v", i, err)
		}
	}
	if calls != 1 {
		t.Errorf("js resolver called %d times, want 1 (cached)", calls)
	}
}

func TestNormalizeResolvedBaseURL(t *testing.T) {
	tests := map[string]string{
		"https://feed.example.bar:443/ru/registration?tag=x": "https://feed.example.bar",
		"http://127.0.0.1:8081/path":                         "http://127.0.0.1:8081",
	}
	for in, want := range tests {
		if got := normalizeResolvedBaseURL(in); got != want {
			t.Errorf("normalizeResolvedBaseURL(%q) = %q, want %q", in, got, want)
		}
	}
}
