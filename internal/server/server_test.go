package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/starford/quire/internal/index"
	"github.com/starford/quire/internal/metrics"
	"github.com/starford/quire/internal/sse"
	"github.com/starford/quire/internal/testutil"
)

// testEnv sets up an output dir, a populated search index and the router.
func testEnv(t *testing.T, opts Options) (http.Handler, string) {
	t.Helper()

	siteDir := t.TempDir()
	testutil.WriteTree(t, siteDir, map[string]string{
		"index.html": "<h1>Contents</h1>",
		"intro.html": "<h1>Intro</h1>",
	})

	db := testutil.TestDB(t)
	pages := []struct {
		row  index.PageRow
		body string
	}{
		{index.PageRow{ID: "intro", Title: "Introduction", Href: "intro.html", Position: 1, Checksum: "a"}, "Welcome to the book."},
		{index.PageRow{ID: "render", Title: "Rendering", Href: "render.html", Position: 2, Checksum: "b"}, "Pages go through goldmark."},
		{index.PageRow{ID: "notes", Title: "Notes", Href: "notes.html", Checksum: "c"}, "Unlisted."},
	}
	for _, p := range pages {
		if err := db.UpsertPage(p.row, p.body); err != nil {
			t.Fatal(err)
		}
	}

	opts.SiteDir = siteDir
	opts.Index = db
	return NewRouter(opts), siteDir
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	router, _ := testEnv(t, Options{})

	for _, path := range []string{"/health/live", "/health/ready"} {
		w := get(t, router, path)
		if w.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, w.Code)
		}
		var resp HealthResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if resp.Status != "ok" {
			t.Errorf("%s status = %q", path, resp.Status)
		}
	}
}

func TestListChapters_ReadingOrder(t *testing.T) {
	router, _ := testEnv(t, Options{})

	w := get(t, router, "/api/chapters")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("content type = %q", ct)
	}

	var resp ChapterListResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 2 || len(resp.Chapters) != 2 {
		t.Fatalf("chapters = %+v", resp.Chapters)
	}
	if resp.Chapters[0].ID != "intro" || resp.Chapters[1].ID != "render" {
		t.Errorf("order = %s, %s", resp.Chapters[0].ID, resp.Chapters[1].ID)
	}
}

func TestListChapters_EmptyIsArray(t *testing.T) {
	db := testutil.TestDB(t)
	router := NewRouter(Options{SiteDir: t.TempDir(), Index: db})

	w := get(t, router, "/api/chapters")
	if !strings.Contains(w.Body.String(), `"chapters":[]`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestSearch(t *testing.T) {
	router, _ := testEnv(t, Options{})

	w := get(t, router, "/api/search?q=goldmark")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp SearchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || resp.Results[0].ID != "render" {
		t.Fatalf("results = %+v", resp.Results)
	}
	if resp.Results[0].Href != "render.html" {
		t.Errorf("href = %q", resp.Results[0].Href)
	}
}

func TestSearch_Validation(t *testing.T) {
	router, _ := testEnv(t, Options{})

	for _, target := range []string{"/api/search", "/api/search?q=%20", "/api/search?q=x&limit=0", "/api/search?q=x&limit=abc"} {
		w := get(t, router, target)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, w.Code)
		}
	}
}

func TestStaticSite(t *testing.T) {
	router, siteDir := testEnv(t, Options{})

	w := get(t, router, "/intro.html")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "<h1>Intro</h1>") {
		t.Errorf("body = %q", w.Body.String())
	}
	if cc := w.Header().Get("Cache-Control"); !strings.Contains(cc, "no-cache") {
		t.Errorf("Cache-Control = %q", cc)
	}

	w = get(t, router, "/")
	if !strings.Contains(w.Body.String(), "Contents") {
		t.Errorf("root should serve index.html, got %q", w.Body.String())
	}

	// A rebuild swaps the directory contents; the next request sees them.
	if err := os.WriteFile(filepath.Join(siteDir, "intro.html"), []byte("<h1>Intro v2</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}
	w = get(t, router, "/intro.html")
	if !strings.Contains(w.Body.String(), "Intro v2") {
		t.Errorf("stale body = %q", w.Body.String())
	}

	if w = get(t, router, "/missing.html"); w.Code != http.StatusNotFound {
		t.Errorf("missing page status = %d", w.Code)
	}
}

func TestMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := metrics.NewPrometheusRecorder(reg)
	rec.IncBuildOutcome(metrics.OutcomeSuccess)

	router, _ := testEnv(t, Options{Metrics: metrics.HTTPHandler(reg)})

	w := get(t, router, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "quire_build_outcomes_total") {
		t.Errorf("metrics body missing build counter")
	}
}

func TestMetricsRoute_Absent(t *testing.T) {
	router, _ := testEnv(t, Options{})
	// Without a metrics handler the path falls through to the static site.
	if w := get(t, router, "/metrics"); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestEventsRoute(t *testing.T) {
	broker := sse.NewBroker("")
	defer broker.Close()

	router, _ := testEnv(t, Options{Events: broker})
	srv := httptest.NewServer(router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	deadline := time.Now().Add(2 * time.Second)
	for broker.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}
	broker.PublishBuild(sse.BuildResult{Checksum: "abc", Pages: 3})

	buf := make([]byte, 512)
	n, err := resp.Body.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(buf[:n]); !strings.Contains(got, "event: "+sse.EventRebuilt) {
		t.Errorf("event = %q", got)
	}
}
