package fetch

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/abelbrown/steward/internal/logging"
	"github.com/abelbrown/steward/internal/otel"
	"github.com/abelbrown/steward/internal/policy"
)

// origin is a static file server that records every request it sees.
type origin struct {
	mu       sync.Mutex
	files    map[string]string // path -> body
	status   map[string]int    // path -> forced status
	requests []*http.Request
}

func newOrigin() *origin {
	return &origin{files: make(map[string]string), status: make(map[string]int)}
}

func (o *origin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	o.mu.Lock()
	o.requests = append(o.requests, r)
	body, ok := o.files[r.URL.Path]
	code, forced := o.status[r.URL.Path]
	o.mu.Unlock()

	switch {
	case forced:
		w.WriteHeader(code)
	case !ok:
		http.NotFound(w, r)
	default:
		w.Write([]byte(body))
	}
}

func (o *origin) seen() []*http.Request {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*http.Request(nil), o.requests...)
}

func newTestFetcher(t *testing.T, o *origin) *Fetcher {
	t.Helper()
	server := httptest.NewServer(o)
	t.Cleanup(server.Close)

	f, err := NewFetcher(Options{BaseURL: server.URL + "/data/", Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	return f
}

func TestNewFetcherRejectsRelativeURL(t *testing.T) {
	for _, base := range []string{"", "data", "/data"} {
		if _, err := NewFetcher(Options{BaseURL: base}); err == nil {
			t.Errorf("NewFetcher(%q) should fail", base)
		}
	}
}

func TestArtifactURLs(t *testing.T) {
	f, err := NewFetcher(Options{BaseURL: "https://raw.example.com/org/repo/main/"})
	if err != nil {
		t.Fatal(err)
	}
	if got := f.ManifestURL(); got != "https://raw.example.com/org/repo/main/hashes.json" {
		t.Errorf("ManifestURL = %q", got)
	}
	if got := f.AnalysisURL("abc123"); got != "https://raw.example.com/org/repo/main/analysis/abc123.json" {
		t.Errorf("AnalysisURL = %q", got)
	}
	if got := f.SnapshotURL("a/b"); got != "https://raw.example.com/org/repo/main/snapshots/a%2Fb.txt" {
		t.Errorf("SnapshotURL = %q", got)
	}
}

func TestManifestSuccess(t *testing.T) {
	o := newOrigin()
	o.files["/data/hashes.json"] = `{"Policy X": {"file_id": "abc123", "urls": [{"url": "https://example.gov/x"}], "category": "Privacy"}}`
	f := newTestFetcher(t, o)

	sets, err := f.Manifest(context.Background())
	if err != nil {
		t.Fatalf("Manifest: %v", err)
	}
	if len(sets) != 1 || sets[0].Name != "Policy X" || sets[0].Category != "Privacy" || sets[0].FileID != "abc123" {
		t.Errorf("unexpected sets: %+v", sets)
	}

	reqs := o.seen()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	r := reqs[0]
	if r.URL.Query().Get("cachebust") == "" {
		t.Error("manifest request should carry a cachebust parameter")
	}
	if r.Header.Get("Cache-Control") != "no-cache" {
		t.Errorf("Cache-Control = %q", r.Header.Get("Cache-Control"))
	}
	if !strings.HasPrefix(r.Header.Get("User-Agent"), "Steward/") {
		t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
	}
}

func TestManifestUnavailable(t *testing.T) {
	o := newOrigin()
	o.status["/data/hashes.json"] = http.StatusInternalServerError
	f := newTestFetcher(t, o)

	sets, err := f.Manifest(context.Background())
	if sets != nil {
		t.Errorf("expected no sets, got %v", sets)
	}
	if !errors.Is(err, ErrManifestUnavailable) {
		t.Fatalf("expected ErrManifestUnavailable, got %v", err)
	}
	var mu *ManifestUnavailableError
	if !errors.As(err, &mu) || mu.Status != http.StatusInternalServerError {
		t.Errorf("expected status 500 in error, got %v", err)
	}
	if errors.Is(err, ErrManifestCorrupt) {
		t.Error("unavailable must not match ErrManifestCorrupt")
	}
}

func TestManifestCorrupt(t *testing.T) {
	o := newOrigin()
	o.files["/data/hashes.json"] = `<html>rate limited</html>`
	f := newTestFetcher(t, o)

	_, err := f.Manifest(context.Background())
	if !errors.Is(err, ErrManifestCorrupt) {
		t.Fatalf("expected ErrManifestCorrupt, got %v", err)
	}
	if errors.Is(err, ErrManifestUnavailable) {
		t.Error("corrupt must not match ErrManifestUnavailable")
	}
}

func TestManifestTransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	base := server.URL
	server.Close()

	f, err := NewFetcher(Options{BaseURL: base, Timeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	_, err = f.Manifest(context.Background())
	if err == nil {
		t.Fatal("expected transport error")
	}
	if errors.Is(err, ErrManifestUnavailable) || errors.Is(err, ErrManifestCorrupt) {
		t.Errorf("transport failure should be neither unavailable nor corrupt: %v", err)
	}
}

func TestManifestDropsMalformedAndWarns(t *testing.T) {
	var logBuf bytes.Buffer
	if err := logging.InitWriter(&logBuf, "warn"); err != nil {
		t.Fatal(err)
	}
	defer func() { logging.Logger = nil }()

	ring := otel.NewRingBuffer(32)
	events := otel.NewNullLogger()
	events.SetRingBuffer(ring)

	o := newOrigin()
	o.files["/data/hashes.json"] = `{
		"Good": {"file_id": "good", "urls": [{"url": "https://good.example"}], "category": "Privacy"},
		"Bad":  {"urls": [{"url": "https://bad.example"}], "category": "Privacy"}
	}`
	server := httptest.NewServer(o)
	defer server.Close()
	f, err := NewFetcher(Options{BaseURL: server.URL + "/data", Timeout: time.Second, Events: events})
	if err != nil {
		t.Fatal(err)
	}

	sets, err := f.Manifest(context.Background())
	events.Close()
	if err != nil {
		t.Fatalf("malformed entries must not fail the load: %v", err)
	}
	if len(sets) != 1 || sets[0].Name != "Good" {
		t.Errorf("expected only Good, got %+v", sets)
	}
	if !strings.Contains(logBuf.String(), "dropped manifest entry") || !strings.Contains(logBuf.String(), "Bad") {
		t.Errorf("expected a data-quality warning naming Bad, got:\n%s", logBuf.String())
	}
	if ring.Stats()[otel.KindManifestDropped] != 1 {
		t.Errorf("expected one manifest.dropped event, got %v", ring.Stats())
	}
}

func TestManifestAllInvalidWarns(t *testing.T) {
	var logBuf bytes.Buffer
	if err := logging.InitWriter(&logBuf, "warn"); err != nil {
		t.Fatal(err)
	}
	defer func() { logging.Logger = nil }()

	o := newOrigin()
	o.files["/data/hashes.json"] = `{"A": {"urls": []}, "B": "legacyhash"}`
	f := newTestFetcher(t, o)

	sets, err := f.Manifest(context.Background())
	if err != nil {
		t.Fatalf("Manifest: %v", err)
	}
	if len(sets) != 0 {
		t.Errorf("expected empty result, got %v", sets)
	}
	if !strings.Contains(logBuf.String(), "none are valid") {
		t.Errorf("expected empty-result warning, got:\n%s", logBuf.String())
	}
}

func TestAnalysisSuccess(t *testing.T) {
	o := newOrigin()
	o.files["/data/analysis/abc123.json"] = `{"summary": "Clause 4 removed", "analysis": "**Removed** clause 4", "date_time": "2025-06-01T09:00:00+10:00", "priority": "Critical"}`
	f := newTestFetcher(t, o)

	a, err := f.Analysis(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("Analysis: %v", err)
	}
	if a.Summary != "Clause 4 removed" || a.Priority != policy.PriorityCritical || a.Body != "**Removed** clause 4" {
		t.Errorf("unexpected analysis: %+v", a)
	}
}

func TestArtifactFallbacks(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(o *origin)
		fileID string
	}{
		{"404", func(o *origin) {}, "missing"},
		{"500", func(o *origin) {
			o.status["/data/analysis/broken.json"] = http.StatusInternalServerError
			o.status["/data/snapshots/broken.txt"] = http.StatusInternalServerError
		}, "broken"},
		{"403", func(o *origin) {
			o.status["/data/analysis/private.json"] = http.StatusForbidden
			o.status["/data/snapshots/private.txt"] = http.StatusForbidden
		}, "private"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newOrigin()
			tt.setup(o)
			f := newTestFetcher(t, o)

			a, err := f.Analysis(context.Background(), tt.fileID)
			if err != nil {
				t.Fatalf("Analysis must not fail on HTTP status: %v", err)
			}
			if a != policy.PlaceholderAnalysis() {
				t.Errorf("expected placeholder analysis, got %+v", a)
			}
			if a.Priority != policy.PriorityLow {
				t.Errorf("placeholder priority = %q, want low", a.Priority)
			}

			s, err := f.Snapshot(context.Background(), tt.fileID)
			if err != nil {
				t.Fatalf("Snapshot must not fail on HTTP status: %v", err)
			}
			if s != policy.PlaceholderSnapshot {
				t.Errorf("expected placeholder snapshot, got %q", s)
			}
		})
	}
}

func TestAnalysisMalformedFallsBack(t *testing.T) {
	o := newOrigin()
	o.files["/data/analysis/abc123.json"] = `{"summary": "unterminated`
	f := newTestFetcher(t, o)

	a, err := f.Analysis(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("parse failure must not be an error: %v", err)
	}
	if a.Summary != policy.PlaceholderSummary {
		t.Errorf("expected placeholder, got %+v", a)
	}
}

func TestSnapshotSuccess(t *testing.T) {
	o := newOrigin()
	o.files["/data/snapshots/abc123.txt"] = "--- Content from https://example.gov/x ---\n\nTerms of use"
	f := newTestFetcher(t, o)

	s, err := f.Snapshot(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if !strings.Contains(s, "Terms of use") {
		t.Errorf("unexpected snapshot: %q", s)
	}
}

func TestEmptySnapshotIsNotPlaceholder(t *testing.T) {
	o := newOrigin()
	o.files["/data/snapshots/empty.txt"] = ""
	f := newTestFetcher(t, o)

	s, err := f.Snapshot(context.Background(), "empty")
	if err != nil || s != "" {
		t.Errorf("Snapshot = %q, %v; want empty content", s, err)
	}
}

func TestEveryRequestIsCacheBusted(t *testing.T) {
	o := newOrigin()
	f := newTestFetcher(t, o)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		f.Analysis(ctx, "abc123")
		f.Snapshot(ctx, "abc123")
	}

	seen := make(map[string]bool)
	for _, r := range o.seen() {
		v := r.URL.Query().Get("cachebust")
		if v == "" {
			t.Fatalf("request %s has no cachebust", r.URL)
		}
		if seen[v] {
			t.Errorf("cachebust value %q reused", v)
		}
		seen[v] = true
	}
	if len(seen) != 10 {
		t.Errorf("expected 10 distinct requests, got %d", len(seen))
	}
}

func TestArtifactTransportErrorIsReturned(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	base := server.URL
	server.Close()

	f, err := NewFetcher(Options{BaseURL: base, Timeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Analysis(context.Background(), "abc123"); err == nil {
		t.Error("Analysis should surface transport failures")
	}
	if _, err := f.Snapshot(context.Background(), "abc123"); err == nil {
		t.Error("Snapshot should surface transport failures")
	}
}

func TestEmptyFileIDNeverHitsNetwork(t *testing.T) {
	o := newOrigin()
	f := newTestFetcher(t, o)

	a, err := f.Analysis(context.Background(), "")
	if err != nil || a.Summary != policy.PlaceholderSummary {
		t.Errorf("Analysis(\"\") = %+v, %v", a, err)
	}
	s, err := f.Snapshot(context.Background(), "")
	if err != nil || s != policy.PlaceholderSnapshot {
		t.Errorf("Snapshot(\"\") = %q, %v", s, err)
	}
	if n := len(o.seen()); n != 0 {
		t.Errorf("expected no requests, got %d", n)
	}
}

func TestRateLimiterHonorsContext(t *testing.T) {
	o := newOrigin()
	server := httptest.NewServer(o)
	defer server.Close()

	f, err := NewFetcher(Options{BaseURL: server.URL, RequestsPerSecond: 0.001, Burst: 1, Timeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}

	// First request consumes the only token.
	if _, err := f.Snapshot(context.Background(), "a"); err != nil {
		t.Fatalf("first request: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := f.Snapshot(ctx, "b"); err == nil {
		t.Error("second request should fail waiting on the limiter")
	}
	if n := len(o.seen()); n != 1 {
		t.Errorf("limiter should have blocked the second request, saw %d", n)
	}
}
