package e2e

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"
)

const fixtureManifest = `{
  "Fixture Policy": {
    "file_id": "fx1",
    "urls": [{"url": "https://example.gov/fixture"}],
    "category": "Privacy",
    "last_checked": "2025-06-01T09:00:00Z"
  },
  "Broken Entry": {"urls": []}
}`

const fixtureAnalysis = `{
  "summary": "Retention period shortened to 30 days.",
  "analysis": "The amended policy now deletes logs after **30 days**.",
  "date_time": "2025-06-01T09:00:00Z",
  "priority": "high"
}`

const fixtureSnapshot = "Section 4. Logs are retained for 30 days."

// serveFixture starts an origin laid out the way the scraping pipeline
// publishes it: hashes.json, analysis/<id>.json and snapshots/<id>.txt.
func serveFixture(t *testing.T) *httptest.Server {
	t.Helper()
	files := map[string]string{
		"/hashes.json":       fixtureManifest,
		"/analysis/fx1.json": fixtureAnalysis,
		"/snapshots/fx1.txt": fixtureSnapshot,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if strings.HasSuffix(r.URL.Path, ".json") {
			w.Header().Set("Content-Type", "application/json")
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func readSnapshot(f *os.File) string {
	if err := f.SetReadDeadline(time.Now().Add(50 * time.Millisecond)); err != nil {
		return ""
	}
	out := make([]byte, 0, 8192)
	buf := make([]byte, 4096)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err != nil {
			break
		}
	}
	return string(out)
}
