// Package fetch retrieves the manifest and per-policy-set artifacts from the
// static origin that the scraping pipeline publishes to.
//
// Every request is cache-busted: the upstream files are overwritten in place
// once a day and must never be served stale by an intermediate cache.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/abelbrown/steward/internal/logging"
	"github.com/abelbrown/steward/internal/otel"
	"github.com/abelbrown/steward/internal/policy"
)

const (
	manifestPath = "hashes.json"
	analysisDir  = "analysis"
	snapshotDir  = "snapshots"

	// maxBodySize bounds any single artifact read.
	maxBodySize = 16 << 20

	userAgent = "Steward/1.0 (+https://github.com/abelbrown/steward)"
)

var (
	// ErrManifestUnavailable matches any non-2xx manifest response.
	ErrManifestUnavailable = errors.New("manifest unavailable")

	// ErrManifestCorrupt is returned when the manifest body cannot be parsed.
	ErrManifestCorrupt = errors.New("manifest corrupt")
)

// ManifestUnavailableError carries the HTTP status of a failed manifest fetch.
type ManifestUnavailableError struct {
	Status int
}

func (e *ManifestUnavailableError) Error() string {
	return fmt.Sprintf("manifest unavailable: HTTP %d %s", e.Status, http.StatusText(e.Status))
}

// Is lets errors.Is(err, ErrManifestUnavailable) match.
func (e *ManifestUnavailableError) Is(target error) bool {
	return target == ErrManifestUnavailable
}

// Options configures a Fetcher.
type Options struct {
	BaseURL           string
	Timeout           time.Duration // per request; ignored when Client is set
	RequestsPerSecond float64       // 0 disables limiting
	Burst             int
	Client            *http.Client
	Events            *otel.Logger // optional
}

// Fetcher retrieves the manifest and artifacts over HTTP.
type Fetcher struct {
	base    *url.URL
	client  *http.Client
	limiter *rate.Limiter // nil when unlimited
	events  *otel.Logger
	seq     atomic.Uint64
}

// NewFetcher validates the base URL and builds a Fetcher.
func NewFetcher(opts Options) (*Fetcher, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url must be absolute, got %q", opts.BaseURL)
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	f := &Fetcher{base: base, client: client, events: opts.Events}
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return f, nil
}

// ManifestURL returns the manifest location without the cache-busting parameter.
func (f *Fetcher) ManifestURL() string {
	return f.base.JoinPath(manifestPath).String()
}

// AnalysisURL returns the analysis artifact location for fileID.
func (f *Fetcher) AnalysisURL(fileID string) string {
	return f.base.JoinPath(analysisDir, url.PathEscape(fileID)+".json").String()
}

// SnapshotURL returns the snapshot artifact location for fileID.
func (f *Fetcher) SnapshotURL(fileID string) string {
	return f.base.JoinPath(snapshotDir, url.PathEscape(fileID)+".txt").String()
}

// cacheBust returns a value unique to this call, even within one clock tick.
func (f *Fetcher) cacheBust() string {
	return strconv.FormatInt(time.Now().UnixNano(), 36) + "-" + strconv.FormatUint(f.seq.Add(1), 36)
}

// get performs one cache-busted GET. A non-2xx status is returned with a nil
// body and nil error; err is reserved for transport failures.
func (f *Fetcher) get(ctx context.Context, rawURL string) (int, []byte, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return 0, nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build url: %w", err)
	}
	q := u.Query()
	q.Set("cachebust", f.cacheBust())
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request %s: %w", u.Path, err)
	}
	defer resp.Body.Close()

	if !success(resp.StatusCode) {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return resp.StatusCode, nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read %s: %w", u.Path, err)
	}
	return resp.StatusCode, body, nil
}

// Manifest loads hashes.json and returns the valid policy sets in manifest
// order. Entries that fail validation are logged as data-quality warnings and
// dropped; they are never an error.
func (f *Fetcher) Manifest(ctx context.Context) ([]policy.PolicySet, error) {
	start := time.Now()
	f.events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindManifestStart, Comp: "fetch"})

	status, body, err := f.get(ctx, f.ManifestURL())
	if err != nil {
		err = fmt.Errorf("fetch manifest: %w", err)
		f.manifestFailed(err, status)
		return nil, err
	}
	if !success(status) {
		err := &ManifestUnavailableError{Status: status}
		f.manifestFailed(err, status)
		return nil, err
	}

	m, err := policy.ParseManifest(body)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrManifestCorrupt, err)
		f.manifestFailed(err, status)
		return nil, err
	}

	log := logging.WithPrefix("fetch")
	for _, r := range m.Rejected {
		log.Warn("dropped manifest entry", "key", r.Key, "reason", r.Reason)
		f.events.Emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindManifestDropped, Comp: "fetch", Set: r.Key, Msg: r.Reason})
	}
	if m.Raw() > 0 && len(m.Sets) == 0 {
		log.Warn("manifest has entries but none are valid", "raw", m.Raw())
	}

	log.Info("manifest loaded", "sets", len(m.Sets), "dropped", len(m.Rejected))
	f.events.Emit(otel.Event{
		Level: otel.LevelInfo, Kind: otel.KindManifestComplete, Comp: "fetch",
		Count: len(m.Sets), Status: status, Dur: time.Since(start),
	})
	return m.Sets, nil
}

func (f *Fetcher) manifestFailed(err error, status int) {
	logging.WithPrefix("fetch").Error("manifest load failed", "err", err)
	f.events.Emit(otel.Event{Level: otel.LevelError, Kind: otel.KindManifestError, Comp: "fetch", Status: status, Err: err.Error()})
}

// Analysis fetches analysis/{fileID}.json. A missing or unreadable artifact
// yields policy.PlaceholderAnalysis and a nil error; only a transport failure
// is returned as an error.
func (f *Fetcher) Analysis(ctx context.Context, fileID string) (policy.Analysis, error) {
	if fileID == "" {
		return policy.PlaceholderAnalysis(), nil
	}

	status, body, err := f.get(ctx, f.AnalysisURL(fileID))
	if err != nil {
		f.artifactFailed(fileID, err)
		return policy.Analysis{}, err
	}
	if !success(status) {
		f.fallback(fileID, "analysis", fmt.Sprintf("HTTP %d", status), status)
		return policy.PlaceholderAnalysis(), nil
	}

	a, err := policy.ParseAnalysis(body)
	if err != nil {
		f.fallback(fileID, "analysis", err.Error(), status)
		return policy.PlaceholderAnalysis(), nil
	}

	f.events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindAnalysisFetched, Comp: "fetch", FileID: fileID, Status: status})
	return a, nil
}

// Snapshot fetches snapshots/{fileID}.txt. A non-2xx status yields
// policy.PlaceholderSnapshot and a nil error.
func (f *Fetcher) Snapshot(ctx context.Context, fileID string) (string, error) {
	if fileID == "" {
		return policy.PlaceholderSnapshot, nil
	}

	status, body, err := f.get(ctx, f.SnapshotURL(fileID))
	if err != nil {
		f.artifactFailed(fileID, err)
		return "", err
	}
	if !success(status) {
		f.fallback(fileID, "snapshot", fmt.Sprintf("HTTP %d", status), status)
		return policy.PlaceholderSnapshot, nil
	}

	f.events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindSnapshotFetched, Comp: "fetch", FileID: fileID, Status: status, Count: len(body)})
	return string(body), nil
}

func (f *Fetcher) fallback(fileID, artifact, reason string, status int) {
	logging.WithPrefix("fetch").Debug("artifact placeholder", "artifact", artifact, "file_id", fileID, "reason", reason)
	f.events.Emit(otel.Event{
		Level: otel.LevelInfo, Kind: otel.KindArtifactFallback, Comp: "fetch",
		FileID: fileID, Status: status, Msg: artifact + ": " + reason,
	})
}

func (f *Fetcher) artifactFailed(fileID string, err error) {
	logging.WithPrefix("fetch").Error("artifact request failed", "file_id", fileID, "err", err)
	f.events.Emit(otel.Event{Level: otel.LevelError, Kind: otel.KindArtifactError, Comp: "fetch", FileID: fileID, Err: err.Error()})
}

func success(status int) bool {
	return status >= 200 && status <= 299
}
