// Package otel records structured events for Steward.
//
// Events are typed structs serialized as JSONL lines by an async Logger. An
// optional RingBuffer keeps the most recent events in memory for the debug
// overlay.
package otel

import (
	"encoding/json"
	"time"
)

// Level defines event severity for filtering.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// EventKind identifies the category of an event.
// Dot-delimited: "<subsystem>.<action>".
type EventKind string

const (
	// Manifest events
	KindManifestStart    EventKind = "manifest.start"
	KindManifestComplete EventKind = "manifest.complete"
	KindManifestError    EventKind = "manifest.error"
	KindManifestDropped  EventKind = "manifest.dropped" // data-quality: entry filtered out

	// Artifact events
	KindAnalysisFetched  EventKind = "artifact.analysis"
	KindSnapshotFetched  EventKind = "artifact.snapshot"
	KindArtifactFallback EventKind = "artifact.fallback"
	KindArtifactError    EventKind = "artifact.error"

	// Selection events
	KindSelectStart   EventKind = "selection.start"
	KindSelectSkip    EventKind = "selection.skip"
	KindSelectLoaded  EventKind = "selection.loaded"
	KindSelectError   EventKind = "selection.error"
	KindSelectDiscard EventKind = "selection.discard" // stale result, newer selection active

	// UI events
	KindKeyPress EventKind = "ui.key"

	// System events
	KindStartup  EventKind = "sys.startup"
	KindShutdown EventKind = "sys.shutdown"
	KindError    EventKind = "sys.error"
)

// Event is the universal observability record. Every field except Kind and
// Time is optional.
type Event struct {
	Time      time.Time      `json:"t"`
	Level     Level          `json:"level,omitempty"`
	Kind      EventKind      `json:"kind"`
	Comp      string         `json:"comp,omitempty"`       // "fetch", "selection", "ui", "main"
	SessionID string         `json:"session_id,omitempty"` // random hex, same for entire run
	Tag       uint64         `json:"tag,omitempty"`        // selection request tag
	Set       string         `json:"set,omitempty"`        // policy set name
	FileID    string         `json:"file_id,omitempty"`
	Status    int            `json:"status,omitempty"` // HTTP status
	Dur       time.Duration  `json:"-"`
	DurMs     float64        `json:"dur_ms,omitempty"` // computed from Dur at marshal time
	Count     int            `json:"count,omitempty"`
	Err       string         `json:"err,omitempty"`
	Msg       string         `json:"msg,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// MarshalJSON converts Dur to DurMs.
func (e Event) MarshalJSON() ([]byte, error) {
	type alias Event
	a := alias(e)
	if e.Dur > 0 {
		a.DurMs = float64(e.Dur) / float64(time.Millisecond)
	}
	return json.Marshal(a)
}
