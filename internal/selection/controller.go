// Package selection owns the currently selected policy set and the fetch of
// its two artifacts.
//
// The Controller is a four-state machine (None, Pending, Loaded, Errored).
// Select starts a request and returns its Tag; Dispatch performs the two
// fetches concurrently; Settle applies the result only if its Tag is still
// current, so a slow earlier selection can never overwrite a newer one.
//
// The Controller is not safe for concurrent use. It is meant to be driven
// from a single event loop (the Bubble Tea Update function); Dispatch is the
// only part that runs off that loop and it touches no Controller state.
package selection

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/steward/internal/otel"
	"github.com/abelbrown/steward/internal/policy"
)

// State is the selection lifecycle.
type State int

const (
	None State = iota
	Pending
	Loaded
	Errored
)

func (s State) String() string {
	switch s {
	case None:
		return "none"
	case Pending:
		return "pending"
	case Loaded:
		return "loaded"
	case Errored:
		return "errored"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Tag identifies one dispatched selection request.
type Tag uint64

// ArtifactSource fetches the two per-policy-set artifacts. Implementations
// fall back to placeholders for missing artifacts and return an error only
// for transport failures.
type ArtifactSource interface {
	Analysis(ctx context.Context, fileID string) (policy.Analysis, error)
	Snapshot(ctx context.Context, fileID string) (string, error)
}

// Request is a dispatched selection.
type Request struct {
	Tag Tag
	Set policy.PolicySet
}

// Result is the settled outcome of a Request.
type Result struct {
	Tag      Tag
	Set      policy.PolicySet
	Analysis policy.Analysis
	Snapshot string
	Err      error
	Dur      time.Duration
}

// Controller holds the single selection state value.
type Controller struct {
	state    State
	active   policy.PolicySet
	tag      Tag
	analysis policy.Analysis
	snapshot string
	err      error
	events   *otel.Logger
}

// New returns a Controller in the None state. events may be nil.
func New(events *otel.Logger) *Controller {
	return &Controller{events: events}
}

// Select makes set the active selection. It returns ok=false, and nothing
// should be dispatched, when set is already active and pending or loaded.
// Re-selecting an errored set retries.
func (c *Controller) Select(set policy.PolicySet) (Request, bool) {
	if c.state != None && c.state != Errored && c.active.Name == set.Name {
		c.events.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindSelectSkip, Comp: "selection", Tag: uint64(c.tag), Set: set.Name})
		return Request{}, false
	}

	c.tag++
	c.state = Pending
	c.active = set
	c.analysis = policy.Analysis{}
	c.snapshot = ""
	c.err = nil

	c.events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindSelectStart, Comp: "selection", Tag: uint64(c.tag), Set: set.Name, FileID: set.FileID})
	return Request{Tag: c.tag, Set: set}, true
}

// Settle applies a Result. Results for any tag other than the latest are
// discarded and Settle reports false.
func (c *Controller) Settle(r Result) bool {
	if c.state != Pending || r.Tag != c.tag {
		c.events.Emit(otel.Event{
			Level: otel.LevelDebug, Kind: otel.KindSelectDiscard, Comp: "selection",
			Tag: uint64(r.Tag), Set: r.Set.Name, Msg: fmt.Sprintf("current tag %d", c.tag),
		})
		return false
	}

	if r.Err != nil {
		c.state = Errored
		c.err = r.Err
		c.events.Emit(otel.Event{Level: otel.LevelError, Kind: otel.KindSelectError, Comp: "selection", Tag: uint64(r.Tag), Set: r.Set.Name, Err: r.Err.Error(), Dur: r.Dur})
		return true
	}

	c.state = Loaded
	c.analysis = r.Analysis
	c.snapshot = r.Snapshot
	c.events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindSelectLoaded, Comp: "selection", Tag: uint64(r.Tag), Set: r.Set.Name, Dur: r.Dur})
	return true
}

// State returns the current state.
func (c *Controller) State() State { return c.state }

// Tag returns the tag of the latest request, 0 before any selection.
func (c *Controller) Tag() Tag { return c.tag }

// Active returns the selected set; ok is false in the None state.
func (c *Controller) Active() (policy.PolicySet, bool) {
	return c.active, c.state != None
}

// IsActive reports whether name is the current selection.
func (c *Controller) IsActive(name string) bool {
	return c.state != None && c.active.Name == name
}

// Analysis returns the loaded analysis. Zero unless Loaded.
func (c *Controller) Analysis() policy.Analysis { return c.analysis }

// Snapshot returns the loaded snapshot. Empty unless Loaded.
func (c *Controller) Snapshot() string { return c.snapshot }

// Err returns the orchestration error. Nil unless Errored.
func (c *Controller) Err() error { return c.err }

// Message is the user-facing error text naming the selected set, or "".
func (c *Controller) Message() string {
	if c.state != Errored || c.err == nil {
		return ""
	}
	return fmt.Sprintf("Error loading data for %q: %v", c.active.Name, c.err)
}

// Dispatch fetches both artifacts for req concurrently and waits for both.
// It always returns a Result carrying req.Tag. A transport failure or a panic
// in either fetch becomes Result.Err.
func Dispatch(ctx context.Context, src ArtifactSource, req Request) Result {
	start := time.Now()
	res := Result{Tag: req.Tag, Set: req.Set}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(guard("analysis", func() error {
		a, err := src.Analysis(gctx, req.Set.FileID)
		if err != nil {
			return fmt.Errorf("analysis: %w", err)
		}
		res.Analysis = a
		return nil
	}))
	g.Go(guard("snapshot", func() error {
		s, err := src.Snapshot(gctx, req.Set.FileID)
		if err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
		res.Snapshot = s
		return nil
	}))

	if err := g.Wait(); err != nil {
		res.Analysis, res.Snapshot = policy.Analysis{}, ""
		res.Err = err
	}
	res.Dur = time.Since(start)
	return res
}

// guard converts a panic in fn into an error so Dispatch always settles.
func guard(name string, fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%s: panic: %v", name, r)
			}
		}()
		return fn()
	}
}
