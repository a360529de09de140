// Package ui provides the Bubble Tea TUI for Steward.
package ui

import (
	"time"

	"github.com/abelbrown/steward/internal/policy"
	"github.com/abelbrown/steward/internal/selection"
)

// ManifestLoaded is sent when the manifest fetch finishes.
type ManifestLoaded struct {
	Sets []policy.PolicySet
	Err  error
	Dur  time.Duration
}

// SelectionSettled is sent when both artifacts of a selection have been
// fetched. Result.Tag is checked against the controller before it is applied.
type SelectionSettled struct {
	Result selection.Result
}
