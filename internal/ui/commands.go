package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/steward/internal/policy"
	"github.com/abelbrown/steward/internal/selection"
)

// ManifestSource loads the policy set list.
type ManifestSource interface {
	Manifest(ctx context.Context) ([]policy.PolicySet, error)
}

// ManifestCmd returns a command factory that loads the manifest and reports
// it as ManifestLoaded.
func ManifestCmd(ctx context.Context, src ManifestSource) func() tea.Cmd {
	return func() tea.Cmd {
		return func() tea.Msg {
			start := time.Now()
			sets, err := src.Manifest(ctx)
			return ManifestLoaded{Sets: sets, Err: err, Dur: time.Since(start)}
		}
	}
}

// DispatchCmd returns a command factory that fetches a selection's artifacts
// and reports them as SelectionSettled.
func DispatchCmd(ctx context.Context, src selection.ArtifactSource) func(selection.Request) tea.Cmd {
	return func(req selection.Request) tea.Cmd {
		return func() tea.Msg {
			return SelectionSettled{Result: selection.Dispatch(ctx, src, req)}
		}
	}
}
