// Package report builds a one-shot markdown digest of every monitored policy
// set and its latest analysis, for use outside the TUI.
package report

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/steward/internal/logging"
	"github.com/abelbrown/steward/internal/policy"
)

// DefaultConcurrency bounds in-flight analysis fetches.
const DefaultConcurrency = 4

// Source is the subset of the fetcher a report needs.
type Source interface {
	Manifest(ctx context.Context) ([]policy.PolicySet, error)
	Analysis(ctx context.Context, fileID string) (policy.Analysis, error)
}

// Options narrows and tunes a report run.
type Options struct {
	Category    string // case-insensitive exact match; empty means all
	Concurrency int
}

// Entry is one policy set with its analysis. Err is set when the analysis
// could not be fetched at all; the set is still listed.
type Entry struct {
	Set      policy.PolicySet
	Analysis policy.Analysis
	Err      error
}

// Collect loads the manifest and the analysis of every selected set. Entries
// come back in display order: categories sorted, manifest order within each.
// Only a manifest failure is returned as an error.
func Collect(ctx context.Context, src Source, opts Options) ([]Entry, error) {
	sets, err := src.Manifest(ctx)
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}

	idx := policy.Group(sets)
	var entries []Entry
	for _, cat := range idx.Categories() {
		if opts.Category != "" && !strings.EqualFold(cat, opts.Category) {
			continue
		}
		for _, s := range idx.Sets(cat) {
			entries = append(entries, Entry{Set: s})
		}
	}

	limit := opts.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	log := logging.WithPrefix("report")
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range entries {
		e := &entries[i]
		g.Go(func() error {
			a, err := src.Analysis(gctx, e.Set.FileID)
			if err != nil {
				log.Warn("analysis unavailable", "set", e.Set.Name, "err", err)
				e.Err = err
				return nil
			}
			e.Analysis = a
			return nil
		})
	}
	_ = g.Wait() // per-entry errors are recorded on the entry

	log.Info("report collected", "sets", len(entries), "category", opts.Category)
	return entries, nil
}
