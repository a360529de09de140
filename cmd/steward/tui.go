package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/abelbrown/steward/internal/config"
	"github.com/abelbrown/steward/internal/logging"
	"github.com/abelbrown/steward/internal/otel"
	"github.com/abelbrown/steward/internal/ui"
)

func runTUI(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := logging.Init(config.LogDir(), cfg.LogLevel); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: file logging disabled: %v\n", err)
	}
	defer logging.Close()

	events, closeEvents := openEventLog(cmd, cfg)
	defer closeEvents()

	ring := otel.NewRingBuffer(otel.DefaultRingSize)
	events.SetRingBuffer(ring)
	events.Info(otel.KindStartup, "main", "steward "+getVersion())

	fetcher, err := newFetcher(cfg, events)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	app := ui.NewApp(ui.AppConfig{
		LoadManifest: ui.ManifestCmd(ctx, fetcher),
		Fetch:        ui.DispatchCmd(ctx, fetcher),
		Events:       events,
		Ring:         ring,
		Theme:        cfg.Theme,
	})

	program := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = program.Run()
	events.Info(otel.KindShutdown, "main", "")
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil // interrupted
	}
	if err != nil {
		logging.Error("program exited", "err", err)
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}

// openEventLog returns the JSONL event logger, writing to the event log file
// when enabled and discarding otherwise. The returned func flushes and closes.
func openEventLog(cmd *cobra.Command, cfg *config.Config) (*otel.Logger, func()) {
	if !cfg.EventLog {
		l := otel.NewNullLogger()
		return l, l.Close
	}

	path := config.EventLogPath()
	if err := os.MkdirAll(config.LogDir(), 0755); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: event log disabled: %v\n", err)
		l := otel.NewNullLogger()
		return l, l.Close
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: event log disabled: %v\n", err)
		l := otel.NewNullLogger()
		return l, l.Close
	}

	l := otel.NewLogger(f)
	return l, func() {
		l.Close()
		f.Close()
	}
}
