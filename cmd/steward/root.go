package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/abelbrown/steward/internal/config"
	"github.com/abelbrown/steward/internal/fetch"
	"github.com/abelbrown/steward/internal/otel"
)

// NewRootCmd creates the root command. Run without a subcommand it starts
// the TUI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "steward",
		Short: "Terminal dashboard for monitored policy sets",
		Long: `Steward lists every policy set the scraping pipeline monitors, grouped by
category, and shows the latest change analysis and page snapshot for the set
you select. Data is read from a static origin (hashes.json, analysis/, snapshots/).`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd)
		},
	}

	// Global flags override the config file.
	cmd.PersistentFlags().String("config", "", "config file (default $XDG_CONFIG_HOME/steward/config.yaml)")
	cmd.PersistentFlags().String("base-url", "", "origin serving hashes.json, analysis/ and snapshots/")
	cmd.PersistentFlags().Duration("timeout", 0, "per-request HTTP timeout (default 30s)")
	cmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")

	cmd.AddCommand(NewReportCmd())
	cmd.AddCommand(NewEventsCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "steward:", err)
		stop()
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies any flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if flags.Changed("base-url") {
		cfg.BaseURL, _ = flags.GetString("base-url")
	}
	if flags.Changed("timeout") {
		cfg.Timeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newFetcher(cfg *config.Config, events *otel.Logger) (*fetch.Fetcher, error) {
	return fetch.NewFetcher(fetch.Options{
		BaseURL:           cfg.BaseURL,
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		Events:            events,
	})
}
