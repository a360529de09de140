package main

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/abelbrown/steward/internal/config"
	"github.com/abelbrown/steward/internal/logging"
	"github.com/abelbrown/steward/internal/report"
)

// reportOptions holds the flags of the report command.
type reportOptions struct {
	category    string
	noColor     bool
	raw         bool
	concurrency int
	width       int
}

// NewReportCmd creates the report command.
func NewReportCmd() *cobra.Command {
	opts := &reportOptions{}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a markdown digest of every policy set's latest analysis",
		Long: `Fetch the manifest and the analysis of every policy set (a few at a time)
and print a markdown report grouped by category. Output is rendered for the
terminal unless --raw is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReport(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.category, "category", "c", "", "only include this category")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "render without colors")
	cmd.Flags().BoolVar(&opts.raw, "raw", false, "print markdown source instead of rendering it")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", report.DefaultConcurrency, "analysis fetches in flight")
	cmd.Flags().IntVar(&opts.width, "width", 100, "wrap width for rendered output")

	return cmd
}

func runReport(cmd *cobra.Command, opts *reportOptions) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := logging.Init(config.LogDir(), cfg.LogLevel); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: file logging disabled: %v\n", err)
	}
	defer logging.Close()

	fetcher, err := newFetcher(cfg, nil)
	if err != nil {
		return err
	}

	entries, err := report.Collect(cmd.Context(), fetcher, report.Options{
		Category:    opts.category,
		Concurrency: opts.concurrency,
	})
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, entries, time.Now()); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return emit(cmd.OutOrStdout(), buf.String(), cfg.Theme, opts)
}

// emit prints the report as raw markdown or rendered for the terminal.
func emit(w io.Writer, md, theme string, opts *reportOptions) error {
	if opts.raw {
		_, err := io.WriteString(w, md)
		return err
	}

	style := theme
	if opts.noColor {
		style = "notty"
	}
	out, err := report.Render(md, style, opts.width)
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}
