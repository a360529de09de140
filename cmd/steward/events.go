package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abelbrown/steward/internal/config"
	"github.com/abelbrown/steward/internal/otel"
)

// eventsOptions holds the flags of the events command.
type eventsOptions struct {
	file    string
	tail    int
	follow  bool
	kind    string
	level   string
	set     string
	tag     uint64
	rawJSON bool
}

// NewEventsCmd creates the events command, a viewer for the JSONL event log
// written when event_log is enabled.
func NewEventsCmd() *cobra.Command {
	opts := &eventsOptions{}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the JSONL event log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEvents(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.file, "file", "", "event log path (default "+config.EventLogPath()+")")
	cmd.Flags().IntVarP(&opts.tail, "tail", "n", 50, "number of recent matching lines to show")
	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "keep printing new events")
	cmd.Flags().StringVar(&opts.kind, "kind", "", "filter by event kind prefix (e.g. 'selection')")
	cmd.Flags().StringVar(&opts.level, "level", "", "minimum level: debug, info, warn, error")
	cmd.Flags().StringVar(&opts.set, "set", "", "filter by policy set name")
	cmd.Flags().Uint64Var(&opts.tag, "tag", 0, "filter by selection tag")
	cmd.Flags().BoolVar(&opts.rawJSON, "json", false, "output raw JSON lines")

	return cmd
}

// levelRank returns a numeric rank for filtering (higher = more severe).
func levelRank(level otel.Level) int {
	switch level {
	case otel.LevelInfo:
		return 1
	case otel.LevelWarn:
		return 2
	case otel.LevelError:
		return 3
	default:
		return 0
	}
}

func (o *eventsOptions) match(ev otel.Event) bool {
	if o.kind != "" && !strings.HasPrefix(string(ev.Kind), o.kind) {
		return false
	}
	if o.level != "" && levelRank(ev.Level) < levelRank(otel.Level(o.level)) {
		return false
	}
	if o.set != "" && ev.Set != o.set {
		return false
	}
	if o.tag != 0 && ev.Tag != o.tag {
		return false
	}
	return true
}

func (o *eventsOptions) format(ev otel.Event, raw []byte) string {
	if o.rawJSON {
		return string(raw)
	}
	lvl := strings.ToUpper(string(ev.Level))
	if lvl == "" {
		lvl = "?"
	}

	parts := []string{fmt.Sprintf("%s %-5s [%-9s] %-18s", ev.Time.Format("15:04:05.000"), lvl, ev.Comp, ev.Kind)}
	if ev.Set != "" {
		parts = append(parts, fmt.Sprintf("set=%q", ev.Set))
	}
	if ev.Tag != 0 {
		parts = append(parts, fmt.Sprintf("tag=%d", ev.Tag))
	}
	if ev.Status != 0 {
		parts = append(parts, fmt.Sprintf("http=%d", ev.Status))
	}
	if ev.Msg != "" {
		parts = append(parts, "- "+ev.Msg)
	}
	if ev.DurMs > 0 {
		parts = append(parts, fmt.Sprintf("(%.*fms)", durPrecision(ev.DurMs), ev.DurMs))
	}
	if ev.Count > 0 {
		parts = append(parts, fmt.Sprintf("n=%d", ev.Count))
	}
	if ev.Err != "" {
		parts = append(parts, "err="+ev.Err)
	}
	return strings.Join(parts, " ")
}

func runEvents(ctx context.Context, w io.Writer, opts *eventsOptions) error {
	path := opts.file
	if path == "" {
		path = config.EventLogPath()
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("no event log at %s (set event_log: true in the config and run steward first)", path)
		}
		return err
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	for _, l := range readTailLines(reader, opts.tail, opts.match) {
		fmt.Fprintln(w, opts.format(l.ev, l.raw))
	}
	if !opts.follow {
		return nil
	}

	// Poll for lines appended after the initial read.
	for {
		line, err := reader.ReadBytes('\n')
		if errors.Is(err, io.EOF) {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}
		if err != nil {
			return err
		}
		line = trimLine(line)
		var ev otel.Event
		if len(line) == 0 || json.Unmarshal(line, &ev) != nil {
			continue
		}
		if opts.match(ev) {
			fmt.Fprintln(w, opts.format(ev, line))
		}
	}
}

type parsedLine struct {
	ev  otel.Event
	raw []byte
}

// readTailLines reads r to EOF and returns the last n lines matching the
// filter. Lines that are not valid events are skipped.
func readTailLines(r *bufio.Reader, n int, match func(otel.Event) bool) []parsedLine {
	var ring []parsedLine
	if n > 0 {
		ring = make([]parsedLine, 0, n)
	}

	for {
		line, err := r.ReadBytes('\n')
		if err != nil {
			// A trailing line without a newline is still being written.
			break
		}
		raw := trimLine(line)
		if len(raw) == 0 || n <= 0 {
			continue
		}
		var ev otel.Event
		if json.Unmarshal(raw, &ev) != nil || !match(ev) {
			continue
		}
		if len(ring) < n {
			ring = append(ring, parsedLine{ev: ev, raw: raw})
		} else {
			copy(ring, ring[1:])
			ring[n-1] = parsedLine{ev: ev, raw: raw}
		}
	}
	return ring
}

func trimLine(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}

func durPrecision(ms float64) int {
	if ms >= 100 {
		return 0
	}
	if ms >= 1 {
		return 1
	}
	return 2
}
