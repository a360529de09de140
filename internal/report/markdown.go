package report

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/nao1215/markdown"

	"github.com/abelbrown/steward/internal/policy"
	"github.com/abelbrown/steward/internal/selection"
)

// Write renders entries as a markdown report to w.
func Write(w io.Writer, entries []Entry, generated time.Time) error {
	md := markdown.NewMarkdown(w)

	md.H1("Steward Policy Report")
	md.PlainText("")
	md.PlainTextf("Generated %s (%s)", generated.In(time.UTC).Format(time.RFC3339), selection.DisplayZone)
	md.PlainText("")

	writeSummary(md, entries)
	writeEntries(md, entries)

	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Analyses are produced daily by the scraping pipeline; placeholders mean no analysis has been published yet.*")

	return md.Build()
}

func writeSummary(md *markdown.Markdown, entries []Entry) {
	counts := make(map[policy.Priority]int)
	failed := 0
	for _, e := range entries {
		if e.Err != nil {
			failed++
			continue
		}
		counts[policy.ParsePriority(string(e.Analysis.Priority))]++
	}

	md.H2("Summary")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Priority", "Policy sets"},
		Rows: [][]string{
			{"Critical", strconv.Itoa(counts[policy.PriorityCritical])},
			{"High", strconv.Itoa(counts[policy.PriorityHigh])},
			{"Medium", strconv.Itoa(counts[policy.PriorityMedium])},
			{"Low", strconv.Itoa(counts[policy.PriorityLow])},
			{"Unknown", strconv.Itoa(counts[policy.PriorityUnknown])},
			{"Unavailable", strconv.Itoa(failed)},
			{"**Total**", "**" + strconv.Itoa(len(entries)) + "**"},
		},
	})
	md.PlainText("")

	switch {
	case len(entries) == 0:
		md.Note("No policy sets are being monitored.")
	case counts[policy.PriorityCritical] > 0:
		md.Cautionf("%d policy set(s) have critical changes.", counts[policy.PriorityCritical])
	case counts[policy.PriorityHigh] > 0:
		md.Warningf("%d policy set(s) have high priority changes.", counts[policy.PriorityHigh])
	default:
		md.Tip("No critical or high priority changes.")
	}
	md.PlainText("")
}

func writeEntries(md *markdown.Markdown, entries []Entry) {
	category := ""
	for _, e := range entries {
		if e.Set.Category != category {
			category = e.Set.Category
			md.H2(category)
			md.PlainText("")
		}

		md.PlainText("### " + e.Set.Name)
		md.PlainText("")

		rows := [][]string{
			{"Priority", priorityCell(e)},
			{"Analysed", selection.FormatTimestamp(e.Analysis.DateTime)},
			{"Last checked", selection.FormatTimestamp(e.Set.LastChecked)},
		}
		if e.Set.LastAmended != "" {
			rows = append(rows, []string{"Last amended", selection.FormatTimestamp(e.Set.LastAmended)})
		}
		if h := e.Set.ShortHash(); h != "" {
			rows = append(rows, []string{"Hash", "`" + h + "`"})
		}
		md.Table(markdown.TableSet{Header: []string{"Property", "Value"}, Rows: rows})
		md.PlainText("")

		urls := make([]string, 0, len(e.Set.URLs))
		for _, u := range e.Set.URLs {
			urls = append(urls, u.URL)
		}
		md.BulletList(urls...)
		md.PlainText("")

		if e.Err != nil {
			md.Warningf("Could not load analysis: %v", e.Err)
			md.PlainText("")
			continue
		}
		md.PlainText("**" + e.Analysis.Summary + "**")
		md.PlainText("")
		if body := strings.TrimSpace(e.Analysis.Body); body != "" {
			md.PlainText(body)
			md.PlainText("")
		}
	}
}

func priorityCell(e Entry) string {
	if e.Err != nil {
		return "-"
	}
	return e.Analysis.Priority.Label()
}

// Render formats markdown for a terminal using a glamour standard style
// ("dark", "light", "notty").
func Render(src, style string, width int) (string, error) {
	if width <= 0 {
		width = 100
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	return r.Render(src)
}
