package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/steward/internal/logging"
	"github.com/abelbrown/steward/internal/policy"
	"github.com/abelbrown/steward/internal/selection"
)

const welcomeText = "Select a policy set from the sidebar to view its latest analysis and snapshot."

// markdown renders analysis bodies with glamour, rebuilding the renderer only
// when the wrap width changes.
type markdown struct {
	theme string
	width int
	r     *glamour.TermRenderer
}

func newMarkdown(theme string) *markdown {
	if theme == "" {
		theme = "dark"
	}
	return &markdown{theme: theme}
}

// Render returns src rendered for width columns. On renderer failure the raw
// markdown is returned.
func (m *markdown) Render(src string, width int) string {
	if width < 20 {
		width = 20
	}
	if m.r == nil || m.width != width {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(m.theme),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			logging.Warn("markdown renderer unavailable", "theme", m.theme, "err", err)
			return src
		}
		m.r, m.width = r, width
	}
	out, err := m.r.Render(src)
	if err != nil {
		return src
	}
	return strings.TrimRight(out, "\n")
}

// priorityBadge renders the priority label on its accent color.
func priorityBadge(p policy.Priority) string {
	return Badge.Background(selection.PriorityColor(p)).Render(p.Label())
}

// renderLoaded lays out a loaded selection: header, summary, analysis body
// and snapshot.
func renderLoaded(set policy.PolicySet, a policy.Analysis, snapshot string, width int, md *markdown) string {
	var b strings.Builder

	b.WriteString(ContentTitle.Render(set.Name))
	b.WriteString("  ")
	b.WriteString(priorityBadge(a.Priority))
	b.WriteString("\n")

	meta := []string{"Analysed " + selection.FormatTimestamp(a.DateTime)}
	if h := set.ShortHash(); h != "" {
		meta = append(meta, "hash "+h)
	}
	meta = append(meta, "checked "+selection.FormatTimestamp(set.LastChecked))
	if set.LastAmended != "" {
		meta = append(meta, "amended "+selection.FormatTimestamp(set.LastAmended))
	}
	b.WriteString(ContentMeta.Render(strings.Join(meta, " · ")))
	b.WriteString("\n")
	for _, u := range set.URLs {
		b.WriteString(ContentMeta.Render("  " + u.URL))
		b.WriteString("\n")
	}

	b.WriteString(SectionHeader.Render("Summary"))
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Width(width).Render(a.Summary))
	b.WriteString("\n")

	if strings.TrimSpace(a.Body) != "" {
		b.WriteString(SectionHeader.Render("Analysis"))
		b.WriteString("\n")
		b.WriteString(md.Render(a.Body, width))
		b.WriteString("\n")
	}

	b.WriteString(SectionHeader.Render("Snapshot"))
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Width(width).Render(snapshot))
	b.WriteString("\n")

	return b.String()
}

// renderContent is the viewport body for the controller's current state.
// Pending is drawn by the App with a spinner and has no body.
func renderContent(c *selection.Controller, width int, md *markdown) string {
	switch c.State() {
	case selection.Loaded:
		set, _ := c.Active()
		return renderLoaded(set, c.Analysis(), c.Snapshot(), width, md)
	case selection.Errored:
		return ErrorStyle.Width(width).Render(c.Message()) + "\n" +
			HelpStyle.Render("Press enter to retry.")
	case selection.Pending:
		return ""
	default:
		return HelpStyle.Width(width).Render(welcomeText)
	}
}
