package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/steward/internal/otel"
	"github.com/abelbrown/steward/internal/policy"
	"github.com/abelbrown/steward/internal/selection"
)

// AppConfig holds the command factories and optional observability hooks.
// App never talks to the network itself; it only returns these commands.
type AppConfig struct {
	LoadManifest func() tea.Cmd
	Fetch        func(req selection.Request) tea.Cmd

	Events *otel.Logger     // optional
	Ring   *otel.RingBuffer // optional, powers the debug overlay
	Theme  string           // glamour standard style: "dark", "light", "notty"
}

type focus int

const (
	focusSidebar focus = iota
	focusContent
)

type keyMap struct {
	Quit, Up, Down, Top, Bottom, Select, Focus, Filter, Clear, Reload, Debug key.Binding
}

var keys = keyMap{
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Up:     key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("↑/k", "up")),
	Down:   key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("↓/j", "down")),
	Top:    key.NewBinding(key.WithKeys("g", "home")),
	Bottom: key.NewBinding(key.WithKeys("G", "end")),
	Select: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
	Focus:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "focus")),
	Filter: key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
	Clear:  key.NewBinding(key.WithKeys("esc")),
	Reload: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
	Debug:  key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "debug")),
}

// App is the root Bubble Tea model.
// IMPORTANT: App does NOT hold the fetcher. It receives data via messages.
type App struct {
	cfg     AppConfig
	grouper *policy.Grouper
	ctrl    *selection.Controller
	md      *markdown

	sets            []policy.PolicySet
	manifestErr     error
	manifestLoading bool

	cursor    int
	focus     focus
	filtering bool
	filter    textinput.Model
	content   viewport.Model
	spinner   spinner.Model

	width        int
	height       int
	ready        bool
	debugVisible bool
}

// NewApp creates an App from cfg.
func NewApp(cfg AppConfig) App {
	fi := textinput.New()
	fi.Prompt = FilterBarPrompt.Render("/")
	fi.Placeholder = "filter by name"
	fi.CharLimit = 64

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return App{
		cfg:             cfg,
		grouper:         &policy.Grouper{},
		ctrl:            selection.New(cfg.Events),
		md:              newMarkdown(cfg.Theme),
		manifestLoading: cfg.LoadManifest != nil,
		filter:          fi,
		content:         viewport.New(80, 20),
		spinner:         sp,
	}
}

// Init starts the manifest load.
func (a App) Init() tea.Cmd {
	if a.cfg.LoadManifest == nil {
		return nil
	}
	return tea.Batch(a.cfg.LoadManifest(), a.spinner.Tick)
}

// Update handles messages and returns the updated model and any commands.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		a.layout()
		return a, nil

	case ManifestLoaded:
		a.manifestLoading = false
		if msg.Err != nil {
			a.manifestErr = msg.Err
			a.sets = nil
		} else {
			a.manifestErr = nil
			a.sets = msg.Sets
		}
		a.clampCursor()
		return a, nil

	case SelectionSettled:
		if a.ctrl.Settle(msg.Result) {
			a.refreshContent()
		}
		return a, nil

	case spinner.TickMsg:
		if !a.busy() {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	if a.filtering {
		var cmd tea.Cmd
		a.filter, cmd = a.filter.Update(msg)
		return a, cmd
	}
	return a, nil
}

// handleKeyMsg processes keyboard input.
func (a App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.filtering {
		return a.handleFilterKey(msg)
	}

	a.cfg.Events.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindKeyPress, Comp: "ui", Msg: msg.String()})

	switch {
	case key.Matches(msg, keys.Quit):
		return a, tea.Quit

	case key.Matches(msg, keys.Debug):
		a.debugVisible = !a.debugVisible
		return a, nil

	case a.debugVisible:
		// Overlay swallows everything else.
		return a, nil

	case key.Matches(msg, keys.Filter):
		a.filtering = true
		a.focus = focusSidebar
		cmd := a.filter.Focus()
		return a, cmd

	case key.Matches(msg, keys.Clear):
		if a.filter.Value() != "" {
			a.filter.Reset()
			a.cursor = 0
		}
		return a, nil

	case key.Matches(msg, keys.Focus):
		if a.focus == focusSidebar {
			a.focus = focusContent
		} else {
			a.focus = focusSidebar
		}
		return a, nil

	case key.Matches(msg, keys.Reload):
		if a.cfg.LoadManifest == nil || a.manifestLoading {
			return a, nil
		}
		a.manifestLoading = true
		a.manifestErr = nil
		return a, tea.Batch(a.cfg.LoadManifest(), a.spinner.Tick)

	case key.Matches(msg, keys.Select):
		return a.selectAtCursor()
	}

	if a.focus == focusSidebar {
		n := len(a.entries())
		switch {
		case key.Matches(msg, keys.Down):
			if a.cursor < n-1 {
				a.cursor++
			}
			return a, nil
		case key.Matches(msg, keys.Up):
			if a.cursor > 0 {
				a.cursor--
			}
			return a, nil
		case key.Matches(msg, keys.Top):
			a.cursor = 0
			return a, nil
		case key.Matches(msg, keys.Bottom):
			if n > 0 {
				a.cursor = n - 1
			}
			return a, nil
		}
	}

	// pgup/pgdn always scroll the content; other keys only when it has focus.
	if a.focus == focusContent || msg.Type == tea.KeyPgUp || msg.Type == tea.KeyPgDown {
		var cmd tea.Cmd
		a.content, cmd = a.content.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a App) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		a.filtering = false
		a.filter.Blur()
		a.filter.Reset()
		a.cursor = 0
		return a, nil
	case tea.KeyEnter:
		a.filtering = false
		a.filter.Blur()
		return a, nil
	case tea.KeyCtrlC:
		return a, tea.Quit
	}

	before := a.filter.Value()
	var cmd tea.Cmd
	a.filter, cmd = a.filter.Update(msg)
	if a.filter.Value() != before {
		a.cursor = 0
	}
	return a, cmd
}

// selectAtCursor hands the entry under the cursor to the controller and, if
// the controller asks for it, dispatches the artifact fetch.
func (a App) selectAtCursor() (tea.Model, tea.Cmd) {
	entries := a.entries()
	if a.cursor < 0 || a.cursor >= len(entries) {
		return a, nil
	}
	req, ok := a.ctrl.Select(entries[a.cursor].Set)
	if !ok {
		return a, nil
	}
	a.refreshContent()
	if a.cfg.Fetch == nil {
		return a, a.spinner.Tick
	}
	return a, tea.Batch(a.cfg.Fetch(req), a.spinner.Tick)
}

// entries is the visible sidebar list. Grouping is memoized on the manifest
// slice so this is cheap to call per keypress and per frame.
func (a *App) entries() []sidebarEntry {
	return flatten(a.grouper.Group(a.sets), a.filter.Value())
}

func (a *App) clampCursor() {
	n := len(a.entries())
	if a.cursor >= n {
		a.cursor = n - 1
	}
	if a.cursor < 0 {
		a.cursor = 0
	}
}

func (a *App) busy() bool {
	return a.manifestLoading || a.ctrl.State() == selection.Pending
}

// Pane widths. The sidebar border takes one column.
func (a *App) sidebarWidth() int {
	w := a.width / 3
	if w < 28 {
		w = 28
	}
	if w > 48 {
		w = 48
	}
	return w
}

func (a *App) contentWidth() int {
	w := a.width - a.sidebarWidth() - 2
	if w < 20 {
		w = 20
	}
	return w
}

func (a *App) bodyHeight() int {
	h := a.height - 1 // status bar
	if h < 1 {
		h = 1
	}
	return h
}

func (a *App) layout() {
	a.content.Width = a.contentWidth()
	a.content.Height = a.bodyHeight()
	a.refreshContent()
}

func (a *App) refreshContent() {
	a.content.SetContent(renderContent(a.ctrl, a.content.Width-1, a.md))
	a.content.GotoTop()
}

// View renders the UI.
func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}

	if a.debugVisible {
		overlay := debugOverlay(a.cfg.Ring, a.width, a.height-1)
		if overlay == "" {
			overlay = HelpStyle.Render("Event ring not attached.")
		}
		return lipgloss.Place(a.width, a.height-1, lipgloss.Center, lipgloss.Center, overlay) +
			"\n" + debugStatusBar(a.width)
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		SidebarPane.Width(a.sidebarWidth()).Height(a.bodyHeight()).Render(a.sidebarView()),
		lipgloss.NewStyle().PaddingLeft(1).Render(a.contentView()),
	)
	return body + "\n" + a.statusBar()
}

// sidebarView renders the title, filter, banner or loading text, and the
// grouped entries.
func (a *App) sidebarView() string {
	width := a.sidebarWidth()
	entries := a.entries()

	var parts []string
	parts = append(parts, SidebarHeader.Render(sidebarTitle(len(a.sets))))
	if a.filtering || a.filter.Value() != "" {
		a.filter.Width = width - 4
		parts = append(parts, " "+a.filter.View()+" "+FilterBarCount.Render(fmt.Sprintf("%d/%d", len(entries), len(a.sets))))
	}

	switch {
	case a.manifestErr != nil:
		parts = append(parts, ErrorStyle.Width(width).Render("Could not load policy sets: "+a.manifestErr.Error()),
			HelpStyle.Render("Press r to retry."))
	case a.manifestLoading:
		parts = append(parts, HelpStyle.Render(a.spinner.View()+" Loading policy sets…"))
	case len(a.sets) == 0:
		parts = append(parts, HelpStyle.Render("No policy sets to display."))
	case len(entries) == 0:
		parts = append(parts, HelpStyle.Render("No policy sets match the filter."))
	default:
		used := lipgloss.Height(strings.Join(parts, "\n"))
		active := ""
		if set, ok := a.ctrl.Active(); ok {
			active = set.Name
		}
		parts = append(parts, renderEntries(entries, a.cursor, active, width, a.bodyHeight()-used))
	}
	return strings.Join(parts, "\n")
}

// contentView renders the content pane: spinner while pending, otherwise the
// scrollable viewport.
func (a *App) contentView() string {
	if a.ctrl.State() == selection.Pending {
		set, _ := a.ctrl.Active()
		return HelpStyle.Render(a.spinner.View() + " Loading " + set.Name + "…")
	}
	return a.content.View()
}

func (a *App) statusBar() string {
	hint := func(k, desc string) string {
		return StatusBarKey.Render(k) + StatusBarText.Render(":"+desc)
	}
	hints := []string{hint("j/k", "move"), hint("enter", "open"), hint("tab", "focus"), hint("/", "filter"), hint("r", "reload"), hint("D", "debug"), hint("q", "quit")}

	pos := "0/0"
	if n := len(a.entries()); n > 0 {
		pos = fmt.Sprintf("%d/%d", a.cursor+1, n)
	}
	pane := "sidebar"
	if a.focus == focusContent {
		pane = "content"
	}
	return StatusBar.Width(a.width).Render(fmt.Sprintf("%s  [%s]  %s", pos, pane, strings.Join(hints, " ")))
}

// Cursor returns the current cursor position (for testing).
func (a App) Cursor() int {
	return a.cursor
}

// Sets returns the loaded manifest (for testing).
func (a App) Sets() []policy.PolicySet {
	return a.sets
}

// Selection returns the selection controller (for testing).
func (a App) Selection() *selection.Controller {
	return a.ctrl
}

// ManifestErr returns the manifest load error shown in the sidebar banner.
func (a App) ManifestErr() error {
	return a.manifestErr
}
