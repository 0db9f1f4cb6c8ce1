// Package tui is the terminal dashboard. It renders monitor snapshots and
// forwards key presses to the engine as intents; it never holds job data of
// its own beyond the last snapshot it drew.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/patrickspencer/runwatch/internal/jobs"
	"github.com/patrickspencer/runwatch/internal/monitor"
	"github.com/patrickspencer/runwatch/internal/realtime"
	"github.com/patrickspencer/runwatch/internal/view"
)

// Controller is the part of the monitor engine the dashboard drives.
type Controller interface {
	Snapshot() monitor.Snapshot
	Subscribe() (<-chan realtime.Event, func())
	EditPendingFilter(field jobs.FilterField, value string) error
	ApplyFilters() error
	ClearFilters()
	SelectTab(tab jobs.Tab) error
	NextPage()
	PrevPage()
	RefreshNow()
}

// Options configures the dashboard.
type Options struct {
	// RefreshCaption is shown in the header while the backend is reachable,
	// e.g. "Live · every 60s".
	RefreshCaption string
	Now            func() time.Time
}

type (
	changedMsg struct{}
	closedMsg  struct{}
	clockMsg   time.Time
)

var filterLabels = map[jobs.FilterField]string{
	jobs.FieldJobName:       "Job name",
	jobs.FieldRunID:         "Run ID",
	jobs.FieldStartTimeFrom: "Started from",
	jobs.FieldStartTimeTo:   "Started to",
}

// Model is the Bubble Tea model for the dashboard.
type Model struct {
	ctrl    Controller
	events  <-chan realtime.Event
	unsub   func()
	opts    Options
	snap    monitor.Snapshot
	colSort view.ColumnSort
	rows    []view.Row

	table   table.Model
	inputs  []textinput.Model
	focus   int
	editing bool
	help    help.Model
	flash   string

	width, height int
}

// New builds a dashboard bound to ctrl and subscribes to its changes.
func New(ctrl Controller, opts Options) Model {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	columns := make([]table.Column, len(view.Columns))
	widths := []int{9, 22, 28, 16, 16, 18}
	for i, c := range view.Columns {
		columns[i] = table.Column{Title: c.String(), Width: widths[i]}
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	s := table.DefaultStyles()
	s.Header = tableHeader
	s.Selected = tableSelected
	t.SetStyles(s)

	inputs := make([]textinput.Model, len(jobs.FilterFields))
	for i, f := range jobs.FilterFields {
		ti := textinput.New()
		ti.Prompt = ""
		ti.CharLimit = 64
		ti.Width = 32
		ti.TextStyle = lipgloss.NewStyle().Foreground(textStrong)
		ti.PlaceholderStyle = mutedStyle
		switch f {
		case jobs.FieldStartTimeFrom, jobs.FieldStartTimeTo:
			ti.Placeholder = "YYYY-MM-DD[THH:MM]"
		default:
			ti.Placeholder = "substring"
		}
		inputs[i] = ti
	}

	events, unsub := ctrl.Subscribe()
	m := Model{
		ctrl:   ctrl,
		events: events,
		unsub:  unsub,
		opts:   opts,
		table:  t,
		inputs: inputs,
		help:   help.New(),
	}
	m.refresh()
	return m
}

// Close ends the change subscription.
func (m Model) Close() {
	if m.unsub != nil {
		m.unsub()
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForChange(m.events), clockCmd())
}

// waitForChange blocks until the engine reports a change. Bursts are
// collapsed: one redraw covers every event already queued.
func waitForChange(ch <-chan realtime.Event) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return closedMsg{}
		}
		for {
			select {
			case _, ok := <-ch:
				if !ok {
					return changedMsg{}
				}
			default:
				return changedMsg{}
			}
		}
	}
}

func clockCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return clockMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case changedMsg:
		m.refresh()
		return m, waitForChange(m.events)
	case closedMsg:
		return m, nil
	case clockMsg:
		return m, clockCmd()
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		if h := msg.Height - 12; h > 3 {
			m.table.SetHeight(h)
		}
		return m, nil
	case tea.KeyMsg:
		if m.editing {
			return m.updateEditing(msg)
		}
		return m.updateBrowsing(msg)
	}
	return m, nil
}

func (m Model) updateBrowsing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.flash = ""
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.TabAll):
		m.selectTab(jobs.TabAll)
	case key.Matches(msg, keys.TabRun):
		m.selectTab(jobs.TabRunning)
	case key.Matches(msg, keys.TabOK):
		m.selectTab(jobs.TabSuccess)
	case key.Matches(msg, keys.TabFail):
		m.selectTab(jobs.TabFailed)
	case key.Matches(msg, keys.NextTab):
		m.selectTab(nextTab(m.snap.Query.Tab))
	case key.Matches(msg, keys.NextPage):
		m.ctrl.NextPage()
	case key.Matches(msg, keys.PrevPage):
		m.ctrl.PrevPage()
	case key.Matches(msg, keys.Refresh):
		m.ctrl.RefreshNow()
	case key.Matches(msg, keys.Clear):
		m.ctrl.ClearFilters()
		for i := range m.inputs {
			m.inputs[i].SetValue("")
		}
	case key.Matches(msg, keys.Sort):
		m.colSort = m.colSort.Next()
		m.syncTable()
	case key.Matches(msg, keys.SortDir):
		m.colSort = m.colSort.Toggle()
		m.syncTable()
	case key.Matches(msg, keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, keys.Filter):
		return m.openFilters()
	default:
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) selectTab(t jobs.Tab) {
	if err := m.ctrl.SelectTab(t); err != nil {
		m.flash = err.Error()
	}
}

func nextTab(t jobs.Tab) jobs.Tab {
	for i, v := range jobs.Tabs {
		if v == t {
			return jobs.Tabs[(i+1)%len(jobs.Tabs)]
		}
	}
	return jobs.TabAll
}

func (m Model) openFilters() (tea.Model, tea.Cmd) {
	m.editing = true
	m.focus = 0
	m.table.Blur()
	for i, f := range jobs.FilterFields {
		v, _ := m.snap.Query.Pending.Get(f)
		m.inputs[i].SetValue(v)
		m.inputs[i].Blur()
	}
	return m, m.inputs[0].Focus()
}

func (m Model) closeFilters() Model {
	m.editing = false
	m.inputs[m.focus].Blur()
	m.table.Focus()
	return m
}

func (m Model) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		return m, tea.Quit
	case key.Matches(msg, keys.Cancel):
		return m.closeFilters(), nil
	case key.Matches(msg, keys.Apply):
		if err := m.ctrl.ApplyFilters(); err != nil {
			m.flash = err.Error()
			return m, nil
		}
		m.flash = ""
		return m.closeFilters(), nil
	case key.Matches(msg, keys.NextField), key.Matches(msg, keys.PrevField):
		m.inputs[m.focus].Blur()
		step := 1
		if key.Matches(msg, keys.PrevField) {
			step = len(m.inputs) - 1
		}
		m.focus = (m.focus + step) % len(m.inputs)
		return m, m.inputs[m.focus].Focus()
	}

	before := m.inputs[m.focus].Value()
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	if v := m.inputs[m.focus].Value(); v != before {
		if err := m.ctrl.EditPendingFilter(jobs.FilterFields[m.focus], v); err != nil {
			m.flash = err.Error()
		}
	}
	return m, cmd
}

// refresh pulls a new snapshot and redraws the table.
func (m *Model) refresh() {
	m.snap = m.ctrl.Snapshot()
	m.syncTable()
}

func (m *Model) syncTable() {
	m.rows = view.Project(m.snap.Page.Rows, m.colSort, m.opts.Now())
	trs := make([]table.Row, len(m.rows))
	for i, r := range m.rows {
		trs[i] = table.Row(r.Cells())
	}
	m.table.SetRows(trs)
	if c := m.table.Cursor(); c >= len(trs) && len(trs) > 0 {
		m.table.SetCursor(len(trs) - 1)
	}
}

func (m Model) View() string {
	sections := []string{m.renderHeader(), m.renderTabs()}
	if m.editing {
		sections = append(sections, m.renderFilterForm())
	} else if f := m.renderAppliedFilters(); f != "" {
		sections = append(sections, f)
	}

	if len(m.rows) == 0 {
		msg := view.EmptyMessage
		if !m.snap.HasData && m.snap.Loading {
			msg = "Loading..."
		}
		sections = append(sections, emptyStyle.Render(msg))
	} else {
		sections = append(sections, m.table.View())
		if d := m.renderSelected(); d != "" {
			sections = append(sections, d)
		}
	}

	sections = append(sections, m.renderFooter())
	if m.flash != "" {
		sections = append(sections, bannerStyle.Render(m.flash))
	}
	var hk help.KeyMap = keys
	if m.editing {
		hk = filterKeys{}
	}
	sections = append(sections, m.help.View(hk))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	parts := []string{titleStyle.Render("Job Monitor")}
	if m.snap.LastError != nil {
		parts = append(parts, bannerStyle.Render("⚠ "+view.ErrorBanner(m.snap.LastError)))
	} else {
		parts = append(parts, liveStyle.Render("● "+m.opts.RefreshCaption))
	}
	parts = append(parts, mutedStyle.Render(view.UpdatedCaption(m.snap.LastUpdated, m.opts.Now())))
	if m.snap.Loading {
		parts = append(parts, mutedStyle.Render("refreshing…"))
	}
	return strings.Join(parts, "  ")
}

func (m Model) renderTabs() string {
	tabs := make([]string, len(jobs.Tabs))
	for i, t := range jobs.Tabs {
		label := fmt.Sprintf("%d %s", i+1, view.TabLabel(t, m.snap.Stats))
		if t == m.snap.Query.Tab {
			tabs[i] = activeTabStyle.Render(label)
		} else {
			tabs[i] = tabStyle.Render(label)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) renderFilterForm() string {
	lines := make([]string, len(m.inputs))
	for i, f := range jobs.FilterFields {
		ls := labelStyle
		if i == m.focus {
			ls = focusLabelStyle
		}
		lines[i] = ls.Render(filterLabels[f]) + m.inputs[i].View()
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) renderAppliedFilters() string {
	if !m.snap.HasActiveFilters {
		return mutedStyle.Render("Press '/' to filter")
	}
	var parts []string
	for _, f := range jobs.FilterFields {
		if v, _ := m.snap.Query.Applied.Get(f); strings.TrimSpace(v) != "" {
			parts = append(parts, fmt.Sprintf("%s=%q", filterLabels[f], strings.TrimSpace(v)))
		}
	}
	caption := view.ResultsCaption(m.snap.Page.TotalElements, true)
	return mutedStyle.Render("Filters: " + strings.Join(parts, ", ") + " · " + caption + " · 'c' to clear")
}

func (m Model) renderSelected() string {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.rows) {
		return ""
	}
	r := m.rows[i]
	badge := lipgloss.NewStyle().Bold(true).Foreground(statusColor(r.Status)).Render(string(r.Status))
	line := fmt.Sprintf("#%d %s %s", r.ID, badge, r.JobName)
	if r.ErrorMessage != "" {
		line += "  " + bannerStyle.Render(r.ErrorMessage)
	}
	return line
}

func (m Model) renderFooter() string {
	q := m.snap.Query
	parts := []string{
		view.PageCaption(q.Page, q.TotalPages),
		"sort: " + m.colSort.Label(),
	}
	return mutedStyle.Render(strings.Join(parts, " · "))
}
