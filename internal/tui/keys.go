package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the dashboard keybindings.
type KeyMap struct {
	Quit      key.Binding
	TabAll    key.Binding
	TabRun    key.Binding
	TabOK     key.Binding
	TabFail   key.Binding
	NextTab   key.Binding
	NextPage  key.Binding
	PrevPage  key.Binding
	Refresh   key.Binding
	Filter    key.Binding
	Clear     key.Binding
	Sort      key.Binding
	SortDir   key.Binding
	Up        key.Binding
	Down      key.Binding
	Help      key.Binding
	Apply     key.Binding
	Cancel    key.Binding
	NextField key.Binding
	PrevField key.Binding
}

var keys = KeyMap{
	Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	TabAll:    key.NewBinding(key.WithKeys("1"), key.WithHelp("1-4", "tabs")),
	TabRun:    key.NewBinding(key.WithKeys("2")),
	TabOK:     key.NewBinding(key.WithKeys("3")),
	TabFail:   key.NewBinding(key.WithKeys("4")),
	NextTab:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next tab")),
	NextPage:  key.NewBinding(key.WithKeys("n", "right"), key.WithHelp("n/→", "next page")),
	PrevPage:  key.NewBinding(key.WithKeys("p", "left"), key.WithHelp("p/←", "prev page")),
	Refresh:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	Filter:    key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
	Clear:     key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear filters")),
	Sort:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort column")),
	SortDir:   key.NewBinding(key.WithKeys("S"), key.WithHelp("S", "sort direction")),
	Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
	Apply:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "apply")),
	Cancel:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")),
	NextField: key.NewBinding(key.WithKeys("tab", "down"), key.WithHelp("tab", "next field")),
	PrevField: key.NewBinding(key.WithKeys("shift+tab", "up"), key.WithHelp("shift+tab", "prev field")),
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit, k.TabAll, k.NextPage, k.PrevPage, k.Refresh, k.Filter, k.Clear, k.Help}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.NextPage, k.PrevPage},
		{k.TabAll, k.NextTab, k.Filter, k.Clear},
		{k.Sort, k.SortDir, k.Refresh, k.Help, k.Quit},
	}
}

// filterKeys is shown while the filter form is open.
type filterKeys struct{}

func (filterKeys) ShortHelp() []key.Binding {
	return []key.Binding{keys.Apply, keys.Cancel, keys.NextField, keys.PrevField}
}

func (f filterKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{f.ShortHelp()}
}
