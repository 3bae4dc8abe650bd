package screens

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Cancel key.Binding
	Retry  key.Binding
	Remove key.Binding
	Export key.Binding
	Reload key.Binding
	Tab    key.Binding
	Quit   key.Binding

	extra []key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return append([]key.Binding{k.Up, k.Down}, append(k.extra, k.Tab, k.Quit)...)
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

func newKeyMap() keyMap {
	return keyMap{
		Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Cancel: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "cancel")),
		Retry:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry")),
		Remove: key.NewBinding(key.WithKeys("x", "d"), key.WithHelp("x", "remove")),
		Export: key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "export EPUB")),
		Reload: key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "reload")),
		Tab:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch view")),
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) with(bindings ...key.Binding) keyMap {
	k.extra = bindings
	return k
}
