package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the application.
type keyMap struct {
	// Global
	Quit   key.Binding
	Help   key.Binding
	Escape key.Binding

	// Navigation
	Up   key.Binding
	Down key.Binding

	// Tabs
	NextTab key.Binding
	PrevTab key.Binding
	Back    key.Binding

	// Pagination
	NextPage key.Binding
	Reload   key.Binding

	// Selection
	ToggleSelect key.Binding
	SelectAll    key.Binding

	// Labeling
	Label       key.Binding
	LabelStream key.Binding
	NextRecord  key.Binding

	// Actions
	Actions key.Binding
	Confirm key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "Toggle help"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "Close labeling / overlay"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("k/↑", "Highlight previous"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("j/↓", "Highlight next"),
		),
		NextTab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "Next view"),
		),
		PrevTab: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "Previous view"),
		),
		Back: key.NewBinding(
			key.WithKeys("backspace"),
			key.WithHelp("backspace", "Back to previous view"),
		),
		NextPage: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "Fetch next page"),
		),
		Reload: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Reload view"),
		),
		ToggleSelect: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "Toggle row selection"),
		),
		SelectAll: key.NewBinding(
			key.WithKeys("A"),
			key.WithHelp("A", "Select all"),
		),
		Label: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Label highlighted record"),
		),
		LabelStream: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "Start label stream"),
		),
		NextRecord: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("l/→", "Next record (stream)"),
		),
		Actions: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "Actions"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Confirm"),
		),
	}
}
