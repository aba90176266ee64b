package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the camera screen keybindings.
type KeyMap struct {
	Capture key.Binding
	Lens    key.Binding
	Flash   key.Binding
	Dismiss key.Binding
	Quit    key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Capture: key.NewBinding(
			key.WithKeys(" ", "enter"),
			key.WithHelp("space", "shoot"),
		),
		Lens: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "lens"),
		),
		Flash: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "flash"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("x", "esc"),
			key.WithHelp("x/esc", "close"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}
