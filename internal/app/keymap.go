package app

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings for the VoiceAI TUI.
type KeyMap struct {
	// Focus cycles files / API key / query.
	Focus key.Binding
	// Enter selects a file in the picker or submits from the query panel.
	Enter key.Binding

	Upload     key.Binding
	ToggleMode key.Binding
	Record     key.Binding
	AskAnother key.Binding
	CopySQL    key.Binding
	Activity   key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
	Quit       key.Binding
}

// DefaultKeyMap is the built-in key binding set. Every action uses a ctrl
// chord so plain keys stay free for the text inputs.
var DefaultKeyMap = KeyMap{
	Focus: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("Tab", "focus"),
	),
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("Enter", "select/submit"),
	),
	Upload: key.NewBinding(
		key.WithKeys("ctrl+u"),
		key.WithHelp("^U", "upload"),
	),
	ToggleMode: key.NewBinding(
		key.WithKeys("ctrl+t"),
		key.WithHelp("^T", "voice/text"),
	),
	Record: key.NewBinding(
		key.WithKeys("ctrl+r"),
		key.WithHelp("^R", "record"),
	),
	AskAnother: key.NewBinding(
		key.WithKeys("ctrl+n"),
		key.WithHelp("^N", "ask another"),
	),
	CopySQL: key.NewBinding(
		key.WithKeys("ctrl+y"),
		key.WithHelp("^Y", "copy SQL"),
	),
	Activity: key.NewBinding(
		key.WithKeys("ctrl+l"),
		key.WithHelp("^L", "activity"),
	),
	ScrollUp: key.NewBinding(
		key.WithKeys("pgup"),
		key.WithHelp("PgUp", "scroll"),
	),
	ScrollDown: key.NewBinding(
		key.WithKeys("pgdown"),
		key.WithHelp("PgDn", "scroll"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("^C", "quit"),
	),
}
