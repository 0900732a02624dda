package preview

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the preview's bindings. It satisfies help.KeyMap.
type KeyMap struct {
	Idle     key.Binding
	Thinking key.Binding
	Speaking key.Binding
	Scared   key.Binding
	Busy     key.Binding
	Request  key.Binding
	Reply    key.Binding
	Alarm    key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Idle: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "idle"),
		),
		Thinking: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "thinking"),
		),
		Speaking: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "speaking"),
		),
		Scared: key.NewBinding(
			key.WithKeys("4"),
			key.WithHelp("4", "scared"),
		),
		Busy: key.NewBinding(
			key.WithKeys("b"),
			key.WithHelp("b", "toggle busy"),
		),
		Request: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "send request"),
		),
		Reply: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "reply"),
		),
		Alarm: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "alarming reply"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "more keys"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Request, k.Reply, k.Alarm, k.Help, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Idle, k.Thinking, k.Speaking, k.Scared},
		{k.Busy, k.Request, k.Reply, k.Alarm},
		{k.Help, k.Quit},
	}
}
