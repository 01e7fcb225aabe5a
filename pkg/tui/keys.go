package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap определяет клавиатурные сокращения экранов агента.
type KeyMap struct {
	Quit         key.Binding
	ScrollUp     key.Binding
	ScrollDown   key.Binding
	ToggleHelp   key.Binding
	ConfirmInput key.Binding
	ToggleState  key.Binding // Показ итогового состояния
	CycleOption  key.Binding // Переключение настройки экрана (единицы)
}

// ShortHelp реализует help.KeyMap.
func (km KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{km.ConfirmInput, km.ToggleState, km.CycleOption, km.ToggleHelp, km.Quit}
}

// FullHelp реализует help.KeyMap.
func (km KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{km.ScrollUp, km.ScrollDown, km.ToggleHelp},
		{km.ConfirmInput, km.ToggleState, km.CycleOption},
		{km.Quit},
	}
}

// DefaultKeyMap возвращает KeyMap по умолчанию.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "esc"),
			key.WithHelp("Ctrl+C", "quit"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("ctrl+u", "pgup"),
			key.WithHelp("Ctrl+U", "scroll up"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("ctrl+d", "pgdown"),
			key.WithHelp("Ctrl+D", "scroll down"),
		),
		ToggleHelp: key.NewBinding(
			key.WithKeys("ctrl+h"),
			key.WithHelp("Ctrl+H", "toggle help"),
		),
		ConfirmInput: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "run"),
		),
		ToggleState: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("Ctrl+S", "show final state"),
		),
		CycleOption: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("Ctrl+T", "switch units"),
		),
	}
}
