package tui

import "github.com/charmbracelet/lipgloss"

// ColorScheme определяет цвета элементов TUI.
type ColorScheme struct {
	StatusBackground lipgloss.Color
	StatusForeground lipgloss.Color

	SystemMessage lipgloss.Color // Служебные строки
	UserMessage   lipgloss.Color // Ввод пользователя
	AIMessage     lipgloss.Color // Ответ модели
	ToolMessage   lipgloss.Color // Вызовы инструментов
	ErrorMessage  lipgloss.Color
	Dim           lipgloss.Color // Результаты инструментов, состояние

	Border lipgloss.Color
}

// ColorSchemes - предустановленные схемы.
var ColorSchemes = map[string]ColorScheme{
	"default": {
		StatusBackground: lipgloss.Color("235"),
		StatusForeground: lipgloss.Color("252"),
		SystemMessage:    lipgloss.Color("242"),
		UserMessage:      lipgloss.Color("226"),
		AIMessage:        lipgloss.Color("86"),
		ToolMessage:      lipgloss.Color("99"),
		ErrorMessage:     lipgloss.Color("196"),
		Dim:              lipgloss.Color("245"),
		Border:           lipgloss.Color("240"),
	},
	"light": {
		StatusBackground: lipgloss.Color("255"),
		StatusForeground: lipgloss.Color("0"),
		SystemMessage:    lipgloss.Color("8"),
		UserMessage:      lipgloss.Color("130"),
		AIMessage:        lipgloss.Color("31"),
		ToolMessage:      lipgloss.Color("90"),
		ErrorMessage:     lipgloss.Color("1"),
		Dim:              lipgloss.Color("245"),
		Border:           lipgloss.Color("8"),
	},
	"dracula": {
		StatusBackground: lipgloss.Color("#282a36"),
		StatusForeground: lipgloss.Color("#f8f8f2"),
		SystemMessage:    lipgloss.Color("#6272a4"),
		UserMessage:      lipgloss.Color("#f1fa8c"),
		AIMessage:        lipgloss.Color("#8be9fd"),
		ToolMessage:      lipgloss.Color("#bd93f9"),
		ErrorMessage:     lipgloss.Color("#ff5555"),
		Dim:              lipgloss.Color("#44475a"),
		Border:           lipgloss.Color("#44475a"),
	},
}

// GetColorScheme возвращает схему по имени, иначе default.
func GetColorScheme(name string) ColorScheme {
	if scheme, ok := ColorSchemes[name]; ok {
		return scheme
	}
	return ColorSchemes["default"]
}

// Styles - готовые lipgloss стили схемы.
type Styles struct {
	Header lipgloss.Style
	User   lipgloss.Style
	AI     lipgloss.Style
	Tool   lipgloss.Style
	System lipgloss.Style
	Error  lipgloss.Style
	Dim    lipgloss.Style
	Border lipgloss.Style
}

// NewStyles строит стили по схеме.
func NewStyles(c ColorScheme) Styles {
	return Styles{
		Header: lipgloss.NewStyle().
			Foreground(c.StatusForeground).
			Background(c.StatusBackground).
			Padding(0, 1).
			Bold(true),
		User:   lipgloss.NewStyle().Foreground(c.UserMessage).Bold(true),
		AI:     lipgloss.NewStyle().Foreground(c.AIMessage),
		Tool:   lipgloss.NewStyle().Foreground(c.ToolMessage),
		System: lipgloss.NewStyle().Foreground(c.SystemMessage),
		Error:  lipgloss.NewStyle().Foreground(c.ErrorMessage).Bold(true),
		Dim:    lipgloss.NewStyle().Foreground(c.Dim),
		Border: lipgloss.NewStyle().Foreground(c.Border),
	}
}
