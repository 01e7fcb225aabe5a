package ui

import (
	"fmt"
	"strings"
)

// View собирает экран: заголовок, журнал, статус, ввод, помощь.
func (m MainModel) View() string {
	if !m.ready {
		return "Initializing UI..."
	}

	width, _ := m.log.Dimensions()

	title := m.task.Title()
	if m.opts.ModelName != "" {
		title = fmt.Sprintf("%s | MODEL: %s", title, m.opts.ModelName)
	}
	header := m.styles.Header.Width(width).Render(title)
	border := m.styles.Border.Render(strings.Repeat("─", width))

	return strings.Join([]string{
		header,
		m.log.View(),
		m.status.Render(),
		border,
		m.textarea.View(),
		m.help.View(m.keys),
	}, "\n")
}
