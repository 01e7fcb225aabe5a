package tui

import (
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// StatusBar - строка статуса со спиннером и произвольными полями справа.
type StatusBar struct {
	mu         sync.RWMutex
	spinner    spinner.Model
	processing bool
	colors     ColorScheme
	extra      func() string
}

// NewStatusBar создаёт строку статуса.
func NewStatusBar(colors ColorScheme) *StatusBar {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colors.AIMessage)
	return &StatusBar{spinner: s, colors: colors}
}

// Tick - команда анимации спиннера.
func (s *StatusBar) Tick() tea.Cmd {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.spinner.Tick
}

// Update обновляет спиннер. Вне обработки тики не продолжаются.
func (s *StatusBar) Update(msg tea.Msg) tea.Cmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.processing {
		return nil
	}
	var cmd tea.Cmd
	s.spinner, cmd = s.spinner.Update(msg)
	return cmd
}

// SetProcessing переключает спиннер.
func (s *StatusBar) SetProcessing(processing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processing = processing
}

// IsProcessing сообщает, идёт ли обработка.
func (s *StatusBar) IsProcessing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.processing
}

// SetExtra задаёт источник дополнительного текста ("Units: metric").
func (s *StatusBar) SetExtra(fn func() string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extra = fn
}

// Render возвращает строку статуса.
func (s *StatusBar) Render() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	text := "✓ Ready"
	fg := s.colors.SystemMessage
	if s.processing {
		text = s.spinner.View() + " Running"
		fg = s.colors.AIMessage
	}

	out := lipgloss.NewStyle().
		Background(s.colors.StatusBackground).
		Foreground(fg).
		Padding(0, 1).
		Render(text)

	if s.extra != nil {
		if extra := s.extra(); extra != "" {
			out += lipgloss.NewStyle().
				Background(s.colors.StatusBackground).
				Foreground(s.colors.StatusForeground).
				Padding(0, 1).
				Render(extra)
		}
	}
	return out
}
