package tui

import (
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/reflow/wrap"
)

// LogView - журнал поверх viewport.
//
// Хранит исходные строки без переноса и переносит их заново при каждом
// изменении ширины. Позиция прокрутки сохраняется, если пользователь
// ушёл вверх по истории.
type LogView struct {
	mu       sync.RWMutex
	viewport viewport.Model
	lines    []string
}

// NewLogView создаёт пустой журнал. Размеры задаются в Resize.
func NewLogView() *LogView {
	return &LogView{viewport: viewport.New(0, 0)}
}

// Resize пересчитывает размеры по окну терминала.
//
// Высота не опускается ниже 1, ширина ниже 20.
func (l *LogView) Resize(msg tea.WindowSizeMsg, headerHeight, footerHeight int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	height := msg.Height - headerHeight - footerHeight
	if height < 1 {
		height = 1
	}
	width := msg.Width
	if width < 20 {
		width = 20
	}

	// Позиция до изменения высоты
	wasAtBottom := l.atBottomLocked()

	l.viewport.Height = height
	l.viewport.Width = width
	l.viewport.SetContent(l.renderLocked())

	if wasAtBottom {
		l.viewport.GotoBottom()
		return
	}
	maxOffset := l.viewport.TotalLineCount() - l.viewport.Height
	if maxOffset < 0 {
		maxOffset = 0
	}
	if l.viewport.YOffset > maxOffset {
		l.viewport.SetYOffset(maxOffset)
	}
}

// Append добавляет строку и прокручивает вниз, если журнал был внизу.
func (l *LogView) Append(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	wasAtBottom := l.atBottomLocked()
	l.lines = append(l.lines, line)
	l.viewport.SetContent(l.renderLocked())
	if wasAtBottom {
		l.viewport.GotoBottom()
	}
}

// Lines возвращает копию исходных строк.
func (l *LogView) Lines() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.lines...)
}

// Update передаёт сообщение viewport (прокрутка колесом и клавишами).
func (l *LogView) Update(msg tea.Msg) tea.Cmd {
	l.mu.Lock()
	defer l.mu.Unlock()
	var cmd tea.Cmd
	l.viewport, cmd = l.viewport.Update(msg)
	return cmd
}

// ScrollUp прокручивает на n строк вверх.
func (l *LogView) ScrollUp(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.viewport.ScrollUp(n)
}

// ScrollDown прокручивает на n строк вниз.
func (l *LogView) ScrollDown(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.viewport.ScrollDown(n)
}

// Dimensions возвращает ширину и высоту области.
func (l *LogView) Dimensions() (width, height int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.viewport.Width, l.viewport.Height
}

// View рендерит видимую часть журнала.
func (l *LogView) View() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.viewport.View()
}

func (l *LogView) atBottomLocked() bool {
	return l.viewport.YOffset+l.viewport.Height >= l.viewport.TotalLineCount()
}

func (l *LogView) renderLocked() string {
	if l.viewport.Width <= 0 {
		return strings.Join(l.lines, "\n")
	}
	wrapped := make([]string, 0, len(l.lines))
	for _, line := range l.lines {
		wrapped = append(wrapped, wrap.String(line, l.viewport.Width))
	}
	return strings.Join(wrapped, "\n")
}
