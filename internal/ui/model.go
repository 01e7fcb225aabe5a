// Package ui - экран Bubble Tea для think агента и конвейера погоды.
//
// Запуск идёт в tea.Cmd, события агента читаются из канала и попадают
// в журнал по мере поступления. Итог показывается, когда завершился
// запуск и закрылся канал событий.
package ui

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/ilkoid/wxagent/pkg/events"
	"github.com/ilkoid/wxagent/pkg/tui"
)

// Options - настройки экрана.
type Options struct {
	ColorScheme string
	ModelName   string        // Для заголовка
	Timeout     time.Duration // Таймаут одного запуска, 0 = без ограничения
	ShowState   bool          // Показывать итоговое состояние
}

// outcomeMsg - запуск завершён.
type outcomeMsg struct {
	outcome Outcome
}

// run - незавершённый запуск.
type run struct {
	sub        events.Subscriber
	outcome    *Outcome
	streamDone bool
}

// MainModel - модель Bubble Tea.
//
// Изменяемые части (журнал, статус) хранятся указателями: Update
// работает с копией модели.
type MainModel struct {
	task     Task
	opts     Options
	styles   tui.Styles
	keys     tui.KeyMap
	help     help.Model
	textarea textarea.Model
	log      *tui.LogView
	status   *tui.StatusBar

	current   *run
	showState bool
	ready     bool
}

// InitialModel создаёт начальное состояние экрана.
func InitialModel(task Task, opts Options) MainModel {
	colors := tui.GetColorScheme(opts.ColorScheme)
	styles := tui.NewStyles(colors)

	ta := textarea.New()
	ta.Placeholder = task.Placeholder()
	ta.Focus()
	ta.Prompt = "┃ "
	ta.CharLimit = 1000
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	log := tui.NewLogView()
	log.Append(styles.System.Render(task.Title()))
	log.Append(styles.System.Render("Ready. Enter a request and press Enter."))

	status := tui.NewStatusBar(colors)
	status.SetExtra(task.Option)

	return MainModel{
		task:      task,
		opts:      opts,
		styles:    styles,
		keys:      tui.DefaultKeyMap(),
		help:      help.New(),
		textarea:  ta,
		log:       log,
		status:    status,
		showState: opts.ShowState,
	}
}

// Init запускает мигание курсора.
func (m MainModel) Init() tea.Cmd {
	return textarea.Blink
}

// Running сообщает, идёт ли запуск.
func (m MainModel) Running() bool {
	return m.current != nil
}

// Log возвращает строки журнала.
func (m MainModel) Log() []string {
	return m.log.Lines()
}
