package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/ilkoid/wxagent/pkg/events"
	"github.com/ilkoid/wxagent/pkg/tui"
)

// Update обрабатывает ввод, события агента и итог запуска.
func (m MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.textarea.SetWidth(msg.Width)
		m.help.Width = msg.Width
		// Заголовок, статус, разделитель, помощь
		m.log.Resize(msg, 1, m.textarea.Height()+3)
		m.ready = true
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.ToggleHelp):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keys.ToggleState):
			m.showState = !m.showState
			m.appendSystem("Show final state: " + onOff(m.showState))
			return m, nil
		case key.Matches(msg, m.keys.CycleOption):
			if !m.Running() {
				m.task.CycleOption()
			}
			return m, nil
		case key.Matches(msg, m.keys.ScrollUp):
			m.log.ScrollUp(5)
			return m, nil
		case key.Matches(msg, m.keys.ScrollDown):
			m.log.ScrollDown(5)
			return m, nil
		case key.Matches(msg, m.keys.ConfirmInput):
			return m.submit()
		}

	case tui.EventMsg:
		m.appendEvent(events.Event(msg))
		if m.current != nil {
			cmds = append(cmds, tui.ReceiveEventCmd(m.current.sub, nil))
		}
		return m, tea.Batch(cmds...)

	case tui.StreamClosedMsg:
		if m.current != nil {
			m.current.streamDone = true
		}
		return m.finishIfDone()

	case outcomeMsg:
		if m.current != nil {
			out := msg.outcome
			m.current.outcome = &out
		}
		return m.finishIfDone()
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	cmds = append(cmds, cmd, m.log.Update(msg), m.status.Update(msg))
	return m, tea.Batch(cmds...)
}

// submit запускает задачу с текущим вводом.
func (m MainModel) submit() (tea.Model, tea.Cmd) {
	if m.Running() {
		return m, nil
	}
	input := strings.TrimSpace(m.textarea.Value())
	if input == "" {
		m.appendError("Please enter a request.")
		return m, nil
	}
	m.textarea.Reset()
	m.log.Append(m.styles.User.Render("USER > ") + input)

	emitter := events.NewChanEmitter(64)
	m.current = &run{sub: emitter.Subscribe()}
	m.status.SetProcessing(true)

	task, timeout := m.task, m.opts.Timeout
	execute := func() tea.Msg {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		out := task.Execute(ctx, input, emitter)
		emitter.Close()
		return outcomeMsg{outcome: out}
	}

	return m, tea.Batch(
		execute,
		tui.ReceiveEventCmd(m.current.sub, nil),
		m.status.Tick(),
	)
}

// finishIfDone выводит итог, когда пришёл результат и дочитаны события.
func (m MainModel) finishIfDone() (tea.Model, tea.Cmd) {
	if m.current == nil || m.current.outcome == nil || !m.current.streamDone {
		return m, nil
	}
	out := *m.current.outcome
	m.current = nil
	m.status.SetProcessing(false)

	if out.Err != nil {
		m.appendError("ERROR: " + out.Err.Error())
	} else {
		m.appendSystem("Done! Check Telegram if a message was sent.")
	}
	if out.Preview != "" {
		m.log.Append(m.styles.AI.Render("OUTPUT > ") + out.Preview)
	}
	if m.showState && out.State != "" {
		m.log.Append(m.styles.Dim.Render(out.State))
	}
	m.textarea.Focus()
	return m, nil
}

func (m MainModel) appendEvent(e events.Event) {
	text := events.Describe(e)
	if text == "" {
		return
	}
	switch e.Type {
	case events.EventToolCall, events.EventToolResult:
		m.log.Append(m.styles.Tool.Render(text))
	case events.EventObservation, events.EventThinking:
		m.log.Append(m.styles.Dim.Render(text))
	case events.EventError:
		// Ошибка выводится вместе с итогом
	case events.EventDone:
		// Итоговый текст выводится вместе с итогом
	default:
		m.log.Append(m.styles.AI.Render(text))
	}
}

func (m MainModel) appendSystem(s string) {
	m.log.Append(m.styles.System.Render(s))
}

func (m MainModel) appendError(s string) {
	m.log.Append(m.styles.Error.Render(s))
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
