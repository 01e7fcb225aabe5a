// Package tui - переиспользуемые помощники Bubble Tea для экранов агента.
//
// Это НЕ готовый TUI (он в internal/ui/), а адаптеры событий, журнал
// с переносом строк, строка статуса и клавиши.
//
//	emitter := events.NewChanEmitter(64)
//	agent.SetEmitter(emitter)
//	cmd := tui.ReceiveEventCmd(emitter.Subscribe(), func(e events.Event) tea.Msg {
//	    return tui.EventMsg(e)
//	})
package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/ilkoid/wxagent/pkg/events"
)

// EventMsg - events.Event как сообщение Bubble Tea.
type EventMsg events.Event

// StreamClosedMsg - канал событий закрыт, запуск завершён.
type StreamClosedMsg struct{}

// ReceiveEventCmd возвращает Cmd, читающий одно событие из Subscriber.
//
// После обработки события Update должен снова вызвать ReceiveEventCmd,
// чтобы продолжить чтение. Закрытый канал даёт StreamClosedMsg.
func ReceiveEventCmd(sub events.Subscriber, converter func(events.Event) tea.Msg) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub.Events()
		if !ok {
			return StreamClosedMsg{}
		}
		if converter == nil {
			return EventMsg(event)
		}
		return converter(event)
	}
}
