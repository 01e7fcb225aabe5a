// Package events описывает события, которые агент отправляет во время работы.
//
// Emitter - порт для UI (TUI, CLI, логи): библиотечный код отправляет события,
// не зная, кто их читает.
//
//	emitter := events.NewChanEmitter(64)
//	agent.SetEmitter(emitter)
//
//	for ev := range emitter.Subscribe().Events() {
//	    switch ev.Type {
//	    case events.EventToolCall:
//	        ui.showToolCall(ev.Data.(events.ToolCallData))
//	    case events.EventDone:
//	        ui.showFinal(ev.Data.(events.MessageData))
//	    }
//	}
package events

import (
	"context"
	"time"
)

// EventType представляет тип события от агента.
type EventType string

const (
	// EventThinking - агент отправил очередной запрос модели.
	EventThinking EventType = "thinking"

	// EventToolCall - агент вызывает инструмент.
	EventToolCall EventType = "tool_call"

	// EventToolResult - инструмент вернул результат (или ошибку в виде результата).
	EventToolResult EventType = "tool_result"

	// EventObservation - раунд инструментов завершён, добавлено наблюдение.
	EventObservation EventType = "observation"

	// EventMessage - промежуточный текст модели.
	EventMessage EventType = "message"

	// EventError - запуск прерван ошибкой.
	EventError EventType = "error"

	// EventDone - агент завершил работу.
	EventDone EventType = "done"
)

// EventData - sealed interface для данных события.
type EventData interface {
	eventData()
}

// ThinkingData содержит данные для EventThinking.
type ThinkingData struct {
	Round    int // 0-based номер запроса к модели
	Messages int // Размер истории на момент запроса
}

func (ThinkingData) eventData() {}

// ToolCallData содержит данные о вызове инструмента.
type ToolCallData struct {
	CallID   string
	ToolName string
	Args     string
}

func (ToolCallData) eventData() {}

// ToolResultData содержит результат выполнения инструмента.
type ToolResultData struct {
	CallID   string
	ToolName string
	Result   string
	IsError  bool
	Duration time.Duration
}

func (ToolResultData) eventData() {}

// ObservationData содержит текст наблюдения за раунд.
type ObservationData struct {
	Loops int
	Text  string
}

func (ObservationData) eventData() {}

// MessageData содержит данные для EventMessage и EventDone.
type MessageData struct {
	Content string
	Loops   int
}

func (MessageData) eventData() {}

// ErrorData содержит данные для EventError.
type ErrorData struct {
	Err error
}

func (ErrorData) eventData() {}

// Event представляет событие от агента.
type Event struct {
	Type      EventType
	Data      EventData
	Timestamp time.Time
}

// New создаёт событие с текущим временем.
func New(typ EventType, data EventData) Event {
	return Event{Type: typ, Data: data, Timestamp: time.Now()}
}

// Emitter - порт для отправки событий.
type Emitter interface {
	// Emit отправляет событие. При отменённом context событие отбрасывается.
	Emit(ctx context.Context, event Event)
}

// Subscriber позволяет читать события из канала.
type Subscriber interface {
	// Events возвращает read-only канал событий.
	Events() <-chan Event

	// Close освобождает подписчика.
	Close()
}

// EmitterFunc адаптирует функцию к Emitter.
type EmitterFunc func(ctx context.Context, event Event)

// Emit вызывает f.
func (f EmitterFunc) Emit(ctx context.Context, event Event) {
	f(ctx, event)
}

// Multi рассылает событие нескольким получателям по порядку.
type Multi []Emitter

// Emit отправляет событие каждому не-nil получателю.
func (m Multi) Emit(ctx context.Context, event Event) {
	for _, e := range m {
		if e != nil {
			e.Emit(ctx, event)
		}
	}
}
