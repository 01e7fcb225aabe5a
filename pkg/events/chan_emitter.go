package events

import (
	"context"
	"sync"
)

// ChanEmitter - реализация Emitter через канал.
//
// Thread-safe. Используется TUI: агент работает в отдельной горутине,
// UI читает события из канала.
type ChanEmitter struct {
	mu     sync.RWMutex
	ch     chan Event
	closed bool
}

// NewChanEmitter создаёт ChanEmitter с буферизованным каналом.
//
// Если buffer = 0, канал небуферизованный (Emit блокируется до чтения).
func NewChanEmitter(buffer int) *ChanEmitter {
	return &ChanEmitter{
		ch: make(chan Event, buffer),
	}
}

// Emit отправляет событие в канал.
//
// После Close события молча отбрасываются.
func (e *ChanEmitter) Emit(ctx context.Context, event Event) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return
	}

	select {
	case e.ch <- event:
	case <-ctx.Done():
	}
}

// Subscribe возвращает Subscriber для чтения событий.
//
// Все подписчики читают из одного канала.
func (e *ChanEmitter) Subscribe() Subscriber {
	return &chanSubscriber{ch: e.ch}
}

// Close закрывает канал.
func (e *ChanEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	close(e.ch)
}

type chanSubscriber struct {
	ch <-chan Event
}

func (s *chanSubscriber) Events() <-chan Event {
	return s.ch
}

// Close - no-op: канал закрывается только через ChanEmitter.Close().
func (s *chanSubscriber) Close() {}

var (
	_ Emitter    = (*ChanEmitter)(nil)
	_ Subscriber = (*chanSubscriber)(nil)
)
