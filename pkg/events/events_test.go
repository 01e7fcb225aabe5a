package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChanEmitter_DeliversInOrder(t *testing.T) {
	e := NewChanEmitter(4)
	sub := e.Subscribe()
	ctx := context.Background()

	e.Emit(ctx, New(EventToolCall, ToolCallData{ToolName: "get_weather", Args: `{"location":"Madrid"}`}))
	e.Emit(ctx, New(EventDone, MessageData{Content: "done", Loops: 1}))
	e.Close()

	var got []EventType
	for ev := range sub.Events() {
		got = append(got, ev.Type)
		assert.False(t, ev.Timestamp.IsZero())
	}
	assert.Equal(t, []EventType{EventToolCall, EventDone}, got)
}

func TestChanEmitter_EmitAfterCloseIsDropped(t *testing.T) {
	e := NewChanEmitter(1)
	e.Close()
	e.Close()

	assert.NotPanics(t, func() {
		e.Emit(context.Background(), New(EventError, ErrorData{Err: errors.New("x")}))
	})
}

func TestChanEmitter_RespectsContext(t *testing.T) {
	e := NewChanEmitter(0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		e.Emit(ctx, New(EventThinking, ThinkingData{Round: 0}))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit did not return after context cancellation")
	}
}

func TestMulti(t *testing.T) {
	var a, b []EventType
	m := Multi{
		EmitterFunc(func(_ context.Context, ev Event) { a = append(a, ev.Type) }),
		nil,
		EmitterFunc(func(_ context.Context, ev Event) { b = append(b, ev.Type) }),
	}

	m.Emit(context.Background(), New(EventObservation, ObservationData{Loops: 1, Text: "Observation: Madrid: 21°C, clear sky."}))

	require.Len(t, a, 1)
	assert.Equal(t, a, b)
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{"thinking", New(EventThinking, ThinkingData{Round: 0, Messages: 2}), "thinking (round 1, 2 messages)"},
		{"tool call", New(EventToolCall, ToolCallData{ToolName: "get_weather", Args: "{\n  \"location\": \"Madrid\"\n}"}), `→ get_weather { "location": "Madrid" }`},
		{"tool error", New(EventToolResult, ToolResultData{ToolName: "send_telegram", Result: `{"error":"boom"}`, IsError: true, Duration: 1500 * time.Millisecond}), `← send_telegram [error, 1.5s] {"error":"boom"}`},
		{"observation", New(EventObservation, ObservationData{Text: "Observation: Madrid: 21.5°C, clear sky."}), "Observation: Madrid: 21.5°C, clear sky."},
		{"empty message", New(EventMessage, MessageData{Content: "  "}), ""},
		{"error", New(EventError, ErrorData{Err: errors.New("model call failed")}), "error: model call failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Describe(tt.event))
		})
	}
}
