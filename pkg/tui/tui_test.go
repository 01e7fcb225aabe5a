package tui

import (
	"context"
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ilkoid/wxagent/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogView_FollowsBottomUntilScrolledUp(t *testing.T) {
	l := NewLogView()
	l.Resize(tea.WindowSizeMsg{Width: 40, Height: 10}, 4, 4)

	w, h := l.Dimensions()
	assert.Equal(t, 40, w)
	assert.Equal(t, 2, h)

	for i := 1; i <= 5; i++ {
		l.Append(fmt.Sprintf("line %d", i))
	}
	view := l.View()
	assert.Contains(t, view, "line 5")
	assert.NotContains(t, view, "line 1")

	l.ScrollUp(3)
	l.Append("line 6")
	view = l.View()
	assert.Contains(t, view, "line 1")
	assert.NotContains(t, view, "line 6")

	assert.Len(t, l.Lines(), 6)
}

func TestLogView_ResizeClampsAndWraps(t *testing.T) {
	l := NewLogView()
	l.Append(strings.Repeat("a", 30))

	l.Resize(tea.WindowSizeMsg{Width: 5, Height: 3}, 2, 4)

	w, h := l.Dimensions()
	assert.Equal(t, 20, w)
	assert.Equal(t, 1, h)

	// Исходная строка хранится без переноса
	assert.Equal(t, []string{strings.Repeat("a", 30)}, l.Lines())
	assert.NotContains(t, l.View(), strings.Repeat("a", 21))
}

func TestStatusBar_Render(t *testing.T) {
	s := NewStatusBar(GetColorScheme("default"))

	assert.Contains(t, s.Render(), "Ready")
	assert.Nil(t, s.Update(s.Tick()()))

	s.SetProcessing(true)
	assert.True(t, s.IsProcessing())
	assert.Contains(t, s.Render(), "Running")

	units := "metric"
	s.SetExtra(func() string { return "Units: " + units })
	assert.Contains(t, s.Render(), "Units: metric")

	units = "imperial"
	assert.Contains(t, s.Render(), "Units: imperial")
}

func TestReceiveEventCmd(t *testing.T) {
	emitter := events.NewChanEmitter(4)
	sub := emitter.Subscribe()

	emitter.Emit(context.Background(), events.New(events.EventMessage, events.MessageData{Content: "hi"}))
	emitter.Emit(context.Background(), events.New(events.EventDone, events.MessageData{Content: "bye"}))
	emitter.Close()

	msg := ReceiveEventCmd(sub, nil)()
	ev, ok := msg.(EventMsg)
	require.True(t, ok)
	assert.Equal(t, events.EventMessage, ev.Type)

	type wrapped struct{ typ events.EventType }
	msg = ReceiveEventCmd(sub, func(e events.Event) tea.Msg { return wrapped{typ: e.Type} })()
	assert.Equal(t, wrapped{typ: events.EventDone}, msg)

	assert.Equal(t, StreamClosedMsg{}, ReceiveEventCmd(sub, nil)())
}

func TestGetColorScheme_UnknownFallsBackToDefault(t *testing.T) {
	assert.Equal(t, ColorSchemes["default"], GetColorScheme("neon"))
	assert.Equal(t, ColorSchemes["dracula"], GetColorScheme("dracula"))
}
