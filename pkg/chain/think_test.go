package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/ilkoid/wxagent/pkg/archive"
	"github.com/ilkoid/wxagent/pkg/events"
	"github.com/ilkoid/wxagent/pkg/llm"
	"github.com/ilkoid/wxagent/pkg/tools"
	"github.com/ilkoid/wxagent/pkg/tools/std"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProvider возвращает заранее заданные ответы по порядку.
type scriptedProvider struct {
	mu      sync.Mutex
	replies []llm.Message
	calls   [][]llm.Message
	err     error
}

func (p *scriptedProvider) Generate(_ context.Context, messages []llm.Message, _ ...any) (llm.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, append([]llm.Message(nil), messages...))
	if p.err != nil {
		return llm.Message{}, p.err
	}
	if len(p.replies) == 0 {
		return llm.AssistantMessage("done"), nil
	}
	r := p.replies[0]
	p.replies = p.replies[1:]
	return r, nil
}

func toolCall(id, name string, args map[string]any) llm.ToolCall {
	raw, _ := json.Marshal(args)
	return llm.ToolCall{ID: id, Name: name, Args: string(raw)}
}

// fakeServers имитирует MCP серверы weather и telegram.
type fakeServers struct {
	mu    sync.Mutex
	sends []map[string]any
	temps map[string]float64
}

func (f *fakeServers) CallJSON(_ context.Context, server, tool string, args map[string]any) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch server + "." + tool {
	case "weather.get_current_weather":
		loc, _ := args["location"].(string)
		temp, ok := f.temps[loc]
		if !ok {
			return nil, fmt.Errorf("could not geocode location: %s", loc)
		}
		return map[string]any{
			"query_location":    loc,
			"resolved_location": loc + ", XX",
			"weather": map[string]any{
				"temperature": temp,
				"condition":   "clear sky",
				"units":       map[string]any{"temperature": "°C", "wind_speed": "km/h", "humidity": "%"},
			},
		}, nil
	case "telegram.send_message":
		f.sends = append(f.sends, args)
		return map[string]any{
			"ok": true,
			"result": map[string]any{
				"message_id": float64(100 + len(f.sends)),
				"chat":       map[string]any{"id": float64(42)},
				"text":       args["text"],
			},
		}, nil
	}
	return nil, fmt.Errorf("unexpected %s.%s", server, tool)
}

func newRegistry(t *testing.T, caller tools.Caller) *tools.Registry {
	t.Helper()
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(std.NewGetWeatherTool(caller, "")))
	require.NoError(t, reg.Register(std.NewSendTelegramTool(caller, "42")))
	return reg
}

func TestThinkAgent_StopsWithoutToolCalls(t *testing.T) {
	provider := &scriptedProvider{replies: []llm.Message{llm.AssistantMessage("Which city?")}}
	agent := NewThinkAgent(provider, newRegistry(t, &fakeServers{}))

	state, err := agent.Run(context.Background(), NewThinkState("hello", ""))
	require.NoError(t, err)

	assert.Equal(t, 0, state.Loops)
	assert.Equal(t, []llm.Role{llm.RoleUser, llm.RoleAssistant}, state.Roles())
	require.Len(t, provider.calls, 1)
	assert.Equal(t, llm.RoleSystem, provider.calls[0][0].Role)
	assert.Equal(t, DefaultSystemPrompt, provider.calls[0][0].Content)
}

func TestThinkAgent_LoopCeiling(t *testing.T) {
	always := llm.ProviderFunc(func(ctx context.Context, _ []llm.Message, _ ...any) (llm.Message, error) {
		return llm.Message{
			Role:      llm.RoleAssistant,
			ToolCalls: []llm.ToolCall{toolCall("", std.GetWeatherToolName, map[string]any{"location": "Madrid"})},
		}, nil
	})
	servers := &fakeServers{temps: map[string]float64{"Madrid": 21}}
	agent := NewThinkAgent(always, newRegistry(t, servers))

	state, err := agent.Run(context.Background(), NewThinkState("loop forever", ""))
	require.NoError(t, err)

	assert.Equal(t, MaxToolLoops, state.Loops)
	assert.Len(t, state.WeatherResults, MaxToolLoops)

	var assistantWithCalls, toolMsgs int
	for _, m := range state.Messages {
		if m.Role == llm.RoleAssistant && m.HasToolCalls() {
			assistantWithCalls++
			assert.NotEmpty(t, m.ToolCalls[0].ID)
		}
		if m.Role == llm.RoleTool {
			toolMsgs++
		}
	}
	// Девятый ответ с вызовами остаётся в истории, но не исполняется
	assert.Equal(t, MaxToolLoops+1, assistantWithCalls)
	assert.Equal(t, MaxToolLoops, toolMsgs)
}

func TestThinkAgent_MadridBeirutSeparately(t *testing.T) {
	servers := &fakeServers{temps: map[string]float64{"Madrid": 21.5, "Beirut": 27}}
	provider := &scriptedProvider{replies: []llm.Message{
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{
			toolCall("w1", std.GetWeatherToolName, map[string]any{"location": "Madrid"}),
			toolCall("w2", std.GetWeatherToolName, map[string]any{"location": "Beirut"}),
		}},
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{
			toolCall("s1", std.SendTelegramToolName, map[string]any{"chat_id": nil, "text": "Madrid, XX: 21.5°C, clear sky"}),
			toolCall("s2", std.SendTelegramToolName, map[string]any{"chat_id": nil, "text": "Beirut, XX: 27°C, clear sky"}),
		}},
		llm.AssistantMessage("Sent two messages to chat 42."),
	}}

	var mu sync.Mutex
	var seen []events.EventType
	agent := NewThinkAgent(provider, newRegistry(t, servers))
	agent.SetEmitter(events.EmitterFunc(func(_ context.Context, ev events.Event) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, ev.Type)
	}))

	state, err := agent.Run(context.Background(),
		NewThinkState("Get weather for Madrid and Beirut and send separate Telegram messages for each.", ""))
	require.NoError(t, err)

	assert.Equal(t, 2, state.Loops)
	require.Len(t, servers.sends, 2)
	assert.Contains(t, servers.sends[0]["text"], "Madrid")
	assert.NotContains(t, servers.sends[0]["text"], "Beirut")
	assert.Contains(t, servers.sends[1]["text"], "Beirut")
	assert.NotContains(t, servers.sends[1]["text"], "Madrid")
	assert.Equal(t, "42", servers.sends[0]["chat_id"])

	require.Len(t, state.WeatherResults, 2)
	assert.Equal(t, "Madrid, XX", state.WeatherResults[0].Location)
	require.NotNil(t, state.WeatherResults[0].Temperature)
	assert.Equal(t, 21.5, *state.WeatherResults[0].Temperature)
	assert.Equal(t, "Beirut, XX", state.WeatherResults[1].Location)

	var observations []string
	for _, m := range state.Messages {
		if m.Role == llm.RoleAssistant && strings.HasPrefix(m.Content, "Observation:") {
			observations = append(observations, m.Content)
		}
	}
	require.Len(t, observations, 2)
	assert.Equal(t, "Observation: Madrid, XX: 21.5°C, clear sky.\nObservation: Beirut, XX: 27°C, clear sky.", observations[0])
	assert.Contains(t, observations[1], "Observation: Telegram sent to chat 42 (msg id 101)")

	final, ok := state.LastAssistant()
	require.True(t, ok)
	assert.Equal(t, "Sent two messages to chat 42.", final.Content)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, events.EventThinking, seen[0])
	assert.Equal(t, events.EventDone, seen[len(seen)-1])
	assert.Contains(t, seen, events.EventObservation)
}

func TestThinkAgent_ToolErrorsContinue(t *testing.T) {
	servers := &fakeServers{temps: map[string]float64{"Madrid": 20}}
	provider := &scriptedProvider{replies: []llm.Message{
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{
			toolCall("a", "get_horoscope", map[string]any{"sign": "leo"}),
			toolCall("b", std.GetWeatherToolName, map[string]any{"location": "Zzzqx123"}),
			toolCall("c", std.GetWeatherToolName, map[string]any{"location": "Madrid"}),
		}},
		llm.AssistantMessage("Madrid: 20°C"),
	}}
	agent := NewThinkAgent(provider, newRegistry(t, servers))

	state, err := agent.Run(context.Background(), NewThinkState("weather please", ""))
	require.NoError(t, err)

	var toolMsgs []llm.Message
	for _, m := range state.Messages {
		if m.Role == llm.RoleTool {
			toolMsgs = append(toolMsgs, m)
		}
	}
	require.Len(t, toolMsgs, 3)
	assert.JSONEq(t, `{"error":"Unknown tool 'get_horoscope'"}`, toolMsgs[0].Content)
	assert.Equal(t, "a", toolMsgs[0].ToolCallID)
	assert.Contains(t, toolMsgs[1].Content, `"error":"get_weather failed: could not geocode location: Zzzqx123"`)
	assert.Contains(t, toolMsgs[2].Content, "Madrid, XX")

	assert.Len(t, state.WeatherResults, 1)
	assert.Equal(t, 1, state.Loops)
}

func TestThinkAgent_ModelErrorReturnsPartialState(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("503 upstream")}
	agent := NewThinkAgent(provider, newRegistry(t, &fakeServers{}))

	state, err := agent.Run(context.Background(), NewThinkState("weather in Paris", "777"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503 upstream")

	require.NotNil(t, state)
	assert.Equal(t, []llm.Role{llm.RoleUser, llm.RoleUser}, state.Roles())
	assert.Equal(t, "Use this Telegram chat_id: 777", state.Messages[1].Content)
}

func TestThinkAgent_CustomPromptAndArchive(t *testing.T) {
	dir := t.TempDir()
	servers := &fakeServers{temps: map[string]float64{"Paris": 18}}
	provider := &scriptedProvider{replies: []llm.Message{
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{toolCall("w", std.GetWeatherToolName, map[string]any{"location": "Paris"})}},
		llm.AssistantMessage("Paris: 18°C"),
	}}
	agent := NewThinkAgent(provider, newRegistry(t, servers),
		WithSystemPrompt("custom rules"),
		WithModelName("stub"))
	agent.SetArchive(&archive.Config{Dir: dir})

	state, err := agent.Run(context.Background(), NewThinkState("weather in Paris", ""))
	require.NoError(t, err)

	assert.Equal(t, "custom rules", provider.calls[0][0].Content)
	require.NotEmpty(t, state.TranscriptPath)

	raw, err := os.ReadFile(state.TranscriptPath)
	require.NoError(t, err)
	var tr archive.Transcript
	require.NoError(t, json.Unmarshal(raw, &tr))
	assert.Equal(t, state.RunID, tr.RunID)
	assert.Equal(t, "weather in Paris", tr.Instruction)
	assert.Equal(t, 2, tr.Summary.ModelCalls)
	assert.Equal(t, 1, tr.Summary.ToolCalls)
	assert.Equal(t, "Paris: 18°C", tr.FinalReply)
}

func TestObservationTexts(t *testing.T) {
	obs := observeWeather(map[string]any{"location": "Oslo"}, nil)
	assert.Equal(t, "Observation: Oslo: ?, ?.", weatherObservationText(obs))

	obs = observeWeather(map[string]any{}, map[string]any{"location": "Rome"})
	assert.Equal(t, "Rome", obs.Location)

	long := strings.Repeat("x", 70)
	text := telegramObservationText(map[string]any{"ok": true, "chat_id": "5", "message_id": float64(9), "text": long})
	assert.Equal(t, "Observation: Telegram sent to chat 5 (msg id 9): “"+strings.Repeat("x", 60)+"…”.", text)

	assert.Empty(t, telegramObservationText(map[string]any{"ok": false}))
}
