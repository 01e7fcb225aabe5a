package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ilkoid/wxagent/pkg/archive"
	"github.com/ilkoid/wxagent/pkg/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	server, tool string
	args         map[string]any
}

type fakeCaller struct {
	calls      []call
	weatherErr error
}

func (f *fakeCaller) CallJSON(_ context.Context, server, tool string, args map[string]any) (map[string]any, error) {
	f.calls = append(f.calls, call{server, tool, args})
	if server == "weather" {
		if f.weatherErr != nil {
			return nil, f.weatherErr
		}
		return map[string]any{
			"query_location":    args["location"],
			"resolved_location": "Paris, FR",
			"weather": map[string]any{
				"temperature":          18.5,
				"apparent_temperature": 17.0,
				"humidity":             60.0,
				"wind_speed":           11.2,
				"time":                 "2025-06-01T12:00",
				"units":                map[string]any{"temperature": "°C", "wind_speed": "km/h", "humidity": "%"},
			},
		}, nil
	}
	return map[string]any{"ok": true, "result": map[string]any{"message_id": 5.0}}, nil
}

func TestPipeline_Run(t *testing.T) {
	caller := &fakeCaller{}
	var prompt []llm.Message
	provider := llm.ProviderFunc(func(_ context.Context, msgs []llm.Message, _ ...any) (llm.Message, error) {
		prompt = msgs
		return llm.AssistantMessage("<think>user wants paris, keep it short</think>\n" +
			"Paris is pleasant at 18.5°C   \n" +
			"• Feels like 17°C with a light breeze\n" +
			"Enjoy your day!"), nil
	})

	p := New(caller, provider, "stub")
	state, err := p.Run(context.Background(), &State{Location: "Paris, FR", Units: "metric", ChatID: "99"})
	require.NoError(t, err)

	assert.Equal(t, "• Paris is pleasant at 18.5°C\n• Feels like 17°C with a light breeze", state.MessageText)
	lines := strings.Split(state.MessageText, "\n")
	require.Len(t, lines, 2)
	for _, ln := range lines {
		assert.True(t, strings.HasPrefix(ln, "•"))
		assert.NotContains(t, ln, "think")
	}

	require.Len(t, caller.calls, 2)
	assert.Equal(t, call{"weather", "get_current_weather", map[string]any{"location": "Paris, FR", "units": "metric"}}, caller.calls[0])
	assert.Equal(t, "telegram", caller.calls[1].server)
	assert.Equal(t, "send_message", caller.calls[1].tool)
	assert.Equal(t, "99", caller.calls[1].args["chat_id"])
	assert.Equal(t, state.MessageText, caller.calls[1].args["text"])
	assert.Equal(t, true, state.TelegramResult["ok"])

	require.Len(t, prompt, 2)
	assert.Equal(t, FormatSystemPrompt, prompt[0].Content)
	assert.Equal(t, "Location: Paris, FR\nTemperature: 18.5°C\nFeels Like: 17°C\nHumidity: 60%\nWind: 11.2 km/h\nTime: 2025-06-01T12:00", prompt[1].Content)
}

func TestPipeline_WeatherErrorStops(t *testing.T) {
	caller := &fakeCaller{weatherErr: errors.New("could not geocode location: Zzzqx123")}
	generated := false
	provider := llm.ProviderFunc(func(context.Context, []llm.Message, ...any) (llm.Message, error) {
		generated = true
		return llm.AssistantMessage("x"), nil
	})

	state, err := New(caller, provider, "").Run(context.Background(), &State{Location: "Zzzqx123"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get_weather: could not geocode")
	assert.False(t, generated)
	require.NotNil(t, state)
	assert.Nil(t, state.WeatherPayload)
	assert.Len(t, caller.calls, 1)
}

func TestPipeline_ModelErrorKeepsWeather(t *testing.T) {
	caller := &fakeCaller{}
	provider := llm.ProviderFunc(func(context.Context, []llm.Message, ...any) (llm.Message, error) {
		return llm.Message{}, errors.New("rate limited")
	})

	state, err := New(caller, provider, "").Run(context.Background(), &State{Location: "Paris"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "format_message")
	assert.NotNil(t, state.WeatherPayload)
	assert.Empty(t, state.MessageText)
	assert.Len(t, caller.calls, 1)
}

func TestPipeline_EmptyLocation(t *testing.T) {
	caller := &fakeCaller{}
	_, err := New(caller, nil, "").Run(context.Background(), &State{Location: "  "})
	assert.ErrorIs(t, err, ErrEmptyLocation)
	assert.Empty(t, caller.calls)
}

func TestPipeline_ArchiveAndDefaultChat(t *testing.T) {
	caller := &fakeCaller{}
	provider := llm.ProviderFunc(func(context.Context, []llm.Message, ...any) (llm.Message, error) {
		return llm.AssistantMessage("Sunny"), nil
	})

	p := New(caller, provider, "stub")
	p.SetArchive(&archive.Config{Dir: t.TempDir()})

	state, err := p.Run(context.Background(), &State{Location: "Paris"})
	require.NoError(t, err)
	assert.Equal(t, "• Sunny", state.MessageText)
	assert.NotContains(t, caller.calls[1].args, "chat_id")
	assert.FileExists(t, state.TranscriptPath)
	assert.True(t, strings.HasPrefix(state.RunID, "pipeline_"))
}

func TestFormatMessages_MissingFields(t *testing.T) {
	msgs := FormatMessages(map[string]any{"text": "oops"}, "Oslo")
	assert.Equal(t, "Location: Oslo\nTemperature: ?\nFeels Like: ?\nHumidity: ?\nWind: ? \nTime: ?", msgs[1].Content)
}
