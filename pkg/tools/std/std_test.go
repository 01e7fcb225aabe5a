package std

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ilkoid/wxagent/pkg/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	server, tool string
	args         map[string]any
}

type fakeCaller struct {
	calls []recordedCall
	reply map[string]any
	err   error
}

func (f *fakeCaller) CallJSON(_ context.Context, server, tool string, args map[string]any) (map[string]any, error) {
	f.calls = append(f.calls, recordedCall{server: server, tool: tool, args: args})
	return f.reply, f.err
}

func TestDefinitionsRegister(t *testing.T) {
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(NewGetWeatherTool(&fakeCaller{}, "")))
	require.NoError(t, reg.Register(NewSendTelegramTool(&fakeCaller{}, "")))
	assert.Equal(t, []string{"get_weather", "send_telegram"}, reg.Names())
}

func TestGetWeather(t *testing.T) {
	caller := &fakeCaller{reply: map[string]any{
		"resolved_location": "Madrid, ES",
		"weather":           map[string]any{"temperature": 21.5, "condition": "clear sky"},
	}}
	tool := NewGetWeatherTool(caller, "imperial")

	out, err := tool.Execute(context.Background(), `{"location":"Madrid"}`)
	require.NoError(t, err)

	require.Len(t, caller.calls, 1)
	assert.Equal(t, "weather", caller.calls[0].server)
	assert.Equal(t, "get_current_weather", caller.calls[0].tool)
	assert.Equal(t, map[string]any{"location": "Madrid", "units": "imperial"}, caller.calls[0].args)
	assert.JSONEq(t, `{"resolved_location":"Madrid, ES","weather":{"temperature":21.5,"condition":"clear sky"}}`, out)
}

func TestGetWeather_Errors(t *testing.T) {
	caller := &fakeCaller{err: errors.New("weather.get_current_weather: could not geocode location: Zzzqx123")}
	tool := NewGetWeatherTool(caller, "")

	_, err := tool.Execute(context.Background(), `{"location":"   "}`)
	assert.EqualError(t, err, "location is required")
	assert.Empty(t, caller.calls)

	_, err = tool.Execute(context.Background(), `not json`)
	assert.Error(t, err)

	_, err = tool.Execute(context.Background(), `{"location":"Zzzqx123"}`)
	assert.ErrorContains(t, err, "could not geocode")
	assert.Equal(t, map[string]any{"location": "Zzzqx123"}, caller.calls[0].args)
}

func TestSendTelegram(t *testing.T) {
	tests := []struct {
		name       string
		args       string
		defaultID  string
		wantChatID any
	}{
		{"explicit string", `{"chat_id":"555","text":"hi"}`, "42", "555"},
		{"explicit number", `{"chat_id":555,"text":"hi"}`, "42", "555"},
		{"null falls back", `{"chat_id":null,"text":"hi"}`, "42", "42"},
		{"missing falls back", `{"text":"hi"}`, "42", "42"},
		{"no default", `{"text":"hi"}`, "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller := &fakeCaller{reply: map[string]any{"ok": true}}
			tool := NewSendTelegramTool(caller, tt.defaultID)

			_, err := tool.Execute(context.Background(), tt.args)
			require.NoError(t, err)

			require.Len(t, caller.calls, 1)
			assert.Equal(t, "telegram", caller.calls[0].server)
			assert.Equal(t, "send_message", caller.calls[0].tool)
			assert.Equal(t, tt.wantChatID, caller.calls[0].args["chat_id"])
			assert.Equal(t, "hi", caller.calls[0].args["text"])
		})
	}
}

func TestSendTelegram_NormalizesBotAPIResponse(t *testing.T) {
	var reply map[string]any
	require.NoError(t, json.Unmarshal([]byte(
		`{"ok":true,"result":{"message_id":77,"chat":{"id":-1001234567890},"text":"• Madrid: 21°C"}}`), &reply))
	tool := NewSendTelegramTool(&fakeCaller{reply: reply}, "")

	out, err := tool.Execute(context.Background(), `{"chat_id":"-1001234567890","text":"• Madrid: 21°C"}`)
	require.NoError(t, err)

	var res SendResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, SendResult{OK: true, ChatID: "-1001234567890", MessageID: 77, Text: "• Madrid: 21°C"}, res)
}

func TestSendTelegram_EmptyText(t *testing.T) {
	caller := &fakeCaller{}
	_, err := NewSendTelegramTool(caller, "1").Execute(context.Background(), `{"text":""}`)
	assert.EqualError(t, err, "text is required")
	assert.Empty(t, caller.calls)
}
