package toolserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ilkoid/wxagent/pkg/config"
	"github.com/ilkoid/wxagent/pkg/telegram"
	"github.com/ilkoid/wxagent/pkg/weather"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// connect поднимает сервер и клиента на in-memory транспорте.
func connect(t *testing.T, server *mcp.Server) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	serverT, clientT := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverT, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)
	session, err := client.Connect(ctx, clientT, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = session.Close()
		_ = serverSession.Wait()
	})
	return session
}

func call(t *testing.T, s *mcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	res, err := s.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return text.Text, res.IsError
}

func newWeatherBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("name") != "Madrid" {
			_, _ = fmt.Fprint(w, `{}`)
			return
		}
		_, _ = fmt.Fprint(w, `{"results":[{"name":"Madrid","latitude":40.4,"longitude":-3.7,"country_code":"ES","country":"Spain","population":3255944}]}`)
	})
	mux.HandleFunc("/forecast", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"current":{"time":"2025-06-01T12:00","temperature_2m":21.5,"relative_humidity_2m":40,"apparent_temperature":20.9,"wind_speed_10m":12,"weather_code":0}}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestWeatherServer_ListTools(t *testing.T) {
	backend := newWeatherBackend(t)
	s := connect(t, NewWeatherServer(weather.New(config.WeatherConfig{
		GeocodingURL: backend.URL + "/search",
		ForecastURL:  backend.URL + "/forecast",
	})))

	res, err := s.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)
	require.Len(t, res.Tools, 1)
	assert.Equal(t, ToolGetCurrentWeather, res.Tools[0].Name)
}

func TestWeatherServer_GetCurrentWeather(t *testing.T) {
	backend := newWeatherBackend(t)
	s := connect(t, NewWeatherServer(weather.New(config.WeatherConfig{
		GeocodingURL: backend.URL + "/search",
		ForecastURL:  backend.URL + "/forecast",
		RateLimit:    6000,
	})))

	text, isErr := call(t, s, ToolGetCurrentWeather, map[string]any{"location": "Madrid", "units": "metric"})
	require.False(t, isErr, text)

	var report weather.Report
	require.NoError(t, json.Unmarshal([]byte(text), &report))
	assert.Equal(t, "Madrid", report.QueryLocation)
	assert.Equal(t, "Madrid, ES", report.ResolvedLocation)
	assert.Equal(t, "°C", report.Weather.Units.Temperature)
	assert.Equal(t, "clear sky", report.Weather.Condition)
	assert.Contains(t, text, "°C")
}

func TestWeatherServer_Errors(t *testing.T) {
	backend := newWeatherBackend(t)
	s := connect(t, NewWeatherServer(weather.New(config.WeatherConfig{
		GeocodingURL:  backend.URL + "/search",
		ForecastURL:   backend.URL + "/forecast",
		RateLimit:     6000,
		RetryAttempts: 1,
	})))

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"missing location", map[string]any{}, "Missing required argument 'location'"},
		{"unknown place", map[string]any{"location": "Zzzqx123"}, "could not geocode location"},
		{"bad units", map[string]any{"location": "Madrid", "units": "kelvin"}, "units must be metric or imperial"},
		{"location type", map[string]any{"location": 5}, "location must be a string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, isErr := call(t, s, ToolGetCurrentWeather, tt.args)
			assert.True(t, isErr)
			assert.Contains(t, text, tt.want)
		})
	}
}

type botBackend struct {
	mu     sync.Mutex
	bodies []map[string]any
	paths  []string
}

func newBotBackend(t *testing.T) (*httptest.Server, *botBackend) {
	t.Helper()
	b := &botBackend{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)

		b.mu.Lock()
		b.bodies = append(b.bodies, body)
		b.paths = append(b.paths, r.URL.Path)
		b.mu.Unlock()

		if r.URL.Path == "/botT/getUpdates" {
			_, _ = fmt.Fprint(w, `{"ok":true,"result":[{"update_id":5,"message":{"message_id":1,"chat":{"id":9},"text":"hi"}}]}`)
			return
		}
		_, _ = fmt.Fprintf(w, `{"ok":true,"result":{"message_id":77,"chat":{"id":%v},"text":%q}}`, body["chat_id"], body["text"])
	}))
	t.Cleanup(srv.Close)
	return srv, b
}

func TestTelegramServer_SendMessage(t *testing.T) {
	srv, backend := newBotBackend(t)
	s := connect(t, NewTelegramServer(telegram.New(config.TelegramConfig{
		BaseURL:       srv.URL,
		BotToken:      "T",
		DefaultChatID: "42",
	})))

	text, isErr := call(t, s, ToolSendMessage, map[string]any{"text": "hello", "disable_notification": true})
	require.False(t, isErr, text)
	assert.Contains(t, text, `"message_id":77`)

	text, isErr = call(t, s, ToolSendMessage, map[string]any{"text": "again", "chat_id": 123456})
	require.False(t, isErr, text)

	require.Len(t, backend.bodies, 2)
	assert.Equal(t, "42", backend.bodies[0]["chat_id"])
	assert.Equal(t, true, backend.bodies[0]["disable_notification"])
	assert.Equal(t, "123456", backend.bodies[1]["chat_id"])
}

func TestTelegramServer_SendMessageErrors(t *testing.T) {
	srv, backend := newBotBackend(t)
	s := connect(t, NewTelegramServer(telegram.New(config.TelegramConfig{BaseURL: srv.URL, BotToken: "T"})))

	text, isErr := call(t, s, ToolSendMessage, map[string]any{"chat_id": "1"})
	assert.True(t, isErr)
	assert.Equal(t, "Missing required argument 'text'", text)

	text, isErr = call(t, s, ToolSendMessage, map[string]any{"text": "hi"})
	assert.True(t, isErr)
	assert.Contains(t, text, "chat_id missing")

	assert.Empty(t, backend.bodies)
}

func TestTelegramServer_GetUpdates(t *testing.T) {
	srv, backend := newBotBackend(t)
	s := connect(t, NewTelegramServer(telegram.New(config.TelegramConfig{BaseURL: srv.URL, BotToken: "T"})))

	text, isErr := call(t, s, ToolGetUpdates, map[string]any{
		"offset":          "6",
		"timeout":         0,
		"allowed_updates": []string{"message"},
	})
	require.False(t, isErr, text)

	resp, err := telegram.ParseUpdates([]byte(text))
	require.NoError(t, err)
	require.Len(t, resp.Result, 1)
	assert.EqualValues(t, 5, resp.Result[0].UpdateID)

	require.Len(t, backend.bodies, 1)
	assert.EqualValues(t, 6, backend.bodies[0]["offset"])
	assert.Equal(t, []any{"message"}, backend.bodies[0]["allowed_updates"])
}

func TestParseUpdatesArgs(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr string
	}{
		{"empty", `{}`, ""},
		{"null", `null`, ""},
		{"float offset truncated", `{"offset": 7.9}`, ""},
		{"bad offset", `{"offset": "abc"}`, "offset must be an integer"},
		{"bad timeout", `{"timeout": [1]}`, "timeout must be an integer"},
		{"string allowed", `{"allowed_updates": "message"}`, "allowed_updates must be a sequence of strings"},
		{"mixed allowed", `{"allowed_updates": ["message", 3]}`, "allowed_updates entries must be strings"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseUpdatesArgs([]byte(tt.raw))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}

	p, err := parseUpdatesArgs([]byte(`{"offset": 7.9, "timeout": "20"}`))
	require.NoError(t, err)
	require.NotNil(t, p.Offset)
	assert.EqualValues(t, 7, *p.Offset)
	assert.Equal(t, 20, p.Timeout)
}

func TestTelegramServer_APIErrorsAreClassified(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"bad token", http.StatusUnauthorized, `{"ok":false,"error_code":401,"description":"Unauthorized"}`, "[authentication_failed]"},
		{"flood control", http.StatusTooManyRequests, `{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 0","parameters":{"retry_after":0}}`, "[rate_limit]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "0")
				w.WriteHeader(tt.status)
				_, _ = fmt.Fprint(w, tt.body)
			}))
			t.Cleanup(srv.Close)

			s := connect(t, NewTelegramServer(telegram.New(config.TelegramConfig{
				BaseURL:       srv.URL,
				BotToken:      "T",
				RetryAttempts: 1,
			})))

			text, isErr := call(t, s, ToolSendMessage, map[string]any{"chat_id": "1", "text": "hi"})
			assert.True(t, isErr)
			assert.Contains(t, text, "telegram sendMessage failed")
			assert.True(t, strings.HasSuffix(text, tt.want), text)
		})
	}
}

func TestErrorResult_ArgumentErrorsStayPlain(t *testing.T) {
	res := errorResult(ToolGetUpdates, errors.New("timeout must be an integer"))

	require.True(t, res.IsError)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Equal(t, "timeout must be an integer", text.Text)
}

func TestTelegramSchemas_AcceptStringOrNumber(t *testing.T) {
	prop := func(schema map[string]any, name string) any {
		props, ok := schema["properties"].(map[string]any)
		require.True(t, ok)
		p, ok := props[name].(map[string]any)
		require.True(t, ok)
		return p["type"]
	}

	assert.Equal(t, []any{"string", "number"}, prop(sendMessageSchema(), "chat_id"))
	assert.Equal(t, []any{"integer", "string"}, prop(getUpdatesSchema(), "offset"))
	assert.Equal(t, []any{"integer", "string"}, prop(getUpdatesSchema(), "timeout"))
}
