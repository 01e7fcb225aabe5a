// Package toolserver - MCP серверы инструментов погоды и Telegram.
//
// Серверы запускаются отдельными процессами (cmd/weather-server,
// cmd/telegram-server) и общаются с агентом через stdio. Ошибки
// инструментов возвращаются как CallToolResult с IsError, а не как
// ошибки протокола: агент видит текст ошибки и может отреагировать.
package toolserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/ilkoid/wxagent/pkg/apiclient"
	"github.com/ilkoid/wxagent/pkg/utils"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Имена серверов в конфигурации mcp_servers.
const (
	WeatherServerName  = "weather"
	TelegramServerName = "telegram"
)

// Имена инструментов MCP.
const (
	ToolGetCurrentWeather = "get_current_weather"
	ToolSendMessage       = "send_message"
	ToolGetUpdates        = "get_updates"
)

// Version - версия реализации, сообщаемая клиентам при initialize.
const Version = "1.0.0"

// ServeStdio обслуживает сервер через stdin/stdout до отмены ctx или EOF.
func ServeStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// decodeArgs разбирает аргументы вызова, сохраняя числа как json.Number.
func decodeArgs(raw json.RawMessage) (map[string]any, error) {
	args := map[string]any{}
	if len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return args, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&args); err != nil {
		return nil, fmt.Errorf("arguments must be a JSON object: %w", err)
	}
	return args, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(bytes.TrimRight(buf.Bytes(), "\n"))), nil
}

// errorResult превращает ошибку в IsError результат.
//
// Ошибки обращения к API помечаются типом ("[rate_limit]", "[authentication_failed]"),
// чтобы агент и логи listener'а отличали их от ошибок аргументов.
func errorResult(tool string, err error) *mcp.CallToolResult {
	text := err.Error()
	logArgs := []any{"tool", tool, "error", err}

	if apiclient.IsAPIError(err) {
		if kind := apiclient.ClassifyError(err); kind != apiclient.ErrUnknown {
			text = fmt.Sprintf("%s [%s]", text, kind)
			logArgs = append(logArgs, "error_type", kind.String(), "hint", kind.HumanMessage())
		}
	}

	utils.Warn("Tool call failed", logArgs...)
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
