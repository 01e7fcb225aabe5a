package toolserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ilkoid/wxagent/pkg/telegram"
	"github.com/ilkoid/wxagent/pkg/utils"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewTelegramServer создаёт MCP сервер с инструментами send_message и get_updates.
//
// Оба инструмента возвращают ответ Bot API без изменений.
func NewTelegramServer(bot *telegram.Bot) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "telegram-mcp-server", Version: Version}, nil)

	server.AddTool(&mcp.Tool{
		Name:        ToolSendMessage,
		Title:       "Send a Telegram message",
		Description: "Send a text message via Telegram Bot API using a bot token",
		InputSchema: sendMessageSchema(),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		params, err := parseSendArgs(req.Params.Arguments)
		if err != nil {
			return errorResult(ToolSendMessage, err), nil
		}
		res, err := bot.SendMessage(ctx, params)
		if err != nil {
			return errorResult(ToolSendMessage, err), nil
		}
		return textResult(string(res.Raw)), nil
	})

	server.AddTool(&mcp.Tool{
		Name:        ToolGetUpdates,
		Title:       "Get Telegram updates",
		Description: "Fetch incoming updates (messages) via Telegram long polling.",
		InputSchema: getUpdatesSchema(),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		params, err := parseUpdatesArgs(req.Params.Arguments)
		if err != nil {
			return errorResult(ToolGetUpdates, err), nil
		}
		raw, err := bot.GetUpdates(ctx, params)
		if err != nil {
			return errorResult(ToolGetUpdates, err), nil
		}
		utils.Debug("Telegram updates fetched", "bytes", len(raw))
		return textResult(string(raw)), nil
	})

	return server
}

// sendMessageSchema - chat_id принимается строкой или числом.
func sendMessageSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"text"},
		"properties": map[string]any{
			"chat_id": map[string]any{
				"type":        []any{"string", "number"},
				"description": "Target chat ID; defaults to TELEGRAM_CHAT_ID env var",
			},
			"text": map[string]any{
				"type":        "string",
				"description": "Message text to send",
			},
			"disable_notification": map[string]any{
				"type":        "boolean",
				"description": "Send silently",
			},
		},
	}
}

// getUpdatesSchema - offset и timeout принимаются числом или строкой с числом.
func getUpdatesSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"offset": map[string]any{
				"type":        []any{"integer", "string"},
				"description": "Identifier of the first update to be returned",
			},
			"timeout": map[string]any{
				"type":        []any{"integer", "string"},
				"description": "Long polling timeout in seconds",
			},
			"allowed_updates": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Optional list of update types to receive",
			},
		},
	}
}

func parseSendArgs(raw []byte) (telegram.SendParams, error) {
	var p telegram.SendParams

	args, err := decodeArgs(raw)
	if err != nil {
		return p, err
	}

	text, ok := args["text"]
	if !ok || text == nil {
		return p, errors.New("Missing required argument 'text'")
	}
	p.Text = scalarString(text)

	if v, ok := args["chat_id"]; ok && v != nil {
		p.ChatID = scalarString(v)
	}
	p.DisableNotification = truthy(args["disable_notification"])
	return p, nil
}

func parseUpdatesArgs(raw []byte) (telegram.UpdatesParams, error) {
	var p telegram.UpdatesParams

	args, err := decodeArgs(raw)
	if err != nil {
		return p, err
	}

	if v, ok := args["offset"]; ok && v != nil {
		n, err := toInt(v)
		if err != nil {
			return p, errors.New("offset must be an integer")
		}
		p.Offset = &n
	}

	if v, ok := args["timeout"]; ok && v != nil {
		n, err := toInt(v)
		if err != nil {
			return p, errors.New("timeout must be an integer")
		}
		p.Timeout = int(n)
	}

	if v, ok := args["allowed_updates"]; ok && v != nil {
		list, ok := v.([]any)
		if !ok {
			return p, errors.New("allowed_updates must be a sequence of strings")
		}
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return p, errors.New("allowed_updates entries must be strings")
			}
			p.AllowedUpdates = append(p.AllowedUpdates, s)
		}
	}
	return p, nil
}

// toInt принимает целые числа, числа с дробной частью (отбрасывается)
// и строки с целым числом.
func toInt(v any) (int64, error) {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, nil
		}
		f, err := x.Float64()
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return 0, fmt.Errorf("not an integer: %s", x)
		}
		return int64(f), nil
	case float64:
		return int64(x), nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(x), 10, 64)
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("not an integer: %T", v)
	}
}

func scalarString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case json.Number:
		f, err := x.Float64()
		return err == nil && f != 0
	case string:
		return x != ""
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	default:
		return true
	}
}
