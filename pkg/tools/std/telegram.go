package std

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ilkoid/wxagent/pkg/tools"
	"github.com/ilkoid/wxagent/pkg/toolserver"
)

// SendTelegramToolName - имя инструмента отправки для модели.
const SendTelegramToolName = "send_telegram"

// SendTelegramTool отправляет сообщение в Telegram.
//
// chat_id может быть null: тогда берётся defaultChatID, а если и он пуст,
// решает сервер (TELEGRAM_CHAT_ID в его окружении).
type SendTelegramTool struct {
	caller        tools.Caller
	defaultChatID string
}

// NewSendTelegramTool создаёт инструмент.
func NewSendTelegramTool(caller tools.Caller, defaultChatID string) *SendTelegramTool {
	return &SendTelegramTool{caller: caller, defaultChatID: defaultChatID}
}

func (t *SendTelegramTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        SendTelegramToolName,
		Description: "Send a Telegram message to a chat id (can be null; falls back to the default chat).",
		Parameters: tools.JSONSchema{
			"type": "object",
			"properties": map[string]any{
				"chat_id": map[string]any{
					"type":        "string",
					"description": "Target chat id; omit to use the default chat",
				},
				"text": map[string]any{
					"type":        "string",
					"description": "Message text",
				},
			},
			"required": []string{"text"},
		},
	}
}

// SendResult - нормализованный ответ, на который опирается модель.
type SendResult struct {
	OK        bool   `json:"ok"`
	ChatID    string `json:"chat_id,omitempty"`
	MessageID int64  `json:"message_id,omitempty"`
	Text      string `json:"text"`
}

func (t *SendTelegramTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	var args struct {
		ChatID json.RawMessage `json:"chat_id"`
		Text   string          `json:"text"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(args.Text) == "" {
		return "", errors.New("text is required")
	}

	chatID := rawChatID(args.ChatID)
	if chatID == "" {
		chatID = t.defaultChatID
	}

	callArgs := map[string]any{"text": args.Text}
	if chatID != "" {
		callArgs["chat_id"] = chatID
	}

	payload, err := t.caller.CallJSON(ctx, toolserver.TelegramServerName, toolserver.ToolSendMessage, callArgs)
	if err != nil {
		return "", err
	}
	return marshalResult(normalizeSend(payload, chatID, args.Text))
}

// rawChatID принимает chat_id строкой или числом, null - пусто.
func rawChatID(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return strings.TrimSpace(str)
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err == nil {
		return num.String()
	}
	return s
}

// normalizeSend сворачивает ответ Bot API в SendResult.
func normalizeSend(payload map[string]any, chatID, text string) SendResult {
	res := SendResult{ChatID: chatID, Text: text}
	if ok, _ := payload["ok"].(bool); ok {
		res.OK = true
	}

	msg, _ := payload["result"].(map[string]any)
	if msg == nil {
		return res
	}
	if id, ok := msg["message_id"].(float64); ok {
		res.MessageID = int64(id)
	}
	if chat, ok := msg["chat"].(map[string]any); ok {
		if id, ok := chat["id"].(float64); ok {
			res.ChatID = fmt.Sprintf("%.0f", id)
		}
	}
	if t, ok := msg["text"].(string); ok {
		res.Text = t
	}
	return res
}
