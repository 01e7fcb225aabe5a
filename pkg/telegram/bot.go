// Package telegram - минимальный SDK Telegram Bot API: sendMessage и getUpdates.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ilkoid/wxagent/pkg/apiclient"
	"github.com/ilkoid/wxagent/pkg/config"
	"github.com/ilkoid/wxagent/pkg/utils"
)

var (
	// ErrMissingCredential - не задан токен бота.
	ErrMissingCredential = errors.New("TELEGRAM_BOT_TOKEN is not set")

	// ErrMissingChatTarget - нет ни явного chat_id, ни chat_id по умолчанию.
	ErrMissingChatTarget = errors.New("chat_id missing (and TELEGRAM_CHAT_ID is not set)")
)

// minPollHTTPTimeout - нижняя граница HTTP таймаута для long polling.
const minPollHTTPTimeout = 30 * time.Second

// Bot - клиент Bot API.
type Bot struct {
	api           *apiclient.Client
	baseURL       string
	token         string
	defaultChatID string
}

// New создаёт клиент из конфигурации.
func New(cfg config.TelegramConfig) *Bot {
	cfg = cfg.GetDefaults()

	return &Bot{
		api: apiclient.New(apiclient.Options{
			Service:       "telegram",
			UserAgent:     "wxagent telegram server",
			RateLimit:     cfg.RateLimit,
			BurstLimit:    cfg.BurstLimit,
			RetryAttempts: cfg.RetryAttempts,
			Timeout:       apiclient.ParseTimeout(cfg.Timeout, 30*time.Second),
		}),
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		token:         strings.TrimSpace(cfg.BotToken),
		defaultChatID: strings.TrimSpace(cfg.DefaultChatID),
	}
}

// DefaultChatID возвращает chat_id по умолчанию.
func (b *Bot) DefaultChatID() string {
	return b.defaultChatID
}

// SendParams - параметры sendMessage.
type SendParams struct {
	ChatID              string // Пусто = chat_id по умолчанию
	Text                string
	DisableNotification bool
}

// SendResult - результат sendMessage.
type SendResult struct {
	Raw     json.RawMessage // Ответ Bot API без изменений
	ChatID  string          // Фактический адресат
	Message Message
}

// SendMessage отправляет текстовое сообщение.
//
// Адресат проверяется до токена: без chat_id запрос не выполняется.
// Запрос повторяется только после 429.
func (b *Bot) SendMessage(ctx context.Context, p SendParams) (*SendResult, error) {
	chatID := strings.TrimSpace(p.ChatID)
	if chatID == "" {
		chatID = b.defaultChatID
	}
	if chatID == "" {
		return nil, ErrMissingChatTarget
	}
	if b.token == "" {
		return nil, ErrMissingCredential
	}

	payload := map[string]any{
		"chat_id":              chatID,
		"text":                 p.Text,
		"disable_notification": p.DisableNotification,
	}

	// Повтор после 5xx или обрыва мог бы доставить сообщение дважды
	var raw []byte
	err := b.api.Do(ctx, apiclient.Request{
		Endpoint:           "sendMessage",
		Method:             "POST",
		URL:                b.methodURL("sendMessage"),
		Body:               payload,
		RateLimitRetryOnly: true,
	}, &raw)
	if err != nil {
		return nil, b.describeError("sendMessage", err)
	}

	result := &SendResult{Raw: raw, ChatID: chatID}

	var resp Response
	if err := json.Unmarshal(raw, &resp); err == nil && len(resp.Result) > 0 {
		_ = json.Unmarshal(resp.Result, &result.Message)
	}

	utils.Info("Telegram message sent",
		"chat_id", chatID,
		"message_id", result.Message.MessageID,
		"length", len(p.Text))

	return result, nil
}

// UpdatesParams - параметры getUpdates.
type UpdatesParams struct {
	Offset         *int64   // Вернуть обновления с ID >= offset
	Timeout        int      // Long polling, секунды (0 = короткий опрос)
	AllowedUpdates []string // Ограничение типов обновлений
}

// GetUpdates выполняет long polling и возвращает сырой ответ Bot API.
//
// HTTP таймаут: max(timeout+5s, 30s).
func (b *Bot) GetUpdates(ctx context.Context, p UpdatesParams) (json.RawMessage, error) {
	if b.token == "" {
		return nil, ErrMissingCredential
	}

	payload := map[string]any{}
	if p.Offset != nil {
		payload["offset"] = *p.Offset
	}
	if p.Timeout > 0 {
		payload["timeout"] = p.Timeout
	}
	if len(p.AllowedUpdates) > 0 {
		payload["allowed_updates"] = p.AllowedUpdates
	}

	var raw []byte
	err := b.api.Do(ctx, apiclient.Request{
		Endpoint: "getUpdates",
		Method:   "POST",
		URL:      b.methodURL("getUpdates"),
		Body:     payload,
		Timeout:  PollHTTPTimeout(p.Timeout),
	}, &raw)
	if err != nil {
		return nil, b.describeError("getUpdates", err)
	}
	return raw, nil
}

// PollHTTPTimeout - HTTP таймаут для long polling с заданным timeout в секундах.
func PollHTTPTimeout(timeout int) time.Duration {
	d := time.Duration(timeout+5) * time.Second
	if d < minPollHTTPTimeout {
		return minPollHTTPTimeout
	}
	return d
}

func (b *Bot) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", b.baseURL, b.token, method)
}

// describeError дополняет ошибку описанием из ответа Bot API
// и вырезает токен из текста сетевых ошибок (он входит в URL).
func (b *Bot) describeError(method string, err error) error {
	var se *apiclient.StatusError
	if errors.As(err, &se) {
		var resp Response
		if json.Unmarshal(se.Body, &resp) == nil && resp.Description != "" {
			return fmt.Errorf("telegram %s failed: %s: %w", method, resp.Description, err)
		}
		return fmt.Errorf("telegram %s failed: %w", method, err)
	}

	if b.token != "" && strings.Contains(err.Error(), b.token) {
		return &redactedError{
			msg: fmt.Sprintf("telegram %s failed: %s", method, strings.ReplaceAll(err.Error(), b.token, "<token>")),
			err: err,
		}
	}
	return fmt.Errorf("telegram %s failed: %w", method, err)
}

// redactedError скрывает токен в тексте, но сохраняет цепочку для errors.Is/As.
type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }

func (e *redactedError) Unwrap() error { return e.err }
