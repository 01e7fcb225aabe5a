package telegram

import (
	"encoding/json"
	"strings"
)

// Response - обёртка ответа Bot API.
type Response struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
}

// User - отправитель сообщения.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// Chat - чат, группа или канал.
type Chat struct {
	ID       int64  `json:"id"`
	Type     string `json:"type,omitempty"`
	Title    string `json:"title,omitempty"`
	Username string `json:"username,omitempty"`
}

// Message - сообщение Telegram.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Date      int64  `json:"date"`
	Text      string `json:"text,omitempty"`
	Caption   string `json:"caption,omitempty"`
}

// Body возвращает текст сообщения или подпись к медиа.
func (m *Message) Body() string {
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}

// FromBot сообщает, отправлено ли сообщение ботом.
func (m *Message) FromBot() bool {
	return m.From != nil && m.From.IsBot
}

// SenderLabel - "@username", иначе имя и фамилия, иначе "unknown user".
func (m *Message) SenderLabel() string {
	if m.From == nil {
		return "unknown user"
	}
	if m.From.Username != "" {
		return "@" + m.From.Username
	}
	var parts []string
	for _, p := range []string{m.From.FirstName, m.From.LastName} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	label := strings.TrimSpace(strings.Join(parts, " "))
	if label == "" {
		return "unknown user"
	}
	return label
}

// Update - входящее обновление getUpdates.
type Update struct {
	UpdateID          int64    `json:"update_id"`
	Message           *Message `json:"message,omitempty"`
	ChannelPost       *Message `json:"channel_post,omitempty"`
	EditedMessage     *Message `json:"edited_message,omitempty"`
	EditedChannelPost *Message `json:"edited_channel_post,omitempty"`
}

// Payload возвращает первое непустое сообщение обновления:
// message, channel_post, edited_message, edited_channel_post.
func (u *Update) Payload() *Message {
	for _, m := range []*Message{u.Message, u.ChannelPost, u.EditedMessage, u.EditedChannelPost} {
		if m != nil {
			return m
		}
	}
	return nil
}

// UpdatesResponse - разобранный ответ getUpdates.
type UpdatesResponse struct {
	OK          bool     `json:"ok"`
	Result      []Update `json:"result"`
	Description string   `json:"description,omitempty"`
}

// ParseUpdates разбирает сырой ответ getUpdates.
// Отсутствующее поле ok считается true.
func ParseUpdates(raw []byte) (*UpdatesResponse, error) {
	var probe struct {
		OK          *bool             `json:"ok"`
		Result      []json.RawMessage `json:"result"`
		Description string            `json:"description"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}

	resp := &UpdatesResponse{OK: probe.OK == nil || *probe.OK, Description: probe.Description}
	for _, item := range probe.Result {
		var u Update
		// Элементы не-объекты пропускаются
		if err := json.Unmarshal(item, &u); err != nil {
			continue
		}
		resp.Result = append(resp.Result, u)
	}
	return resp, nil
}
