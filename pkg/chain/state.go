package chain

import (
	"fmt"
	"strings"

	"github.com/ilkoid/wxagent/pkg/llm"
)

// WeatherObservation - нормализованный результат get_weather.
//
// Добавляется после каждого успешного вызова, дубликаты не схлопываются.
type WeatherObservation struct {
	Location    string         `json:"location"`
	Temperature *float64       `json:"temperature"`
	Unit        string         `json:"unit,omitempty"`
	Condition   string         `json:"condition"`
	Raw         map[string]any `json:"raw"`
}

// ThinkState - состояние одного запуска think агента.
//
// Messages только дополняется. Состояние принадлежит одному запуску.
type ThinkState struct {
	Messages       []llm.Message        `json:"messages"`
	WeatherResults []WeatherObservation `json:"weather_results"`
	Loops          int                  `json:"loops"`

	// RunID и TranscriptPath заполняются, если включён архив.
	RunID          string `json:"run_id,omitempty"`
	TranscriptPath string `json:"transcript_path,omitempty"`
}

// NewThinkState создаёт состояние с инструкцией пользователя.
//
// Если задан chatID, добавляется отдельное сообщение-подсказка с ним.
func NewThinkState(instruction, chatID string) *ThinkState {
	s := &ThinkState{
		Messages: []llm.Message{llm.UserMessage(instruction)},
	}
	if id := strings.TrimSpace(chatID); id != "" {
		s.Messages = append(s.Messages, llm.UserMessage(ChatIDHint(id)))
	}
	return s
}

// ChatIDHint - текст подсказки с chat_id.
func ChatIDHint(chatID string) string {
	return fmt.Sprintf("Use this Telegram chat_id: %s", chatID)
}

// Instruction возвращает первое пользовательское сообщение.
func (s *ThinkState) Instruction() string {
	for _, m := range s.Messages {
		if m.Role == llm.RoleUser {
			return m.Content
		}
	}
	return ""
}

// LastAssistant возвращает последнее сообщение ассистента с текстом.
func (s *ThinkState) LastAssistant() (llm.Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		m := s.Messages[i]
		if m.Role == llm.RoleAssistant && strings.TrimSpace(m.Content) != "" {
			return m, true
		}
	}
	return llm.Message{}, false
}

// Summary - текст последнего сообщения ассистента или инструмента.
func (s *ThinkState) Summary() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		m := s.Messages[i]
		if (m.Role == llm.RoleAssistant || m.Role == llm.RoleTool) && strings.TrimSpace(m.Content) != "" {
			return m.Content
		}
	}
	return ""
}

// Roles возвращает роли сообщений по порядку.
func (s *ThinkState) Roles() []llm.Role {
	roles := make([]llm.Role, len(s.Messages))
	for i, m := range s.Messages {
		roles[i] = m.Role
	}
	return roles
}
