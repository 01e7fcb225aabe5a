// Загрузка и Рендер - чтение файла и text/template.

package prompt

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/ilkoid/wxagent/pkg/llm"
	"gopkg.in/yaml.v3"
)

// Load загружает и парсит YAML файл промпта
func Load(path string) (*PromptFile, error) {
	// 1. Проверяем наличие
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("prompt file not found: %s", path)
	}

	// 2. Читаем байты
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read error: %w", err)
	}

	// 3. Парсим YAML
	var pf PromptFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("yaml parse error: %w", err)
	}
	if len(pf.Messages) == 0 {
		return nil, fmt.Errorf("prompt file %s has no messages", path)
	}

	return &pf, nil
}

// RenderMessages принимает данные (struct или map) и возвращает готовые сообщения
// где все {{.Field}} заменены на значения.
func (pf *PromptFile) RenderMessages(data any) ([]llm.Message, error) {
	rendered := make([]llm.Message, len(pf.Messages))

	for i, msg := range pf.Messages {
		tmpl, err := template.New("msg").Option("missingkey=error").Parse(msg.Content)
		if err != nil {
			return nil, fmt.Errorf("template parse error in message #%d (%s): %w", i, msg.Role, err)
		}

		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("template execute error in message #%d: %w", i, err)
		}

		rendered[i] = llm.Message{
			Role:    llm.Role(strings.ToLower(strings.TrimSpace(msg.Role))),
			Content: buf.String(),
		}
	}

	return rendered, nil
}

// System рендерит файл и склеивает все system сообщения через пустую строку.
func (pf *PromptFile) System(data any) (string, error) {
	msgs, err := pf.RenderMessages(data)
	if err != nil {
		return "", err
	}

	var parts []string
	for _, m := range msgs {
		if m.Role == llm.RoleSystem && strings.TrimSpace(m.Content) != "" {
			parts = append(parts, strings.TrimSpace(m.Content))
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("prompt has no system messages")
	}
	return strings.Join(parts, "\n\n"), nil
}

// LoadSystem загружает файл и возвращает системный промпт.
func LoadSystem(path string, data any) (string, error) {
	pf, err := Load(path)
	if err != nil {
		return "", err
	}
	return pf.System(data)
}
