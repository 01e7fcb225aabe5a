// Структуры данных - описывает формат YAML файла промпта.
package prompt

// PromptFile описывает структуру YAML-файла с промптом.
//
//	messages:
//	  - role: system
//	    content: |
//	      You are a weather assistant. Default units: {{.DefaultUnits}}.
type PromptFile struct {
	Messages []Message `yaml:"messages"`
}

// Message - одно сообщение в чате
type Message struct {
	Role    string `yaml:"role"`    // system, user, assistant
	Content string `yaml:"content"` // Шаблон с {{.Variables}}
}

// AgentData - переменные шаблона системного промпта агента.
type AgentData struct {
	DefaultUnits  string
	DefaultChatID string
}
