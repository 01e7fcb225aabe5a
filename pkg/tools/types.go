// Интерфейс Tool и структуры определений.

package tools

import "context"

// JSONSchema представляет JSON Schema для параметров инструмента.
type JSONSchema map[string]any

// ToolDefinition описывает инструмент для LLM (Function Calling API format).
type ToolDefinition struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  JSONSchema `json:"parameters"` // JSON Schema объекта аргументов
}

// Tool - контракт, который должен реализовать любой инструмент агента.
type Tool interface {
	// Definition возвращает описание инструмента для LLM.
	Definition() ToolDefinition

	// Execute выполняет логику инструмента.
	// argsJSON - сырой JSON с аргументами, который прислала LLM.
	// Возвращает результат (JSON объект) или ошибку.
	Execute(ctx context.Context, argsJSON string) (string, error)
}

// Caller вызывает инструмент внешнего сервера (MCP) по имени.
// Реализуется mcpbridge.Manager, в тестах - заглушками.
type Caller interface {
	CallJSON(ctx context.Context, server, tool string, args map[string]any) (map[string]any, error)
}
