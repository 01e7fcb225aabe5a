// Реестр для хранения и поиска инструментов.
package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrToolNotFound - инструмент с таким именем не зарегистрирован.
var ErrToolNotFound = errors.New("tool not found")

// Registry - потокобезопасное хранилище инструментов.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry создает новый пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// validateToolDefinition проверяет, что схема параметров пригодна для
// function calling: объект с type "object" и required из строк.
//
// Схема проходит через JSON, поэтому []string и []any в required
// проверяются одинаково.
func validateToolDefinition(def ToolDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if def.Parameters == nil {
		return fmt.Errorf("tool '%s': parameters cannot be nil", def.Name)
	}

	raw, err := json.Marshal(def.Parameters)
	if err != nil {
		return fmt.Errorf("tool '%s': failed to marshal parameters: %w", def.Name, err)
	}
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		return fmt.Errorf("tool '%s': parameters must be a JSON object, got: %s", def.Name, raw)
	}

	typ, ok := schema["type"]
	if !ok {
		return fmt.Errorf("tool '%s': parameters must have 'type' field", def.Name)
	}
	switch typ := typ.(type) {
	case string:
		if typ != "object" {
			return fmt.Errorf("tool '%s': parameters.type must be 'object', got: '%s'", def.Name, typ)
		}
	default:
		return fmt.Errorf("tool '%s': parameters.type must be a string, got: %T", def.Name, typ)
	}

	req, ok := schema["required"]
	if !ok {
		return nil
	}
	items, ok := req.([]any)
	if !ok {
		return fmt.Errorf("tool '%s': parameters.required must be an array", def.Name)
	}
	for i, item := range items {
		if _, ok := item.(string); !ok {
			return fmt.Errorf("tool '%s': parameters.required[%d] must be a string, got: %T", def.Name, i, item)
		}
	}
	return nil
}

// Register проверяет схему инструмента и добавляет его в реестр.
// Повторная регистрация имени заменяет инструмент.
func (r *Registry) Register(tool Tool) error {
	def := tool.Definition()

	if err := validateToolDefinition(def); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[def.Name] = tool
	return nil
}

// Get ищет инструмент по имени.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrToolNotFound, name)
	}
	return tool, nil
}

// Names возвращает отсортированный список имён инструментов.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetDefinitions возвращает список всех определений для отправки в LLM.
func (r *Registry) GetDefinitions() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, t.Definition())
	}
	// Стабильный порядок - одинаковый запрос к модели от запуска к запуску
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}
