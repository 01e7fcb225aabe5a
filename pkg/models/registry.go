// Package models - реестр LLM провайдеров, собранный из config.yaml.
//
// Модели из models.definitions регистрируются при старте,
// агенты берут нужную по алиасу.
package models

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ilkoid/wxagent/pkg/config"
	"github.com/ilkoid/wxagent/pkg/factory"
	"github.com/ilkoid/wxagent/pkg/llm"
	"github.com/ilkoid/wxagent/pkg/utils"
)

// Registry - потокобезопасное хранилище LLM провайдеров.
type Registry struct {
	mu     sync.RWMutex
	models map[string]ModelEntry
}

// ModelEntry - провайдер с его конфигурацией.
type ModelEntry struct {
	Provider llm.Provider
	Config   config.ModelDef
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		models: make(map[string]ModelEntry),
	}
}

// Register добавляет модель. Повторная регистрация имени - ошибка.
func (r *Registry) Register(name string, modelDef config.ModelDef, provider llm.Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.models[name]; exists {
		return fmt.Errorf("model '%s' already registered", name)
	}

	r.models[name] = ModelEntry{
		Provider: provider,
		Config:   modelDef,
	}
	return nil
}

// Get извлекает провайдер по имени модели.
func (r *Registry) Get(name string) (llm.Provider, config.ModelDef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.models[name]
	if !ok {
		return nil, config.ModelDef{}, fmt.Errorf("model '%s' not found in registry", name)
	}
	return entry.Provider, entry.Config, nil
}

// GetWithFallback извлекает провайдер с fallback на дефолтную модель.
//
// Возвращает (provider, modelDef, actualModelName, error).
func (r *Registry) GetWithFallback(requested, defaultModel string) (llm.Provider, config.ModelDef, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if entry, ok := r.models[requested]; ok {
		return entry.Provider, entry.Config, requested, nil
	}
	if entry, ok := r.models[defaultModel]; ok {
		return entry.Provider, entry.Config, defaultModel, nil
	}
	return nil, config.ModelDef{}, "", fmt.Errorf("neither requested model '%s' nor default '%s' found in registry", requested, defaultModel)
}

// ListNames возвращает отсортированный список имён моделей.
func (r *Registry) ListNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewRegistryFromConfig создаёт провайдеры для моделей из конфигурации.
//
// Обязательны модель по умолчанию и agent.model (если она определена):
// их ошибка прерывает сборку. Остальные модели без ключей пропускаются
// с предупреждением, чтобы пример конфигурации работал с одним ключом.
func NewRegistryFromConfig(cfg *config.AppConfig) (*Registry, error) {
	registry := NewRegistry()

	required := map[string]bool{cfg.Models.DefaultChat: true}
	if _, ok := cfg.GetChatModel(cfg.Agent.Model); ok {
		required[cfg.Agent.Model] = true
	}

	names := make([]string, 0, len(cfg.Models.Definitions))
	for name := range cfg.Models.Definitions {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		modelDef := cfg.Models.Definitions[name]
		provider, err := factory.NewLLMProvider(modelDef)
		if err != nil {
			if required[name] {
				return nil, fmt.Errorf("failed to create provider for model '%s': %w", name, err)
			}
			utils.Warn("Model skipped", "model", name, "provider", modelDef.Provider, "error", err)
			continue
		}

		if err := registry.Register(name, modelDef, provider); err != nil {
			return nil, fmt.Errorf("failed to register model '%s': %w", name, err)
		}
	}

	return registry, nil
}
