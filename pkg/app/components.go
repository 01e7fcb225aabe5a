// Package app собирает компоненты агента из конфигурации для всех
// точек входа: CLI, TUI и Telegram listener.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/ilkoid/wxagent/pkg/archive"
	"github.com/ilkoid/wxagent/pkg/chain"
	"github.com/ilkoid/wxagent/pkg/config"
	"github.com/ilkoid/wxagent/pkg/llm"
	"github.com/ilkoid/wxagent/pkg/mcpbridge"
	"github.com/ilkoid/wxagent/pkg/models"
	"github.com/ilkoid/wxagent/pkg/pipeline"
	"github.com/ilkoid/wxagent/pkg/prompt"
	"github.com/ilkoid/wxagent/pkg/tools"
	"github.com/ilkoid/wxagent/pkg/tools/std"
	"github.com/ilkoid/wxagent/pkg/utils"
)

// Components содержит все компоненты приложения.
type Components struct {
	Config    *config.AppConfig
	Bridge    *mcpbridge.Manager
	Models    *models.Registry
	LLM       llm.Provider
	ModelName string // Алиас выбранной модели
	Tools     *tools.Registry
	Agent     *chain.ThinkAgent
	Pipeline  *pipeline.Pipeline
	Archive   *archive.Config // nil - транскрипты не пишутся
}

// Initialize запускает MCP серверы из конфигурации и собирает компоненты.
//
// Сервер, который не удалось запустить, пропускается: его инструменты
// вернут ошибку при вызове.
func Initialize(ctx context.Context, cfg *config.AppConfig) (*Components, error) {
	bridge := mcpbridge.NewManager()
	bridge.Start(ctx, cfg.MCPServers)

	c, err := Assemble(cfg, bridge)
	if err != nil {
		_ = bridge.Close()
		return nil, err
	}
	return c, nil
}

// Assemble собирает компоненты поверх готового bridge без запуска процессов.
func Assemble(cfg *config.AppConfig, bridge *mcpbridge.Manager) (*Components, error) {
	utils.Info("Initializing components",
		"servers", bridge.Servers(),
		"default_model", cfg.Models.DefaultChat)

	// 1. Модели
	registry, err := models.NewRegistryFromConfig(cfg)
	if err != nil {
		utils.Error("Model registry creation failed", "error", err)
		return nil, fmt.Errorf("failed to create model registry: %w", err)
	}

	provider, modelDef, modelName, err := registry.GetWithFallback(cfg.Agent.Model, cfg.Models.DefaultChat)
	if err != nil {
		return nil, fmt.Errorf("failed to select model: %w", err)
	}
	utils.Info("LLM provider selected", "model", modelName, "provider", modelDef.Provider)

	// 2. Инструменты агента
	toolsRegistry := tools.NewRegistry()
	if err := SetupTools(toolsRegistry, bridge, cfg); err != nil {
		utils.Error("Tools registration failed", "error", err)
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	// 3. Архив транскриптов
	archiveCfg, err := NewArchiveConfig(cfg.Archive)
	if err != nil {
		return nil, err
	}

	// 4. Системный промпт
	systemPrompt, err := LoadSystemPrompt(cfg)
	if err != nil {
		return nil, err
	}

	// 5. Агент и пайплайн
	agent := chain.NewThinkAgent(provider, toolsRegistry,
		chain.WithSystemPrompt(systemPrompt),
		chain.WithModelName(modelDef.ModelName))
	agent.SetArchive(archiveCfg)

	pipe := pipeline.New(bridge, provider, modelDef.ModelName)
	pipe.SetArchive(archiveCfg)

	return &Components{
		Config:    cfg,
		Bridge:    bridge,
		Models:    registry,
		LLM:       provider,
		ModelName: modelName,
		Tools:     toolsRegistry,
		Agent:     agent,
		Pipeline:  pipe,
		Archive:   archiveCfg,
	}, nil
}

// SetupTools регистрирует инструменты think-агента.
func SetupTools(registry *tools.Registry, caller tools.Caller, cfg *config.AppConfig) error {
	var errs []error
	for _, tool := range []tools.Tool{
		std.NewGetWeatherTool(caller, cfg.Weather.DefaultUnits),
		std.NewSendTelegramTool(caller, cfg.Telegram.DefaultChatID),
	} {
		if err := registry.Register(tool); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LoadSystemPrompt возвращает системный промпт think-агента.
//
// agent.prompt_file рендерится как шаблон с prompt.AgentData. Пустой
// результат означает встроенный промпт.
func LoadSystemPrompt(cfg *config.AppConfig) (string, error) {
	if cfg.Agent.PromptFile == "" {
		return cfg.Agent.SystemPrompt, nil
	}

	text, err := prompt.LoadSystem(cfg.Agent.PromptFile, prompt.AgentData{
		DefaultUnits:  cfg.Weather.DefaultUnits,
		DefaultChatID: cfg.Telegram.DefaultChatID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to load agent prompt: %w", err)
	}
	utils.Info("Agent prompt loaded", "path", cfg.Agent.PromptFile)
	return text, nil
}

// NewArchiveConfig строит настройки записи транскриптов.
// Выключенный архив - nil без ошибки.
func NewArchiveConfig(cfg config.ArchiveConfig) (*archive.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	out := &archive.Config{Dir: cfg.Dir, MaxResultSize: 64 * 1024}
	if cfg.S3.Enabled() {
		uploader, err := archive.NewS3Uploader(cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("failed to create archive uploader: %w", err)
		}
		out.Uploader = uploader
		utils.Info("Archive upload enabled", "bucket", cfg.S3.Bucket, "prefix", cfg.S3.Prefix)
	}
	return out, nil
}

// Close останавливает MCP серверы.
func (c *Components) Close() error {
	if c == nil || c.Bridge == nil {
		return nil
	}
	return c.Bridge.Close()
}
