// Package openai реализует адаптер LLM провайдера для OpenAI-совместимых API.
//
// Один клиент обслуживает три вида провайдеров: OpenAI, Azure OpenAI и Groq
// (OpenAI-совместимый endpoint). Поддерживает Function Calling (tools).
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ilkoid/wxagent/pkg/config"
	"github.com/ilkoid/wxagent/pkg/llm"
	"github.com/ilkoid/wxagent/pkg/tools"
	"github.com/ilkoid/wxagent/pkg/utils"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// GroqBaseURL - OpenAI-совместимый endpoint Groq.
	GroqBaseURL = "https://api.groq.com/openai/v1"

	// DefaultAzureAPIVersion - версия Azure OpenAI API по умолчанию.
	DefaultAzureAPIVersion = "2024-12-01-preview"
)

// Client реализует интерфейс llm.Provider для OpenAI-совместимых API.
type Client struct {
	api        *openai.Client
	provider   string
	opts       llm.GenerateOptions
	retryDelay time.Duration
}

// NewClient создает клиент на основе конфигурации модели.
//
// Для azure_openai ModelName - имя deployment, BaseURL - endpoint ресурса.
// Для groq BaseURL по умолчанию GroqBaseURL.
func NewClient(modelDef config.ModelDef, opts ...llm.GenerateOption) *Client {
	var cfg openai.ClientConfig

	switch modelDef.Provider {
	case config.ProviderAzureOpenAI:
		cfg = openai.DefaultAzureConfig(modelDef.APIKey, modelDef.BaseURL)
		cfg.APIVersion = modelDef.APIVersion
		if cfg.APIVersion == "" {
			cfg.APIVersion = DefaultAzureAPIVersion
		}
		// Имя deployment передаётся как есть
		cfg.AzureModelMapperFunc = func(model string) string { return model }

	case config.ProviderGroq:
		cfg = openai.DefaultConfig(modelDef.APIKey)
		cfg.BaseURL = GroqBaseURL
		if modelDef.BaseURL != "" {
			cfg.BaseURL = modelDef.BaseURL
		}

	default:
		cfg = openai.DefaultConfig(modelDef.APIKey)
		if modelDef.BaseURL != "" {
			cfg.BaseURL = modelDef.BaseURL
		}
	}

	if modelDef.Timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: modelDef.Timeout}
	}

	base := llm.GenerateOptions{
		Model:       modelDef.ModelName,
		Temperature: modelDef.Temperature,
		MaxTokens:   modelDef.MaxTokens,
		Seed:        modelDef.Seed,
		MaxRetries:  modelDef.MaxRetries,
	}

	return &Client{
		api:        openai.NewClientWithConfig(cfg),
		provider:   modelDef.Provider,
		opts:       base.Apply(opts...),
		retryDelay: 500 * time.Millisecond,
	}
}

// Generate выполняет запрос к API и возвращает ответ модели.
//
// toolsArgs[0], если передан, должен быть []tools.ToolDefinition.
// Временные ошибки API (429, 5xx) повторяются до MaxRetries раз.
func (c *Client) Generate(ctx context.Context, messages []llm.Message, toolsArgs ...any) (llm.Message, error) {
	startTime := time.Now()

	// 1. Конвертируем наши сообщения в формат OpenAI SDK
	openaiMsgs := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		openaiMsgs[i] = mapToOpenAI(m)
	}

	// 2. Создаём базовый запрос
	req := openai.ChatCompletionRequest{
		Model:       c.opts.Model,
		Messages:    openaiMsgs,
		Temperature: float32(c.opts.Temperature),
		MaxTokens:   c.opts.MaxTokens,
		Seed:        c.opts.Seed,
	}

	// 3. Добавляем tools если переданы
	if len(toolsArgs) > 0 && toolsArgs[0] != nil {
		toolDefs, ok := toolsArgs[0].([]tools.ToolDefinition)
		if !ok {
			return llm.Message{}, fmt.Errorf("invalid tools type: expected []tools.ToolDefinition, got %T", toolsArgs[0])
		}
		if len(toolDefs) > 0 {
			req.Tools = convertToolsToOpenAI(toolDefs)
			req.ToolChoice = "auto"
		}
	}

	utils.Debug("LLM request started",
		"provider", c.provider,
		"model", c.opts.Model,
		"messages_count", len(messages),
		"tools_count", len(req.Tools))

	// 4. Вызываем API с повторами
	var resp openai.ChatCompletionResponse
	var err error
	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			utils.Warn("LLM request retry",
				"attempt", attempt,
				"error", err)
			select {
			case <-ctx.Done():
				return llm.Message{}, ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
		}

		resp, err = c.api.CreateChatCompletion(ctx, req)
		if err == nil || !isRetryable(err) {
			break
		}
	}
	if err != nil {
		utils.Error("LLM API request failed",
			"error", err,
			"model", c.opts.Model,
			"duration_ms", time.Since(startTime).Milliseconds())
		return llm.Message{}, fmt.Errorf("%s api error: %w", c.provider, err)
	}

	if len(resp.Choices) == 0 {
		return llm.Message{}, fmt.Errorf("no choices in response")
	}

	// 5. Маппим ответ обратно в наш формат
	choice := resp.Choices[0].Message
	result := llm.Message{
		Role:    llm.Role(choice.Role),
		Content: choice.Content,
	}
	if result.Role == "" {
		result.Role = llm.RoleAssistant
	}

	if len(choice.ToolCalls) > 0 {
		result.ToolCalls = make([]llm.ToolCall, len(choice.ToolCalls))
		for i, tc := range choice.ToolCalls {
			result.ToolCalls[i] = llm.ToolCall{
				ID:   tc.ID,
				Name: tc.Function.Name,
				Args: tc.Function.Arguments,
			}
		}
	}

	utils.Info("LLM response received",
		"model", c.opts.Model,
		"tool_calls_count", len(result.ToolCalls),
		"content_length", len(result.Content),
		"duration_ms", time.Since(startTime).Milliseconds())

	return result, nil
}

// isRetryable - 429 и 5xx считаются временными.
func isRetryable(err error) bool {
	status := 0

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	default:
		return false
	}

	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// mapToOpenAI конвертирует наше внутреннее сообщение в формат SDK.
func mapToOpenAI(m llm.Message) openai.ChatCompletionMessage {
	msg := openai.ChatCompletionMessage{
		Role:    string(m.Role),
		Content: m.Content,
	}

	switch m.Role {
	case llm.RoleTool:
		msg.ToolCallID = m.ToolCallID
	case llm.RoleAssistant:
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Args,
				},
			})
		}
	}

	return msg
}

// convertToolsToOpenAI конвертирует определения инструментов
// в формат OpenAI Function Calling.
func convertToolsToOpenAI(defs []tools.ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, len(defs))

	for i, def := range defs {
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		}
	}

	return result
}
