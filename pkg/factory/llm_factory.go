// Package factory создаёт LLM провайдеров по виду из конфигурации.
package factory

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ilkoid/wxagent/pkg/config"
	"github.com/ilkoid/wxagent/pkg/llm"
	"github.com/ilkoid/wxagent/pkg/llm/openai"
)

// ErrUnknownProvider - вид провайдера не поддерживается.
var ErrUnknownProvider = errors.New("unknown provider type")

// NewLLMProvider создаёт провайдера на основе конфигурации модели.
//
// Все три вида говорят на OpenAI-совместимом API и отличаются
// только настройкой клиента.
func NewLLMProvider(modelDef config.ModelDef) (llm.Provider, error) {
	if err := Validate(modelDef); err != nil {
		return nil, err
	}
	return openai.NewClient(modelDef), nil
}

// Validate проверяет, что для вида провайдера заданы обязательные поля.
func Validate(modelDef config.ModelDef) error {
	if strings.TrimSpace(modelDef.ModelName) == "" {
		return fmt.Errorf("model_name is required")
	}

	switch modelDef.Provider {
	case config.ProviderOpenAI:
		if modelDef.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is not set")
		}
	case config.ProviderAzureOpenAI:
		if modelDef.APIKey == "" {
			return fmt.Errorf("AZURE_OPENAI_API_KEY is not set")
		}
		if modelDef.BaseURL == "" {
			return fmt.Errorf("AZURE_OPENAI_ENDPOINT is not set")
		}
	case config.ProviderGroq:
		if modelDef.APIKey == "" {
			return fmt.Errorf("GROQ_API_KEY is not set")
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownProvider, modelDef.Provider)
	}
	return nil
}
