package models_test

import (
	"context"
	"testing"

	"github.com/ilkoid/wxagent/pkg/config"
	"github.com/ilkoid/wxagent/pkg/llm"
	"github.com/ilkoid/wxagent/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stub(reply string) llm.Provider {
	return llm.ProviderFunc(func(context.Context, []llm.Message, ...any) (llm.Message, error) {
		return llm.AssistantMessage(reply), nil
	})
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := models.NewRegistry()
	require.NoError(t, r.Register("fast", config.ModelDef{ModelName: "llama"}, stub("fast")))
	require.NoError(t, r.Register("smart", config.ModelDef{ModelName: "gpt-4o"}, stub("smart")))

	err := r.Register("fast", config.ModelDef{}, stub("dup"))
	assert.Error(t, err)

	p, def, err := r.Get("smart")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", def.ModelName)
	msg, _ := p.Generate(context.Background(), nil)
	assert.Equal(t, "smart", msg.Content)

	_, _, err = r.Get("missing")
	assert.Error(t, err)

	assert.Equal(t, []string{"fast", "smart"}, r.ListNames())
}

func TestRegistry_GetWithFallback(t *testing.T) {
	r := models.NewRegistry()
	require.NoError(t, r.Register("default", config.ModelDef{ModelName: "gpt-4o-mini"}, stub("d")))

	_, _, name, err := r.GetWithFallback("", "default")
	require.NoError(t, err)
	assert.Equal(t, "default", name)

	_, _, _, err = r.GetWithFallback("x", "y")
	assert.Error(t, err)
}

func TestNewRegistryFromConfig(t *testing.T) {
	cfg := &config.AppConfig{Models: config.ModelsConfig{
		DefaultChat: "main",
		Definitions: map[string]config.ModelDef{
			"main": {Provider: config.ProviderGroq, ModelName: "llama-3.3-70b-versatile", APIKey: "k"},
			"alt":  {Provider: config.ProviderOpenAI, ModelName: "gpt-4o-mini", APIKey: "k"},
		},
	}}

	r, err := models.NewRegistryFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"alt", "main"}, r.ListNames())

}

func TestNewRegistryFromConfig_SkipsOptionalModelsWithoutKeys(t *testing.T) {
	cfg := &config.AppConfig{Models: config.ModelsConfig{
		DefaultChat: "main",
		Definitions: map[string]config.ModelDef{
			"main":  {Provider: config.ProviderOpenAI, ModelName: "gpt-4o-mini", APIKey: "k"},
			"azure": {Provider: config.ProviderAzureOpenAI, ModelName: "m", APIKey: "k"},
			"groq":  {Provider: config.ProviderGroq, ModelName: "llama-3.3-70b-versatile"},
		},
	}}

	r, err := models.NewRegistryFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"main"}, r.ListNames())
}

func TestNewRegistryFromConfig_RequiredModelErrors(t *testing.T) {
	tests := []struct {
		name       string
		defaultFor string
		agentModel string
		wantErr    string
	}{
		{"default model", "groq", "", "model 'groq': GROQ_API_KEY is not set"},
		{"agent model", "main", "azure", "model 'azure': AZURE_OPENAI_ENDPOINT is not set"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.AppConfig{
				Models: config.ModelsConfig{
					DefaultChat: tt.defaultFor,
					Definitions: map[string]config.ModelDef{
						"main":  {Provider: config.ProviderOpenAI, ModelName: "gpt-4o-mini", APIKey: "k"},
						"azure": {Provider: config.ProviderAzureOpenAI, ModelName: "m", APIKey: "k"},
						"groq":  {Provider: config.ProviderGroq, ModelName: "llama-3.3-70b-versatile"},
					},
				},
				Agent: config.AgentConfig{Model: tt.agentModel},
			}

			_, err := models.NewRegistryFromConfig(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
