package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ExpandsEnvAndAppliesDefaults(t *testing.T) {
	t.Setenv("WX_TEST_KEY", "sk-from-env")
	t.Setenv("WX_TEST_TOKEN", "123:abc")

	path := writeConfig(t, `
models:
  default_chat: main
  definitions:
    main:
      model_name: gpt-4o-mini
      api_key: ${WX_TEST_KEY}
      temperature: 0.2
telegram:
  bot_token: ${WX_TEST_TOKEN}
  default_chat_id: "42"
poller:
  state_db: offsets.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	def := cfg.Models.Definitions["main"]
	assert.Equal(t, ProviderOpenAI, def.Provider)
	assert.Equal(t, "sk-from-env", def.APIKey)
	require.NotNil(t, def.Seed)
	assert.Equal(t, DefaultSeed, *def.Seed)

	assert.Equal(t, "123:abc", cfg.Telegram.BotToken)
	assert.Equal(t, "https://api.telegram.org", cfg.Telegram.BaseURL)
	assert.Equal(t, UnitsMetric, cfg.Weather.DefaultUnits)
	assert.Equal(t, "https://geocoding-api.open-meteo.com/v1/search", cfg.Weather.GeocodingURL)
	assert.Equal(t, DefaultMCPServers(), cfg.MCPServers)
	assert.Equal(t, 20, cfg.Poller.Timeout)
	assert.Equal(t, 1.0, cfg.Poller.IdleSleep)
	assert.Equal(t, "offsets.db", cfg.Poller.StateDB)
	assert.Equal(t, 5*time.Minute, cfg.AgentTimeout())
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown default model",
			yaml:    "models:\n  default_chat: nope\n",
			wantErr: "default_chat model 'nope' is not defined",
		},
		{
			name:    "unknown provider",
			yaml:    "models:\n  definitions:\n    a:\n      provider: anthropic\n",
			wantErr: "unknown provider 'anthropic'",
		},
		{
			name:    "bad units",
			yaml:    "weather:\n  default_units: kelvin\n",
			wantErr: "weather.default_units must be metric or imperial",
		},
		{
			name:    "bad timeout",
			yaml:    "telegram:\n  timeout: soon\n",
			wantErr: "invalid telegram.timeout format",
		},
		{
			name:    "server without command",
			yaml:    "mcp_servers:\n  weather:\n    args: [\"--debug\"]\n",
			wantErr: "mcp_servers.weather.command is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestFromEnv(t *testing.T) {
	t.Setenv("LLM_TYPE", "azure_openai")
	t.Setenv("LLM_MODEL_NAME", "gpt-4o-deployment")
	t.Setenv("LLM_TEMPERATURE", "0.5")
	t.Setenv("LLM_MAX_RETRIES", "4")
	t.Setenv("AZURE_OPENAI_API_KEY", "az-key")
	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://example.openai.azure.com")
	t.Setenv("DEFAULT_WEATHER_UNITS", "imperial")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "-100500")

	cfg, err := FromEnv()
	require.NoError(t, err)

	def, ok := cfg.GetChatModel("")
	require.True(t, ok)
	assert.Equal(t, ProviderAzureOpenAI, def.Provider)
	assert.Equal(t, "gpt-4o-deployment", def.ModelName)
	assert.Equal(t, 0.5, def.Temperature)
	assert.Equal(t, 4, def.MaxRetries)
	assert.Equal(t, "az-key", def.APIKey)
	assert.Equal(t, "https://example.openai.azure.com", def.BaseURL)

	assert.Equal(t, UnitsImperial, cfg.Weather.DefaultUnits)
	assert.Equal(t, "123:abc", cfg.Telegram.BotToken)
	assert.Equal(t, "-100500", cfg.Telegram.DefaultChatID)
}

func TestFromEnv_UnknownProviderFallsBackToOpenAI(t *testing.T) {
	t.Setenv("LLM_TYPE", "something-else")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("LLM_TEMPERATURE", "")
	t.Setenv("LLM_MAX_RETRIES", "")
	t.Setenv("DEFAULT_WEATHER_UNITS", "")

	cfg, err := FromEnv()
	require.NoError(t, err)

	def, _ := cfg.GetChatModel("default")
	assert.Equal(t, ProviderOpenAI, def.Provider)
	assert.Equal(t, "sk-test", def.APIKey)
	assert.Equal(t, 0.2, def.Temperature)
	assert.Equal(t, 2, def.MaxRetries)
}

func TestFromEnv_BadTemperature(t *testing.T) {
	t.Setenv("LLM_TEMPERATURE", "warm")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid LLM_TEMPERATURE")
}

func TestLoadOrEnv_FallsBackWhenFileMissing(t *testing.T) {
	t.Setenv("LLM_TYPE", "groq")
	t.Setenv("GROQ_API_KEY", "gsk-test")
	t.Setenv("DEFAULT_WEATHER_UNITS", "")

	cfg, err := LoadOrEnv(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	def, _ := cfg.GetChatModel("")
	assert.Equal(t, ProviderGroq, def.Provider)
}

func TestGetDefaults_KeepsExplicitValues(t *testing.T) {
	w := WeatherConfig{DefaultUnits: " Imperial ", RateLimit: 10, Timeout: "5s"}
	got := w.GetDefaults()
	assert.Equal(t, UnitsImperial, got.DefaultUnits)
	assert.Equal(t, 10, got.RateLimit)
	assert.Equal(t, "5s", got.Timeout)
	assert.Equal(t, 3, got.RetryAttempts)

	tg := TelegramConfig{BaseURL: "http://localhost:8081"}
	assert.Equal(t, "http://localhost:8081", tg.GetDefaults().BaseURL)
}
