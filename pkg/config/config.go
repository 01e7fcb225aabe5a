package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Виды провайдеров моделей.
const (
	ProviderOpenAI      = "openai"
	ProviderAzureOpenAI = "azure_openai"
	ProviderGroq        = "groq"
)

// Системы единиц для погоды.
const (
	UnitsMetric   = "metric"
	UnitsImperial = "imperial"
)

// AppConfig - корневая структура конфигурации.
// Зеркалит структуру config.yaml.
type AppConfig struct {
	Models     ModelsConfig               `yaml:"models"`
	Weather    WeatherConfig              `yaml:"weather"`
	Telegram   TelegramConfig             `yaml:"telegram"`
	MCPServers map[string]MCPServerConfig `yaml:"mcp_servers"`
	Agent      AgentConfig                `yaml:"agent"`
	App        AppSpecific                `yaml:"app"`
	Archive    ArchiveConfig              `yaml:"archive"`
	Poller     PollerConfig               `yaml:"poller"`
}

// ModelsConfig - настройки AI моделей.
type ModelsConfig struct {
	DefaultChat string              `yaml:"default_chat"` // Алиас модели по умолчанию
	Definitions map[string]ModelDef `yaml:"definitions"`  // Словарь определений моделей
}

// ModelDef - параметры конкретной модели.
type ModelDef struct {
	Provider    string        `yaml:"provider"`   // "openai", "azure_openai", "groq"
	ModelName   string        `yaml:"model_name"` // Реальное имя в API (для Azure - имя deployment)
	APIKey      string        `yaml:"api_key"`    // Поддерживает ${VAR}
	BaseURL     string        `yaml:"base_url"`   // Для Azure - endpoint ресурса
	APIVersion  string        `yaml:"api_version"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	MaxRetries  int           `yaml:"max_retries"`
	Seed        *int          `yaml:"seed"`
	Timeout     time.Duration `yaml:"timeout"` // Go умеет парсить строки вида "60s", "1m"
}

// WeatherConfig - настройки Open-Meteo.
type WeatherConfig struct {
	GeocodingURL  string `yaml:"geocoding_url"`
	ForecastURL   string `yaml:"forecast_url"`
	DefaultUnits  string `yaml:"default_units"`  // metric | imperial
	RateLimit     int    `yaml:"rate_limit"`     // Запросов в минуту
	BurstLimit    int    `yaml:"burst_limit"`    // Burst для rate limiter
	RetryAttempts int    `yaml:"retry_attempts"` // Количество попыток
	Timeout       string `yaml:"timeout"`        // Timeout HTTP запроса ("30s")
}

// GetDefaults возвращает копию с заполненными дефолтами.
func (c *WeatherConfig) GetDefaults() WeatherConfig {
	result := *c

	if result.GeocodingURL == "" {
		result.GeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	}
	if result.ForecastURL == "" {
		result.ForecastURL = "https://api.open-meteo.com/v1/forecast"
	}
	result.DefaultUnits = strings.ToLower(strings.TrimSpace(result.DefaultUnits))
	if result.DefaultUnits == "" {
		result.DefaultUnits = UnitsMetric
	}
	if result.RateLimit == 0 {
		result.RateLimit = 600
	}
	if result.BurstLimit == 0 {
		result.BurstLimit = 5
	}
	if result.RetryAttempts == 0 {
		result.RetryAttempts = 3
	}
	if result.Timeout == "" {
		result.Timeout = "30s"
	}

	return result
}

// TelegramConfig - настройки Telegram Bot API.
type TelegramConfig struct {
	BotToken      string `yaml:"bot_token"`       // Поддерживает ${VAR}
	DefaultChatID string `yaml:"default_chat_id"` // Используется когда chat_id не передан
	BaseURL       string `yaml:"base_url"`
	RateLimit     int    `yaml:"rate_limit"`
	BurstLimit    int    `yaml:"burst_limit"`
	RetryAttempts int    `yaml:"retry_attempts"`
	Timeout       string `yaml:"timeout"`
}

// GetDefaults возвращает копию с заполненными дефолтами.
func (c *TelegramConfig) GetDefaults() TelegramConfig {
	result := *c

	if result.BaseURL == "" {
		result.BaseURL = "https://api.telegram.org"
	}
	if result.RateLimit == 0 {
		result.RateLimit = 1200
	}
	if result.BurstLimit == 0 {
		result.BurstLimit = 5
	}
	if result.RetryAttempts == 0 {
		result.RetryAttempts = 2
	}
	if result.Timeout == "" {
		result.Timeout = "30s"
	}

	return result
}

// MCPServerConfig описывает процесс MCP сервера, запускаемый через stdio.
type MCPServerConfig struct {
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"` // Значения поддерживают ${VAR}
}

// AgentConfig - настройки агентов.
type AgentConfig struct {
	Model        string `yaml:"model"`         // Алиас модели, пусто = models.default_chat
	SystemPrompt string `yaml:"system_prompt"` // Переопределение системного промпта think-агента
	PromptFile   string `yaml:"prompt_file"`   // YAML файл промпта, имеет приоритет над system_prompt
	Timeout      string `yaml:"timeout"`       // Таймаут одного запуска
}

// AppSpecific - общие настройки приложения.
type AppSpecific struct {
	Debug   bool   `yaml:"debug"`
	LogsDir string `yaml:"logs_dir"`
}

// ArchiveConfig - сохранение транскриптов запусков.
type ArchiveConfig struct {
	Enabled bool     `yaml:"enabled"`
	Dir     string   `yaml:"dir"`
	S3      S3Config `yaml:"s3"`
}

// S3Config - настройки объектного хранилища.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	AccessKey string `yaml:"access_key"` // Поддерживает ${VAR}
	SecretKey string `yaml:"secret_key"` // Поддерживает ${VAR}
	UseSSL    bool   `yaml:"use_ssl"`
}

// Enabled сообщает, настроена ли выгрузка в S3.
func (c S3Config) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

// PollerConfig - настройки Telegram listener.
type PollerConfig struct {
	Timeout   int     `yaml:"timeout"`    // Long polling, секунды
	IdleSleep float64 `yaml:"idle_sleep"` // Пауза между пустыми опросами, секунды
	StateDB   string  `yaml:"state_db"`   // SQLite файл для offset, пусто = в памяти
}

// Load читает YAML файл, подставляет ENV переменные и возвращает готовую структуру.
//
// Перед подстановкой подгружается .env из текущей директории (если есть).
func Load(path string) (*AppConfig, error) {
	// 1. Проверяем существование файла
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found at: %s", path)
	}

	// 2. Читаем файл целиком
	rawBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	loadDotEnv()

	// 3. Подставляем переменные окружения (${VAR} или $VAR)
	contentWithEnv := os.ExpandEnv(string(rawBytes))

	// 4. Парсим YAML в структуру
	var cfg AppConfig
	if err := yaml.Unmarshal([]byte(contentWithEnv), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}

	cfg.ApplyDefaults()

	// 5. Валидируем критические настройки
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadOrEnv загружает config.yaml, а если файла нет - собирает конфигурацию из окружения.
func LoadOrEnv(path string) (*AppConfig, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv собирает конфигурацию из переменных окружения.
//
// Переменные: LLM_TYPE, LLM_MODEL_NAME, LLM_TEMPERATURE, LLM_MAX_RETRIES,
// OPENAI_API_KEY, AZURE_OPENAI_API_KEY, AZURE_OPENAI_ENDPOINT, GROQ_API_KEY,
// DEFAULT_WEATHER_UNITS, TELEGRAM_BOT_TOKEN, TELEGRAM_CHAT_ID.
func FromEnv() (*AppConfig, error) {
	loadDotEnv()

	provider := strings.ToLower(envOr("LLM_TYPE", ProviderOpenAI))
	switch provider {
	case ProviderAzureOpenAI, ProviderGroq:
	default:
		provider = ProviderOpenAI
	}

	temperature, err := strconv.ParseFloat(envOr("LLM_TEMPERATURE", "0.2"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid LLM_TEMPERATURE: %w", err)
	}
	maxRetries, err := strconv.Atoi(envOr("LLM_MAX_RETRIES", "2"))
	if err != nil {
		return nil, fmt.Errorf("invalid LLM_MAX_RETRIES: %w", err)
	}

	model := ModelDef{
		Provider:    provider,
		ModelName:   envOr("LLM_MODEL_NAME", "gpt-4o-mini"),
		Temperature: temperature,
		MaxRetries:  maxRetries,
	}
	switch provider {
	case ProviderAzureOpenAI:
		model.APIKey = os.Getenv("AZURE_OPENAI_API_KEY")
		model.BaseURL = os.Getenv("AZURE_OPENAI_ENDPOINT")
	case ProviderGroq:
		model.APIKey = os.Getenv("GROQ_API_KEY")
	default:
		model.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	cfg := &AppConfig{
		Models: ModelsConfig{
			DefaultChat: "default",
			Definitions: map[string]ModelDef{"default": model},
		},
		Weather: WeatherConfig{
			DefaultUnits: os.Getenv("DEFAULT_WEATHER_UNITS"),
		},
		Telegram: TelegramConfig{
			BotToken:      os.Getenv("TELEGRAM_BOT_TOKEN"),
			DefaultChatID: os.Getenv("TELEGRAM_CHAT_ID"),
		},
		App: AppSpecific{
			Debug: os.Getenv("AGENT_THINK_DEBUG") != "",
		},
	}
	cfg.ApplyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults заполняет незаданные поля всех секций.
func (c *AppConfig) ApplyDefaults() {
	c.Weather = c.Weather.GetDefaults()
	c.Telegram = c.Telegram.GetDefaults()

	for name, def := range c.Models.Definitions {
		if def.Provider == "" {
			def.Provider = ProviderOpenAI
		}
		if def.Seed == nil {
			seed := DefaultSeed
			def.Seed = &seed
		}
		c.Models.Definitions[name] = def
	}

	if len(c.MCPServers) == 0 {
		c.MCPServers = DefaultMCPServers()
	}

	if c.Poller.Timeout == 0 {
		c.Poller.Timeout = 20
	}
	if c.Poller.IdleSleep == 0 {
		c.Poller.IdleSleep = 1.0
	}
	if c.Agent.Timeout == "" {
		c.Agent.Timeout = "5m"
	}
	if c.Archive.Enabled && c.Archive.Dir == "" {
		c.Archive.Dir = "runs"
	}
}

// DefaultMCPServers - серверы инструментов из этого репозитория,
// запускаемые из PATH. Окружение наследуется от агента.
func DefaultMCPServers() map[string]MCPServerConfig {
	return map[string]MCPServerConfig{
		"weather":  {Command: "weather-server"},
		"telegram": {Command: "telegram-server"},
	}
}

// DefaultSeed - фиксированный seed для воспроизводимости ответов модели.
const DefaultSeed = 1234

// validate проверяет обязательные поля.
func (c *AppConfig) validate() error {
	var errs []error

	if c.Models.DefaultChat != "" {
		if _, ok := c.Models.Definitions[c.Models.DefaultChat]; !ok {
			errs = append(errs, fmt.Errorf("default_chat model '%s' is not defined in definitions", c.Models.DefaultChat))
		}
	}
	for name, def := range c.Models.Definitions {
		switch def.Provider {
		case ProviderOpenAI, ProviderAzureOpenAI, ProviderGroq:
		default:
			errs = append(errs, fmt.Errorf("model '%s': unknown provider '%s'", name, def.Provider))
		}
	}

	switch c.Weather.DefaultUnits {
	case UnitsMetric, UnitsImperial:
	default:
		errs = append(errs, fmt.Errorf("weather.default_units must be metric or imperial, got '%s'", c.Weather.DefaultUnits))
	}

	for _, d := range []struct{ name, value string }{
		{"weather.timeout", c.Weather.Timeout},
		{"telegram.timeout", c.Telegram.Timeout},
		{"agent.timeout", c.Agent.Timeout},
	} {
		if _, err := time.ParseDuration(d.value); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s format: %w", d.name, err))
		}
	}

	for name, srv := range c.MCPServers {
		if srv.Command == "" {
			errs = append(errs, fmt.Errorf("mcp_servers.%s.command is required", name))
		}
	}

	return errors.Join(errs...)
}

// GetChatModel возвращает конфигурацию модели по имени или модель по умолчанию.
func (c *AppConfig) GetChatModel(name string) (ModelDef, bool) {
	if name == "" {
		name = c.Models.DefaultChat
	}
	m, ok := c.Models.Definitions[name]
	return m, ok
}

// AgentTimeout возвращает таймаут одного запуска агента.
func (c *AppConfig) AgentTimeout() time.Duration {
	d, err := time.ParseDuration(c.Agent.Timeout)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

func loadDotEnv() {
	// .env опционален
	_ = godotenv.Load()
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
