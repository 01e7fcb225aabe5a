package llm

// GenerateOptions - параметры генерации, общие для всех провайдеров.
// Задаются из конфигурации модели при создании клиента.
type GenerateOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Seed        *int
	MaxRetries  int
}

// GenerateOption - функциональная опция для GenerateOptions.
type GenerateOption func(*GenerateOptions)

// WithTemperature задаёт температуру.
func WithTemperature(temp float64) GenerateOption {
	return func(o *GenerateOptions) {
		o.Temperature = temp
	}
}

// WithMaxTokens ограничивает длину ответа.
func WithMaxTokens(tokens int) GenerateOption {
	return func(o *GenerateOptions) {
		o.MaxTokens = tokens
	}
}

// WithSeed фиксирует seed для воспроизводимых ответов.
func WithSeed(seed int) GenerateOption {
	return func(o *GenerateOptions) {
		o.Seed = &seed
	}
}

// WithMaxRetries задаёт число повторов при временных ошибках API.
func WithMaxRetries(n int) GenerateOption {
	return func(o *GenerateOptions) {
		o.MaxRetries = n
	}
}

// Apply применяет опции поверх текущих значений.
func (o GenerateOptions) Apply(opts ...GenerateOption) GenerateOptions {
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
