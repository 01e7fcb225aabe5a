// Интерфейс Провайдера через который работает всё приложение.

package llm

import "context"

// Provider - абстракция над LLM API.
type Provider interface {
	// Generate принимает контекст и историю сообщений.
	// Возвращает ответ модели в унифицированном формате Message.
	// tools - опциональный список определений функций (если провайдер поддерживает Function Calling).
	Generate(ctx context.Context, messages []Message, tools ...any) (Message, error)
}

// ProviderFunc позволяет использовать обычную функцию как Provider.
type ProviderFunc func(ctx context.Context, messages []Message, tools ...any) (Message, error)

// Generate вызывает f.
func (f ProviderFunc) Generate(ctx context.Context, messages []Message, tools ...any) (Message, error) {
	return f(ctx, messages, tools...)
}
