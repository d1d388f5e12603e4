// Интерфейс Провайдера через который работает всё приложение.

package llm

import "context"

// Provider — контракт для любого OpenAI-совместимого сервиса.
type Provider interface {
	// Generate отправляет историю сообщений и возвращает ответ ассистента.
	//
	// Ошибки транспорта возвращаются как *TransportError,
	// *AuthenticationError или *RateLimitError.
	Generate(ctx context.Context, messages []Message, opts ...GenerateOption) (Message, error)
}
