// Базовые типы - универсальный язык общения с моделями
package llm

// Role — роль автора сообщения.
type Role string

// Константы для удобства
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message — одно сообщение чата.
type Message struct {
	Role    Role
	Content string
}

// System создаёт системное сообщение.
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// User создаёт пользовательское сообщение.
func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}
