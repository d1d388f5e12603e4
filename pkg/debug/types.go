// Package debug записывает трейсы обращений к LLM в JSON файлы.
//
// Каждый вызов Provider.Generate сохраняется отдельным файлом: запрос,
// сырой ответ модели, длительность и ошибка. Трейсы нужны для разбора
// ответов, которые не прошли разбор классификации.
package debug

import "time"

// Trace — один вызов LLM.
type Trace struct {
	// TraceID — уникальный идентификатор (используется в имени файла)
	TraceID string `json:"trace_id"`

	// Timestamp — время начала запроса
	Timestamp time.Time `json:"timestamp"`

	// Duration — длительность запроса в миллисекундах
	Duration int64 `json:"duration_ms"`

	Request  LLMRequest  `json:"llm_request"`
	Response LLMResponse `json:"llm_response"`

	// Error — текст ошибки транспорта, если запрос не удался
	Error string `json:"error,omitempty"`
}

// LLMRequest — параметры запроса.
type LLMRequest struct {
	Model       string    `json:"model"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Format      string    `json:"format,omitempty"`
	Messages    []Message `json:"messages"`
}

// Message — сообщение в трейсе.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`

	// Truncated — true, если Content обрезан по MaxContentSize
	Truncated bool `json:"truncated,omitempty"`
}

// LLMResponse — ответ модели как есть, до разбора.
type LLMResponse struct {
	Content   string `json:"content"`
	Truncated bool   `json:"truncated,omitempty"`
}
