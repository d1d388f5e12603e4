package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// Виды транспортных ошибок. Используются с errors.Is().
var (
	ErrTransport      = errors.New("llm transport error")
	ErrAuthentication = errors.New("llm authentication failed")
	ErrRateLimit      = errors.New("llm rate limited")
)

// TransportError — сетевой сбой или не-2xx ответ endpoint.
//
// StatusCode равен 0, если ответа не было (timeout, connection refused).
type TransportError struct {
	StatusCode int
	Status     string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("llm transport error: status %d %s: %v", e.StatusCode, e.Status, e.Err)
	}
	return fmt.Sprintf("llm transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is реализует интерфейс для errors.Is().
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// AuthenticationError — ключ отклонён (401/403). Повтор бессмысленен.
type AuthenticationError struct {
	StatusCode int
	Message    string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("llm authentication failed: status %d: %s", e.StatusCode, e.Message)
}

// Is реализует интерфейс для errors.Is().
func (e *AuthenticationError) Is(target error) bool { return target == ErrAuthentication }

// RateLimitError — endpoint вернул 429.
type RateLimitError struct {
	Message string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("llm rate limited: %s", e.Message)
}

// Is реализует интерфейс для errors.Is().
func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimit }

// ClassifyStatus превращает HTTP статус ответа в типизированную ошибку.
//
//   - 401, 403 → *AuthenticationError
//   - 429      → *RateLimitError
//   - иначе    → *TransportError
func ClassifyStatus(statusCode int, message string, cause error) error {
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &AuthenticationError{StatusCode: statusCode, Message: message}
	case http.StatusTooManyRequests:
		return &RateLimitError{Message: message}
	default:
		if cause == nil {
			cause = errors.New(message)
		}
		return &TransportError{
			StatusCode: statusCode,
			Status:     http.StatusText(statusCode),
			Err:        cause,
		}
	}
}
