package classifier

import (
	"errors"
	"fmt"
	"strings"
)

// Виды ошибок валидации ответа. Используются с errors.Is().
var (
	ErrResponseFormat  = errors.New("response format error")
	ErrInvalidCategory = errors.New("invalid category")
)

// ResponseFormatError — ответ не JSON, не объект или не соответствует схеме
// (нет обязательного поля, поле не того типа).
type ResponseFormatError struct {
	Reason string
	Raw    string // Исходный текст ответа модели
	Err    error
}

func (e *ResponseFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("response format error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("response format error: %s", e.Reason)
}

func (e *ResponseFormatError) Unwrap() error { return e.Err }

// Is реализует интерфейс для errors.Is().
func (e *ResponseFormatError) Is(target error) bool { return target == ErrResponseFormat }

// InvalidCategoryError — модель вернула категорию вне сконфигурированного набора.
type InvalidCategoryError struct {
	Category string
	Allowed  []string
}

func (e *InvalidCategoryError) Error() string {
	return fmt.Sprintf("invalid category %q (allowed: %s)", e.Category, strings.Join(e.Allowed, ", "))
}

// Is реализует интерфейс для errors.Is().
func (e *InvalidCategoryError) Is(target error) bool { return target == ErrInvalidCategory }
