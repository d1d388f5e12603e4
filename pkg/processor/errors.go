package processor

import (
	"errors"
	"fmt"

	"github.com/ilkoid/mastication/pkg/classifier"
	"github.com/ilkoid/mastication/pkg/llm"
)

// Виды локальных ошибок. Используются с errors.Is().
var (
	ErrFileRead    = errors.New("file read error")
	ErrOutputWrite = errors.New("output write error")
)

// FileReadError — не удалось прочитать или декодировать входной файл.
type FileReadError struct {
	Path   string
	Decode bool // true — файл прочитан, но не декодируется как текст
	Err    error
}

func (e *FileReadError) Error() string {
	if e.Decode {
		return fmt.Sprintf("file read error: %s: not valid text: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("file read error: %s: %v", e.Path, e.Err)
}

func (e *FileReadError) Unwrap() error { return e.Err }

// Is реализует интерфейс для errors.Is().
func (e *FileReadError) Is(target error) bool { return target == ErrFileRead }

// OutputWriteError — не удалось записать артефакт (включая rename).
type OutputWriteError struct {
	Path string
	Err  error
}

func (e *OutputWriteError) Error() string {
	return fmt.Sprintf("output write error: %s: %v", e.Path, e.Err)
}

func (e *OutputWriteError) Unwrap() error { return e.Err }

// Is реализует интерфейс для errors.Is().
func (e *OutputWriteError) Is(target error) bool { return target == ErrOutputWrite }

// Стабильные имена видов ошибок для логов и уведомлений.
const (
	KindTransport       = "transport"
	KindAuthentication  = "authentication"
	KindRateLimit       = "rate_limit"
	KindResponseFormat  = "response_format"
	KindInvalidCategory = "invalid_category"
	KindFileRead        = "file_read"
	KindOutputWrite     = "output_write"
	KindUnknown         = "unknown"
)

// ErrorKind возвращает вид ошибки из таксономии.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, llm.ErrAuthentication):
		return KindAuthentication
	case errors.Is(err, llm.ErrRateLimit):
		return KindRateLimit
	case errors.Is(err, llm.ErrTransport):
		return KindTransport
	case errors.Is(err, classifier.ErrResponseFormat):
		return KindResponseFormat
	case errors.Is(err, classifier.ErrInvalidCategory):
		return KindInvalidCategory
	case errors.Is(err, ErrFileRead):
		return KindFileRead
	case errors.Is(err, ErrOutputWrite):
		return KindOutputWrite
	default:
		return KindUnknown
	}
}
