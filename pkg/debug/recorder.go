package debug

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Recorder сохраняет трейсы в директорию.
//
// Потокобезопасен: каждый трейс пишется в собственный файл.
type Recorder struct {
	config RecorderConfig
}

// RecorderConfig конфигурация для создания Recorder.
type RecorderConfig struct {
	// LogsDir — директория для сохранения трейсов
	LogsDir string

	// MaxContentSize — максимальный размер содержимого сообщения в байтах
	// (превышение обрезается). 0 означает без ограничений
	MaxContentSize int
}

// NewRecorder создает новый Recorder с заданной конфигурацией.
//
// Если LogsDir не существует, пытается создать её.
func NewRecorder(cfg RecorderConfig) (*Recorder, error) {
	if cfg.LogsDir == "" {
		return nil, fmt.Errorf("debug logs directory is empty")
	}
	if err := os.MkdirAll(cfg.LogsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}
	return &Recorder{config: cfg}, nil
}

// Save дописывает TraceID (если пуст), применяет обрезку и сохраняет трейс.
//
// Возвращает путь к сохраненному файлу.
func (r *Recorder) Save(t Trace) (string, error) {
	if t.TraceID == "" {
		t.TraceID = uuid.NewString()
	}

	for i := range t.Request.Messages {
		m := &t.Request.Messages[i]
		m.Content, m.Truncated = truncateString(m.Content, r.config.MaxContentSize)
	}
	t.Response.Content, t.Response.Truncated = truncateString(t.Response.Content, r.config.MaxContentSize)

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal trace: %w", err)
	}

	path := r.filePath(t)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write trace: %w", err)
	}
	return path, nil
}

// filePath возвращает путь вида <dir>/llm_20060102_150405_<id>.json.
func (r *Recorder) filePath(t Trace) string {
	name := fmt.Sprintf("llm_%s_%s.json", t.Timestamp.UTC().Format("20060102_150405"), t.TraceID)
	return filepath.Join(r.config.LogsDir, name)
}

// truncateString обрезает строку по байтам с сохранением суффикса.
func truncateString(s string, maxSize int) (string, bool) {
	if maxSize <= 0 || len(s) <= maxSize {
		return s, false
	}
	return s[:maxSize] + "... (truncated)", true
}
