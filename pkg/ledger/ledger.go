// Package ledger хранит идентичности уже обработанных входных файлов.
//
// Ledger — только индекс: источником истины остаются артефакты на диске.
// Has возвращает true лишь если записанный артефакт всё ещё существует,
// устаревшая запись удаляется. При старте индекс восстанавливается из
// дерева output через Rebuild.
package ledger

import (
	"context"
	"errors"
	"os"
	"time"
)

// Entry — запись об обработанном файле.
type Entry struct {
	InputName   string // Базовое имя входного файла (ключ идентичности)
	OutputPath  string // Путь к записанному артефакту
	Category    string
	ProcessedAt time.Time
}

// Ledger — индекс обработанных файлов.
//
// Все реализации thread-safe.
type Ledger interface {
	// Has сообщает, есть ли для файла действующий артефакт.
	Has(ctx context.Context, inputName string) (bool, error)

	// Record запоминает (или заменяет) запись для файла.
	Record(ctx context.Context, entry Entry) error

	// Close освобождает ресурсы.
	Close() error
}

// ErrInvalidEntry возвращается Record для записи без имени или пути.
var ErrInvalidEntry = errors.New("ledger entry requires input name and output path")

func validateEntry(e Entry) error {
	if e.InputName == "" || e.OutputPath == "" {
		return ErrInvalidEntry
	}
	return nil
}

// artifactExists проверяет наличие артефакта. Ошибки кроме "не найден"
// возвращаются как есть: лучше пропустить тик, чем обработать файл дважды.
func artifactExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}
