package ledger

import (
	"context"
	"sync"

	"github.com/ilkoid/mastication/pkg/utils"
)

// Memory — in-memory реализация Ledger.
//
// Используется, когда ledger.path не задан: индекс живёт только в процессе
// и каждый запуск восстанавливается через Rebuild.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

var _ Ledger = (*Memory)(nil)

// NewMemory создаёт пустой in-memory ledger.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]Entry)}
}

// Has реализует Ledger.
func (m *Memory) Has(_ context.Context, inputName string) (bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[inputName]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}

	exists, err := artifactExists(entry.OutputPath)
	if err != nil {
		return false, err
	}
	if exists {
		return true, nil
	}

	utils.Debug("Ledger entry is stale, artifact missing",
		"input", inputName,
		"output", entry.OutputPath)

	m.mu.Lock()
	// Запись могла быть заменена, пока проверяли диск
	if cur, ok := m.entries[inputName]; ok && cur.OutputPath == entry.OutputPath {
		delete(m.entries, inputName)
	}
	m.mu.Unlock()
	return false, nil
}

// Record реализует Ledger.
func (m *Memory) Record(_ context.Context, entry Entry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.InputName] = entry
	return nil
}

// Len возвращает количество записей.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close реализует Ledger.
func (m *Memory) Close() error { return nil }
