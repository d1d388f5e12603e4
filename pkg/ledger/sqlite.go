package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ilkoid/mastication/pkg/utils"
)

const schema = `
create table if not exists processed (
	input_name   text primary key,
	output_path  text not null,
	category     text not null,
	processed_at integer not null
)`

// SQLite — реализация Ledger поверх файла SQLite.
type SQLite struct {
	db *sql.DB
}

var _ Ledger = (*SQLite)(nil)

// OpenSQLite открывает (или создаёт) базу по пути path и применяет схему.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	// SQLite не любит конкурентных писателей
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply ledger schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Has реализует Ledger.
func (s *SQLite) Has(ctx context.Context, inputName string) (bool, error) {
	const q = `select output_path from processed where input_name = ?`

	var outputPath string
	err := s.db.QueryRowContext(ctx, q, inputName).Scan(&outputPath)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ledger lookup %s: %w", inputName, err)
	}

	exists, err := artifactExists(outputPath)
	if err != nil {
		return false, err
	}
	if exists {
		return true, nil
	}

	utils.Debug("Ledger entry is stale, artifact missing",
		"input", inputName,
		"output", outputPath)

	const del = `delete from processed where input_name = ? and output_path = ?`
	if _, err := s.db.ExecContext(ctx, del, inputName, outputPath); err != nil {
		return false, fmt.Errorf("ledger remove stale %s: %w", inputName, err)
	}
	return false, nil
}

// Record реализует Ledger (upsert по input_name).
func (s *SQLite) Record(ctx context.Context, entry Entry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}

	const q = `
insert into processed(input_name, output_path, category, processed_at)
values (?, ?, ?, ?)
on conflict (input_name)
do update set output_path=excluded.output_path,
              category=excluded.category,
              processed_at=excluded.processed_at`

	_, err := s.db.ExecContext(ctx, q, entry.InputName, entry.OutputPath, entry.Category, entry.ProcessedAt.Unix())
	if err != nil {
		return fmt.Errorf("ledger record %s: %w", entry.InputName, err)
	}
	return nil
}

// Get возвращает запись по имени без проверки артефакта.
func (s *SQLite) Get(ctx context.Context, inputName string) (Entry, bool, error) {
	const q = `select output_path, category, processed_at from processed where input_name = ?`

	entry := Entry{InputName: inputName}
	var ts int64
	err := s.db.QueryRowContext(ctx, q, inputName).Scan(&entry.OutputPath, &entry.Category, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("ledger get %s: %w", inputName, err)
	}
	entry.ProcessedAt = time.Unix(ts, 0)
	return entry, true, nil
}

// Close реализует Ledger.
func (s *SQLite) Close() error {
	return s.db.Close()
}
