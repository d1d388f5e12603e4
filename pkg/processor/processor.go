// Package processor превращает один найденный файл в ноль или один артефакт.
//
// Processor читает файл, вызывает классификатор, атомарно пишет JSON
// артефакт и решает судьбу входного файла. Любая ошибка ловится здесь и
// превращается в залогированный Outcome: цикл watcher'а она не прерывает.
package processor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ilkoid/mastication/pkg/classifier"
	"github.com/ilkoid/mastication/pkg/config"
	"github.com/ilkoid/mastication/pkg/events"
	"github.com/ilkoid/mastication/pkg/ledger"
	"github.com/ilkoid/mastication/pkg/utils"
)

// Outcome — итог одной попытки обработки.
type Outcome int

const (
	// OutcomeProcessed — артефакт записан.
	OutcomeProcessed Outcome = iota
	// OutcomeSkippedExisting — артефакт по вычисленному пути уже есть (no-op).
	OutcomeSkippedExisting
	// OutcomeVanished — файл исчез между обнаружением и чтением.
	OutcomeVanished
	// OutcomeOversized — файл вырос больше max_file_size.
	OutcomeOversized
	// OutcomeRejected — файл не декодируется как текст. Без изменений не повторяется.
	OutcomeRejected
	// OutcomeFailed — ошибка классификации или записи. Файл повторится на следующем тике.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeProcessed:
		return "processed"
	case OutcomeSkippedExisting:
		return "skipped_existing"
	case OutcomeVanished:
		return "vanished"
	case OutcomeOversized:
		return "oversized"
	case OutcomeRejected:
		return "rejected"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Report — результат Process.
type Report struct {
	AttemptID  string
	Outcome    Outcome
	OutputPath string // Заполнен для Processed и SkippedExisting
	Result     *classifier.Result
	Err        error // Заполнен для Rejected и Failed
}

// Archiver зеркалирует записанные артефакты во внешнее хранилище.
type Archiver interface {
	Archive(ctx context.Context, relPath string, data []byte) error
}

// Processor обрабатывает файлы по одному. Thread-safe: один экземпляр
// можно вызывать из нескольких воркеров для разных файлов.
type Processor struct {
	classifier classifier.Classifier
	monitoring config.MonitoringConfig
	processing config.ProcessingConfig

	ledger   ledger.Ledger
	archiver Archiver
	emitter  events.Emitter
	now      func() time.Time
}

// Option настраивает Processor.
type Option func(*Processor)

// WithLedger задаёт индекс обработанных файлов.
func WithLedger(l ledger.Ledger) Option {
	return func(p *Processor) { p.ledger = l }
}

// WithArchiver включает зеркалирование артефактов.
func WithArchiver(a Archiver) Option {
	return func(p *Processor) { p.archiver = a }
}

// WithEmitter задаёт получателя событий конвейера.
func WithEmitter(e events.Emitter) Option {
	return func(p *Processor) { p.emitter = e }
}

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// New создаёт Processor.
func New(c classifier.Classifier, cfg *config.AppConfig, opts ...Option) *Processor {
	p := &Processor{
		classifier: c,
		monitoring: cfg.Monitoring,
		processing: cfg.Processing,
		emitter:    events.NopEmitter{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process обрабатывает один файл.
//
// Алгоритм:
//  1. Читает и декодирует файл (с лимитом max_file_size)
//  2. Вызывает классификатор
//  3. Атомарно пишет артефакт (no-op, если путь занят и перезапись выключена)
//  4. Записывает файл в ledger и зеркалирует артефакт (best effort)
//  5. Удаляет входной файл, если включено delete_after_processing
func (p *Processor) Process(ctx context.Context, f WatchedFile) Report {
	rep := Report{AttemptID: uuid.NewString()}
	ref := events.FileRef{AttemptID: rep.AttemptID, Name: f.Name, Path: f.Path}
	startTime := time.Now()

	content, err := ReadText(f.Path, p.processing.MaxFileSize, p.processing.Latin1Fallback)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		utils.Info("File vanished before read, skipping", "file", f.Name)
		rep.Outcome = OutcomeVanished
		return rep
	case errors.Is(err, errOversized):
		utils.Warn("File grew past max_file_size, skipping",
			"file", f.Name,
			"max_file_size", p.processing.MaxFileSize)
		rep.Outcome = OutcomeOversized
		return rep
	default:
		var fre *FileReadError
		if !errors.As(err, &fre) {
			err = &FileReadError{Path: f.Path, Err: err}
		}
		rep.Err = err
		if fre != nil && fre.Decode {
			rep.Outcome = OutcomeRejected
		} else {
			rep.Outcome = OutcomeFailed
		}
		p.fail(ctx, ref, err)
		return rep
	}

	p.emit(ctx, events.EventStarted, events.StartedData{FileRef: ref, Content: content})
	utils.Debug("Classifying file", "file", f.Name, "attempt", rep.AttemptID, "size", f.Size)

	res, err := p.classifier.Classify(ctx, classifier.Request{FileName: f.Name, Content: content})
	if err != nil {
		rep.Outcome = OutcomeFailed
		rep.Err = err
		p.fail(ctx, ref, err)
		return rep
	}
	rep.Result = &res

	now := p.now()
	outPath := OutputPath(p.monitoring.OutputDir, p.monitoring.Layout, f, res.Category, now)
	rep.OutputPath = outPath

	data, err := NewArtifact(res, f.Name).Marshal()
	if err == nil {
		err = writeAtomic(outPath, data, p.processing.OverwriteExisting)
	}
	if errors.Is(err, errExists) {
		utils.Info("Output file already exists, skipping",
			"file", f.Name,
			"output", outPath)
		rep.Outcome = OutcomeSkippedExisting
		p.emit(ctx, events.EventSkipped, events.SkippedData{FileRef: ref, Reason: "output exists: " + outPath})
		return rep
	}
	if err != nil {
		err = &OutputWriteError{Path: outPath, Err: err}
		rep.Outcome = OutcomeFailed
		rep.Err = err
		p.fail(ctx, ref, err)
		return rep
	}

	if p.ledger != nil {
		if err := p.ledger.Record(ctx, ledger.Entry{
			InputName:   f.Name,
			OutputPath:  outPath,
			Category:    res.Category,
			ProcessedAt: now,
		}); err != nil {
			utils.Warn("Ledger record failed", "file", f.Name, "error", err)
		}
	}

	p.archive(ctx, outPath, data)

	if p.processing.DeleteAfterProcessing {
		if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			utils.Warn("Failed to delete input file", "file", f.Name, "error", err)
		} else {
			utils.Debug("Input file deleted", "file", f.Name)
		}
	}

	utils.Info("File processed",
		"file", f.Name,
		"category", res.Category,
		"confidence", res.Confidence,
		"output", outPath,
		"duration_ms", time.Since(startTime).Milliseconds())

	p.emit(ctx, events.EventClassified, events.ClassifiedData{
		FileRef:     ref,
		Category:    res.Category,
		Confidence:  res.Confidence,
		Subcategory: res.Subcategory,
		Summary:     res.Summary,
		Tags:        res.Tags,
		OutputPath:  outPath,
	})

	rep.Outcome = OutcomeProcessed
	return rep
}

func (p *Processor) archive(ctx context.Context, outPath string, data []byte) {
	if p.archiver == nil {
		return
	}
	rel, err := filepath.Rel(p.monitoring.OutputDir, outPath)
	if err != nil {
		rel = filepath.Base(outPath)
	}
	if err := p.archiver.Archive(ctx, filepath.ToSlash(rel), data); err != nil {
		utils.Warn("Archive upload failed", "output", outPath, "error", err)
	}
}

func (p *Processor) fail(ctx context.Context, ref events.FileRef, err error) {
	kind := ErrorKind(err)
	utils.Error("File processing failed",
		"file", ref.Name,
		"kind", kind,
		"attempt", ref.AttemptID,
		"error", err)
	p.emit(ctx, events.EventFailed, events.FailedData{FileRef: ref, Kind: kind, Err: err})
}

func (p *Processor) emit(ctx context.Context, t events.EventType, data events.EventData) {
	p.emitter.Emit(ctx, events.Event{Type: t, Data: data, Timestamp: p.now()})
}
