// Package watcher опрашивает входную директорию и раздаёт файлы процессору.
//
// Один тик: листинг директории → фильтры (расширение, размер, ledger,
// память о недекодируемых файлах) → обработка в порядке имён. Между тиками
// watcher спит polling_interval. Ошибки директории логируются и повторяются
// на следующем тике, цикл завершается только отменой контекста.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ilkoid/mastication/pkg/config"
	"github.com/ilkoid/mastication/pkg/ledger"
	"github.com/ilkoid/mastication/pkg/processor"
	"github.com/ilkoid/mastication/pkg/utils"
)

// FileProcessor — то, что watcher'у нужно от процессора.
type FileProcessor interface {
	Process(ctx context.Context, f processor.WatchedFile) processor.Report
}

// TickStats — сводка одного тика.
type TickStats struct {
	Eligible  int // Прошли фильтры
	Processed int
	Skipped   int // No-op, исчезнувшие, выросшие
	Failed    int // Включая недекодируемые
}

// fileSig — (size, mtime) файла. Меняется, когда файл переписан.
type fileSig struct {
	size    int64
	modTime time.Time
}

// Watcher — цикл опроса директории.
type Watcher struct {
	proc       FileProcessor
	ledger     ledger.Ledger
	monitoring config.MonitoringConfig
	processing config.ProcessingConfig

	mu        sync.Mutex
	inflight  map[string]struct{} // Абсолютные пути файлов в обработке
	rejected  map[string]fileSig  // Недекодируемые файлы: не повторяются, пока не изменятся
	oversized map[string]int64    // Последний залогированный размер
	dirMissed bool
}

// New создаёт watcher. l может быть nil: тогда дедупликации нет.
func New(proc FileProcessor, l ledger.Ledger, cfg *config.AppConfig) *Watcher {
	return &Watcher{
		proc:       proc,
		ledger:     l,
		monitoring: cfg.Monitoring,
		processing: cfg.Processing,
		inflight:   make(map[string]struct{}),
		rejected:   make(map[string]fileSig),
		oversized:  make(map[string]int64),
	}
}

// Run выполняет тики до отмены ctx.
//
// Интервал — нижняя граница: отсчёт начинается после завершения тика.
func (w *Watcher) Run(ctx context.Context) error {
	utils.Info("Watcher started",
		"input_dir", w.monitoring.InputDir,
		"output_dir", w.monitoring.OutputDir,
		"interval", w.monitoring.PollingInterval.String(),
		"workers", w.workers())

	if w.processing.OverwriteExisting && !w.processing.DeleteAfterProcessing {
		utils.Warn("overwrite_existing without delete_after_processing re-classifies every file on every tick")
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			utils.Info("Watcher stopped")
			return nil
		case <-timer.C:
		}

		w.Tick(ctx)
		timer.Reset(w.monitoring.PollingInterval)
	}
}

// Tick выполняет один проход по директории.
//
// Файл, уже отправленный в обработку, доводится до конца даже при отмене
// ctx; новые файлы после отмены не берутся.
func (w *Watcher) Tick(ctx context.Context) TickStats {
	var stats TickStats

	files, err := w.Scan(ctx)
	if err != nil {
		return stats
	}
	stats.Eligible = len(files)
	if len(files) == 0 {
		return stats
	}

	utils.Debug("Tick found eligible files", "count", len(files))

	var (
		statsMu sync.Mutex
		g       errgroup.Group
	)
	g.SetLimit(w.workers())

	for _, f := range files {
		if ctx.Err() != nil {
			break
		}
		if !w.acquire(f.Path) {
			continue
		}

		g.Go(func() error {
			defer w.release(f.Path)

			rep := w.proc.Process(context.WithoutCancel(ctx), f)
			w.remember(f, rep)

			statsMu.Lock()
			defer statsMu.Unlock()
			switch rep.Outcome {
			case processor.OutcomeProcessed:
				stats.Processed++
			case processor.OutcomeRejected, processor.OutcomeFailed:
				stats.Failed++
			default:
				stats.Skipped++
			}
			return nil
		})
	}
	_ = g.Wait()

	if stats.Processed+stats.Failed > 0 {
		utils.Info("Tick finished",
			"processed", stats.Processed,
			"failed", stats.Failed,
			"skipped", stats.Skipped)
	}
	return stats
}

// Scan возвращает файлы, подлежащие обработке, в порядке имён.
func (w *Watcher) Scan(ctx context.Context) ([]processor.WatchedFile, error) {
	entries, err := os.ReadDir(w.monitoring.InputDir)
	if err != nil {
		w.logDirError(err)
		return nil, err
	}
	w.markDirFound()

	seen := make(map[string]struct{}, len(entries))
	var files []processor.WatchedFile

	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || !w.monitoring.AllowsFile(name) {
			continue
		}
		seen[name] = struct{}{}

		info, err := entry.Info()
		if err != nil {
			// Файл исчез после листинга
			continue
		}
		f := processor.NewWatchedFile(filepath.Join(w.monitoring.InputDir, name), info)

		if f.Size > w.processing.MaxFileSize {
			w.logOversized(f)
			continue
		}
		w.clearOversized(name)
		if w.isRejected(f) {
			continue
		}
		if !w.processing.OverwriteExisting && w.ledger != nil {
			has, err := w.ledger.Has(ctx, name)
			if err != nil {
				utils.Warn("Ledger lookup failed, skipping file this tick", "file", name, "error", err)
				continue
			}
			if has {
				continue
			}
		}

		files = append(files, f)
	}

	w.forget(seen)
	return files, nil
}

func (w *Watcher) workers() int {
	if w.processing.Workers < 1 {
		return 1
	}
	return w.processing.Workers
}

func (w *Watcher) acquire(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, busy := w.inflight[path]; busy {
		return false
	}
	w.inflight[path] = struct{}{}
	return true
}

func (w *Watcher) release(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.inflight, path)
}

// remember обновляет память о недекодируемых файлах по итогу обработки.
func (w *Watcher) remember(f processor.WatchedFile, rep processor.Report) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if rep.Outcome == processor.OutcomeRejected {
		w.rejected[f.Name] = fileSig{size: f.Size, modTime: f.ModTime}
		return
	}
	delete(w.rejected, f.Name)
}

func (w *Watcher) isRejected(f processor.WatchedFile) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	sig, ok := w.rejected[f.Name]
	if !ok {
		return false
	}
	if sig.size == f.Size && sig.modTime.Equal(f.ModTime) {
		return true
	}
	delete(w.rejected, f.Name)
	return false
}

// logOversized пишет предупреждение один раз для каждого наблюдённого размера.
func (w *Watcher) logOversized(f processor.WatchedFile) {
	w.mu.Lock()
	last, logged := w.oversized[f.Name]
	w.oversized[f.Name] = f.Size
	w.mu.Unlock()

	if logged && last == f.Size {
		return
	}
	utils.Warn("File exceeds maximum size, skipping",
		"file", f.Name,
		"size", f.Size,
		"max_file_size", w.processing.MaxFileSize)
}

// forget удаляет память о файлах, которых больше нет в директории.
func (w *Watcher) forget(seen map[string]struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for name := range w.rejected {
		if _, ok := seen[name]; !ok {
			delete(w.rejected, name)
		}
	}
	for name := range w.oversized {
		if _, ok := seen[name]; !ok {
			delete(w.oversized, name)
		}
	}
}

func (w *Watcher) clearOversized(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.oversized, name)
}

func (w *Watcher) logDirError(err error) {
	if !errors.Is(err, os.ErrNotExist) {
		utils.Error("Failed to list input directory", "dir", w.monitoring.InputDir, "error", err)
		return
	}

	w.mu.Lock()
	first := !w.dirMissed
	w.dirMissed = true
	w.mu.Unlock()

	if first {
		utils.Warn("Input directory does not exist, waiting", "dir", w.monitoring.InputDir)
	}
}

func (w *Watcher) markDirFound() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dirMissed {
		utils.Info("Input directory appeared", "dir", w.monitoring.InputDir)
	}
	w.dirMissed = false
}
