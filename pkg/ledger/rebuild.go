package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ilkoid/mastication/pkg/utils"
)

// artifactHeader — часть артефакта, нужная для восстановления индекса.
type artifactHeader struct {
	InputFilename string `json:"input_filename"`
	Category      string `json:"category"`
}

// Rebuild обходит дерево outputDir и записывает в ledger каждый артефакт.
//
// Пропускаются:
//   - скрытые файлы и директории (в том числе временные .*.tmp);
//   - файлы не .json;
//   - JSON без input_filename (чужие или битые файлы).
//
// Отсутствующий outputDir не ошибка: индекс просто остаётся пустым.
// Возвращает количество восстановленных записей.
func Rebuild(ctx context.Context, l Ledger, outputDir string) (int, error) {
	if _, err := os.Stat(outputDir); errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}

	count := 0
	err := filepath.WalkDir(outputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		name := d.Name()
		if path != outputDir && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() || filepath.Ext(name) != ".json" {
			return nil
		}

		header, ok := readHeader(path)
		if !ok {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		if err := l.Record(ctx, Entry{
			InputName:   header.InputFilename,
			OutputPath:  path,
			Category:    header.Category,
			ProcessedAt: info.ModTime(),
		}); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return count, err
	}

	utils.Info("Ledger rebuilt", "output_dir", outputDir, "entries", count)
	return count, nil
}

func readHeader(path string) (artifactHeader, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		utils.Debug("Skipping unreadable artifact", "path", path, "error", err)
		return artifactHeader{}, false
	}

	var h artifactHeader
	if err := json.Unmarshal(data, &h); err != nil || h.InputFilename == "" {
		utils.Debug("Skipping foreign JSON file", "path", path)
		return artifactHeader{}, false
	}
	return h, true
}
