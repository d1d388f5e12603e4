package processor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ilkoid/mastication/pkg/classifier"
	"github.com/ilkoid/mastication/pkg/config"
)

// Artifact — JSON документ, сохраняемый на диск.
//
// Поля результата классификации плюс input_filename. subcategory всегда
// присутствует (null, если модель её не вернула).
type Artifact struct {
	Category      string   `json:"category"`
	Confidence    float64  `json:"confidence"`
	Subcategory   *string  `json:"subcategory"`
	Summary       string   `json:"summary"`
	Tags          []string `json:"tags"`
	InputFilename string   `json:"input_filename"`
}

// NewArtifact собирает артефакт из результата классификации.
func NewArtifact(res classifier.Result, inputName string) Artifact {
	tags := res.Tags
	if tags == nil {
		tags = []string{}
	}
	return Artifact{
		Category:      res.Category,
		Confidence:    res.Confidence,
		Subcategory:   res.Subcategory,
		Summary:       res.Summary,
		Tags:          tags,
		InputFilename: inputName,
	}
}

// Marshal сериализует артефакт с отступом в 2 пробела, без HTML-экранирования.
func (a Artifact) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// OutputPath вычисляет путь артефакта.
//
//   - flat:        {output_dir}/{stem}_processed_{unix}.json
//   - categorized: {output_dir}/{category}/{YYYY}/{MM}/{DD}/{unix}.json
//
// Дата — время обработки, а не mtime входного файла.
func OutputPath(outputDir, layout string, f WatchedFile, category string, now time.Time) string {
	ts := strconv.FormatInt(now.Unix(), 10)

	if layout == config.LayoutFlat {
		return filepath.Join(outputDir, f.Stem()+"_processed_"+ts+".json")
	}

	return filepath.Join(outputDir,
		category,
		now.Format("2006"),
		now.Format("01"),
		now.Format("02"),
		ts+".json")
}

// errExists — целевой путь уже занят и перезапись выключена.
var errExists = errors.New("output already exists")

// writeAtomic пишет data в path через временный файл в той же директории.
//
// Временный файл называется .{base}.*.tmp, после fsync он публикуется под
// именем path: hard link при overwrite=false, rename при overwrite=true.
// Читатель никогда не видит частично записанный артефакт.
// При overwrite=false и существующем path возвращает errExists, в том числе
// если path занят конкурентной записью между проверкой и публикацией.
func writeAtomic(path string, data []byte, overwrite bool) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	if !overwrite {
		if _, err := os.Lstat(path); err == nil {
			return errExists
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	cleanup := func(cause error) error {
		tmp.Close()
		os.Remove(tmpName)
		return cause
	}

	if _, err := tmp.Write(data); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Chmod(0644); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	if overwrite {
		if err := os.Rename(tmpName, path); err != nil {
			os.Remove(tmpName)
			return fmt.Errorf("rename %s: %w", filepath.Base(tmpName), err)
		}
		return nil
	}

	// Link не заменяет существующий path: из двух одновременных записей
	// в один путь побеждает ровно одна.
	defer os.Remove(tmpName)
	if err := os.Link(tmpName, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return errExists
		}
		return fmt.Errorf("link %s: %w", filepath.Base(tmpName), err)
	}
	return nil
}
