package processor

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// WatchedFile — дескриптор файла, найденного на тике watcher'а.
type WatchedFile struct {
	Path    string // Абсолютный путь
	Name    string // Базовое имя, ключ идентичности
	Size    int64
	Ext     string
	ModTime time.Time
}

// NewWatchedFile строит дескриптор из результата os.Stat / DirEntry.Info.
func NewWatchedFile(path string, info fs.FileInfo) WatchedFile {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return WatchedFile{
		Path:    path,
		Name:    info.Name(),
		Size:    info.Size(),
		Ext:     filepath.Ext(info.Name()),
		ModTime: info.ModTime(),
	}
}

// Stem возвращает имя без последнего расширения.
func (f WatchedFile) Stem() string {
	return f.Name[:len(f.Name)-len(filepath.Ext(f.Name))]
}

// errOversized — файл вырос больше лимита между stat и чтением.
var errOversized = errors.New("file exceeds max_file_size")

// ReadText читает не больше maxSize байт и декодирует их как текст.
//
// Порядок декодирования: UTF-8, затем (если включено) Latin-1.
// Latin-1 декодирует любую последовательность байт, поэтому с fallback
// ошибка декодирования невозможна.
func ReadText(path string, maxSize int64, latin1 bool) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxSize+1))
	if err != nil {
		return "", &FileReadError{Path: path, Err: err}
	}
	if int64(len(data)) > maxSize {
		return "", errOversized
	}

	if utf8.Valid(data) {
		return string(data), nil
	}

	if latin1 {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return "", &FileReadError{Path: path, Decode: true, Err: err}
		}
		return string(decoded), nil
	}

	return "", &FileReadError{
		Path:   path,
		Decode: true,
		Err:    fmt.Errorf("invalid UTF-8"),
	}
}
