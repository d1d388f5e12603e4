package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_KeyValueFormat(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	Info("File processed", "file", "note.txt", "category", "ideas")

	out := buf.String()
	assert.Contains(t, out, "INFO: File processed")
	assert.Contains(t, out, "file=note.txt")
	assert.Contains(t, out, "category=ideas")
}

func TestLogger_DebugFiltered(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	SetDebug(false)
	Debug("hidden")
	assert.Empty(t, buf.String())

	SetDebug(true)
	defer SetDebug(false)
	Debug("shown")
	assert.Contains(t, buf.String(), "DEBUG: shown")
}

func TestLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mastication.log")

	require.NoError(t, InitLogger(path, false))
	Warn("Input directory missing", "dir", "/tmp/in")
	Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "WARN: Input directory missing dir=/tmp/in")
}
