package debug

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ilkoid/mastication/pkg/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	content string
	err     error
}

func (s *stubProvider) Generate(_ context.Context, _ []llm.Message, _ ...llm.GenerateOption) (llm.Message, error) {
	if s.err != nil {
		return llm.Message{}, s.err
	}
	return llm.Message{Role: llm.RoleAssistant, Content: s.content}, nil
}

func readTraces(t *testing.T, dir string) []Trace {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "llm_*.json"))
	require.NoError(t, err)

	var out []Trace
	for _, m := range matches {
		raw, err := os.ReadFile(m)
		require.NoError(t, err)
		var tr Trace
		require.NoError(t, json.Unmarshal(raw, &tr))
		out = append(out, tr)
	}
	return out
}

func TestNewRecorder_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "traces", "llm")
	_, err := NewRecorder(RecorderConfig{LogsDir: dir})
	require.NoError(t, err)
	assert.DirExists(t, dir)

	_, err = NewRecorder(RecorderConfig{})
	assert.Error(t, err)
}

func TestRecorder_SaveTruncates(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewRecorder(RecorderConfig{LogsDir: dir, MaxContentSize: 4})
	require.NoError(t, err)

	path, err := rec.Save(Trace{
		Timestamp: time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC),
		Request:   LLMRequest{Messages: []Message{{Role: "user", Content: "abcdefgh"}}},
		Response:  LLMResponse{Content: "xy"},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "llm_20240102_100000_"))

	traces := readTraces(t, dir)
	require.Len(t, traces, 1)
	assert.NotEmpty(t, traces[0].TraceID)
	assert.Equal(t, "abcd... (truncated)", traces[0].Request.Messages[0].Content)
	assert.True(t, traces[0].Request.Messages[0].Truncated)
	assert.Equal(t, "xy", traces[0].Response.Content)
	assert.False(t, traces[0].Response.Truncated)
}

func TestRecordingProvider_Success(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewRecorder(RecorderConfig{LogsDir: dir})
	require.NoError(t, err)

	p := WrapProvider(&stubProvider{content: `{"category":"ideas"}`}, rec)
	msg, err := p.Generate(context.Background(),
		[]llm.Message{llm.System("sys"), llm.User("note")},
		llm.WithModel("test-model"), llm.WithTemperature(0.2))
	require.NoError(t, err)
	assert.Equal(t, `{"category":"ideas"}`, msg.Content)

	traces := readTraces(t, dir)
	require.Len(t, traces, 1)
	tr := traces[0]
	assert.Equal(t, "test-model", tr.Request.Model)
	assert.Equal(t, 0.2, tr.Request.Temperature)
	require.Len(t, tr.Request.Messages, 2)
	assert.Equal(t, "system", tr.Request.Messages[0].Role)
	assert.Equal(t, `{"category":"ideas"}`, tr.Response.Content)
	assert.Empty(t, tr.Error)
}

func TestRecordingProvider_ErrorPassesThrough(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewRecorder(RecorderConfig{LogsDir: dir})
	require.NoError(t, err)

	p := WrapProvider(&stubProvider{err: &llm.RateLimitError{Message: "slow down"}}, rec)
	_, err = p.Generate(context.Background(), []llm.Message{llm.User("note")})
	assert.True(t, errors.Is(err, llm.ErrRateLimit))

	traces := readTraces(t, dir)
	require.Len(t, traces, 1)
	assert.Contains(t, traces[0].Error, "slow down")
}

func TestRecordingProvider_SaveFailureIgnored(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewRecorder(RecorderConfig{LogsDir: dir})
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(dir))

	p := WrapProvider(&stubProvider{content: "ok"}, rec)
	msg, err := p.Generate(context.Background(), []llm.Message{llm.User("note")})
	require.NoError(t, err)
	assert.Equal(t, "ok", msg.Content)
}
