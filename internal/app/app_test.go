package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ilkoid/mastication/pkg/config"
	"github.com/ilkoid/mastication/pkg/debug"
	"github.com/ilkoid/mastication/pkg/llm"
	"github.com/ilkoid/mastication/pkg/processor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider отвечает фиксированным JSON.
type stubProvider struct {
	content string
}

func (s *stubProvider) Generate(context.Context, []llm.Message, ...llm.GenerateOption) (llm.Message, error) {
	return llm.Message{Role: llm.RoleAssistant, Content: s.content}, nil
}

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	root := t.TempDir()
	cfg := &config.AppConfig{
		LLM: config.LLMConfig{
			Provider: "openai",
			BaseURL:  "http://127.0.0.1:1",
			Model:    "test-model",
			APIKey:   "sk-test",
		},
		Monitoring: config.MonitoringConfig{
			InputDir:        filepath.Join(root, "input"),
			OutputDir:       filepath.Join(root, "output"),
			FileExtensions:  []string{".txt"},
			PollingInterval: time.Second,
			Layout:          config.LayoutCategorized,
		},
		Processing: config.ProcessingConfig{
			MaxFileSize: config.DefaultMaxFileSize,
			Workers:     1,
		},
		Classification: config.ClassificationConfig{
			Categories: []string{"events_calendar", "ideas", "misc"},
		},
	}
	require.NoError(t, os.MkdirAll(cfg.Monitoring.InputDir, 0755))
	return cfg
}

func TestBuild_DefaultsToMemoryLedger(t *testing.T) {
	cfg := testConfig(t)

	c, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer c.Close()

	assert.NotNil(t, c.Provider)
	assert.Nil(t, c.Archive)
	assert.Empty(t, c.Notifiers)
	assert.Equal(t, "memory", ledgerKind(cfg.Ledger))
}

func TestBuild_DebugLogsDirWrapsProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.App.DebugLogsDir = filepath.Join(t.TempDir(), "debug_logs")

	c, err := Build(context.Background(), cfg, WithProvider(&stubProvider{content: "{}"}))
	require.NoError(t, err)
	defer c.Close()

	_, ok := c.Provider.(*debug.RecordingProvider)
	assert.True(t, ok)
	assert.DirExists(t, cfg.App.DebugLogsDir)
}

func TestBuild_UnknownProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.Provider = "carrier-pigeon"

	_, err := Build(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create llm provider")
}

// TestPipeline_EndToEnd: файл → классификация → артефакт → уведомление
// Discord → перезапуск с SQLite ledger не обрабатывает файл повторно.
func TestPipeline_EndToEnd(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	discord := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.Method+" "+r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer discord.Close()

	cfg := testConfig(t)
	cfg.Ledger.Path = filepath.Join(t.TempDir(), "state", "ledger.db")
	cfg.Notify.Discord = config.DiscordConfig{
		Enabled:                  true,
		Token:                    "t",
		BaseURL:                  discord.URL,
		FodderChannelID:          "111",
		ClassificationsChannelID: "222",
	}

	input := filepath.Join(cfg.Monitoring.InputDir, "1180000000000000001.txt")
	require.NoError(t, os.WriteFile(input, []byte("Dentist appointment on Thursday at 3:00 PM"), 0644))

	provider := &stubProvider{content: "```json\n{\"category\":\"events_calendar\",\"confidence\":0.95,\"subcategory\":null,\"summary\":\"Dentist.\",\"tags\":[\"dentist\"]}\n```"}
	now := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	clock := processor.WithClock(func() time.Time { return now })

	ctx := context.Background()
	c, err := Build(ctx, cfg, WithProvider(provider), WithProcessorOptions(clock))
	require.NoError(t, err)
	require.NoError(t, c.Start(ctx))

	stats := c.Watcher.Tick(ctx)
	assert.Equal(t, 1, stats.Processed)
	require.NoError(t, c.Close())

	artifact := filepath.Join(cfg.Monitoring.OutputDir, "events_calendar", "2024", "01", "02", "1704189600.json")
	assert.FileExists(t, artifact)
	assert.FileExists(t, input)

	mu.Lock()
	assert.Equal(t, []string{
		"PUT /channels/111/messages/1180000000000000001/reactions/🤔/@me",
		"DELETE /channels/111/messages/1180000000000000001/reactions/🤔/@me",
		"PUT /channels/111/messages/1180000000000000001/reactions/🚀/@me",
		"POST /channels/222/messages",
	}, paths)
	mu.Unlock()

	// Второй запуск: ledger восстановлен, файл не обрабатывается
	now = now.Add(time.Hour)
	c2, err := Build(ctx, cfg, WithProvider(provider), WithProcessorOptions(clock))
	require.NoError(t, err)
	require.NoError(t, c2.Start(ctx))
	defer c2.Close()

	assert.Zero(t, c2.Watcher.Tick(ctx).Eligible)
}

func TestFindConfigPath(t *testing.T) {
	explicit := filepath.Join(t.TempDir(), "custom.yaml")
	assert.Equal(t, explicit, FindConfigPath(explicit))

	dir := t.TempDir()
	t.Chdir(dir)
	assert.Equal(t, DefaultConfigPath, FindConfigPath(""))

	require.NoError(t, os.MkdirAll("config", 0755))
	require.NoError(t, os.WriteFile(filepath.Join("config", "config.yaml"), []byte("x"), 0644))
	got := FindConfigPath("")
	assert.Equal(t, filepath.Join("config", "config.yaml"), filepath.Join(filepath.Base(filepath.Dir(got)), filepath.Base(got)))
}

func TestEngineOptions_PromptFile(t *testing.T) {
	opts, err := EngineOptions(config.LLMConfig{})
	require.NoError(t, err)
	assert.Empty(t, opts)

	opts, err = EngineOptions(config.LLMConfig{PromptFile: "../../config/prompts/classify.yaml"})
	require.NoError(t, err)
	assert.Len(t, opts, 1)

	_, err = EngineOptions(config.LLMConfig{PromptFile: filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load prompt file")
}
