package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Переменные окружения с API ключом (в порядке приоритета после llm.api_key).
const (
	EnvOpenRouterAPIKey = "OPENROUTER_API_KEY"
	EnvOpenAIAPIKey     = "OPENAI_API_KEY"
)

// Режимы раскладки выходных файлов.
const (
	LayoutCategorized = "categorized" // {output}/{category}/{YYYY}/{MM}/{DD}/{ts}.json
	LayoutFlat        = "flat"        // {output}/{stem}_processed_{ts}.json
)

// Форматы ответа, запрашиваемые у модели.
const (
	ResponseFormatNone       = ""
	ResponseFormatJSONObject = "json_object"
	ResponseFormatJSONSchema = "json_schema"
)

// DefaultMaxFileSize — 10 MiB.
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

// AppConfig — корневая структура конфигурации.
// Она зеркалит структуру config.yaml.
type AppConfig struct {
	LLM            LLMConfig            `yaml:"llm"`
	Headers        map[string]string    `yaml:"headers"`
	Monitoring     MonitoringConfig     `yaml:"monitoring"`
	Processing     ProcessingConfig     `yaml:"processing"`
	Classification ClassificationConfig `yaml:"classification"`
	Ledger         LedgerConfig         `yaml:"ledger"`
	Archive        S3Config             `yaml:"archive"`
	Notify         NotifyConfig         `yaml:"notify"`
	App            AppSpecific          `yaml:"app"`
}

// LLMConfig — параметры OpenAI-совместимого endpoint.
type LLMConfig struct {
	Provider          string        `yaml:"provider"`   // "openai", "openrouter", "zai", "deepseek"
	BaseURL           string        `yaml:"base_url"`   // например https://openrouter.ai/api/v1
	Model             string        `yaml:"model"`      // Реальное имя в API
	Temperature       float64       `yaml:"temperature"`
	MaxTokens         int           `yaml:"max_tokens"`
	SystemPrompt      string        `yaml:"system_prompt"`
	PromptFile        string        `yaml:"prompt_file"` // YAML шаблон промпта; пустой — встроенный
	APIKey            string        `yaml:"api_key"` // Поддерживает ${VAR}, никогда не логируется
	Timeout           time.Duration `yaml:"timeout"` // "60s", "2m"
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	ResponseFormat    string        `yaml:"response_format"`
}

// MonitoringConfig — какие файлы и где искать.
type MonitoringConfig struct {
	InputDir        string        `yaml:"input_dir"`
	OutputDir       string        `yaml:"output_dir"`
	FileExtensions  []string      `yaml:"file_extensions"` // Точное совпадение суффикса: ".txt", ".md"
	PollingInterval time.Duration `yaml:"polling_interval"`
	Layout          string        `yaml:"layout"`
}

// ProcessingConfig — политика обработки.
type ProcessingConfig struct {
	DeleteAfterProcessing bool  `yaml:"delete_after_processing"`
	OverwriteExisting     bool  `yaml:"overwrite_existing"`
	MaxFileSize           int64 `yaml:"max_file_size"`
	MaxContentChars       int   `yaml:"max_content_chars"` // 0 — без обрезки
	Latin1Fallback        bool  `yaml:"latin1_fallback"`
	Workers               int   `yaml:"workers"`
}

// ClassificationConfig — таксономия и описания категорий.
type ClassificationConfig struct {
	Categories []string          `yaml:"categories"`
	Guidelines map[string]string `yaml:"guidelines"`
}

// LedgerConfig — SQLite-реестр обработанных файлов.
// Пустой Path означает in-memory реестр, восстанавливаемый из output_dir.
type LedgerConfig struct {
	Path string `yaml:"path"`
}

// S3Config — настройки зеркалирования результатов в объектное хранилище.
type S3Config struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"` // Поддерживает ${VAR}
	SecretKey string `yaml:"secret_key"` // Поддерживает ${VAR}
	UseSSL    bool   `yaml:"use_ssl"`
	Prefix    string `yaml:"prefix"`
}

// NotifyConfig — уведомления о результатах классификации.
type NotifyConfig struct {
	Discord  DiscordConfig  `yaml:"discord"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// DiscordConfig — Discord бот через HTTP API.
type DiscordConfig struct {
	Enabled                  bool   `yaml:"enabled"`
	Token                    string `yaml:"token"`
	BaseURL                  string `yaml:"base_url"`
	FodderChannelID          string `yaml:"fodder_channel_id"`
	ClassificationsChannelID string `yaml:"classifications_channel_id"`
	GuildID                  string `yaml:"guild_id"`
}

// TelegramConfig — Telegram бот.
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Token    string `yaml:"token"`
	ChatID   int64  `yaml:"chat_id"`
	Endpoint string `yaml:"endpoint"` // Пустой — api.telegram.org
}

// AppSpecific — общие настройки приложения.
type AppSpecific struct {
	Debug   bool   `yaml:"debug"`
	LogFile string `yaml:"log_file"`

	// DebugLogsDir — директория для трейсов LLM запросов. Пустая — трейсы выключены
	DebugLogsDir string `yaml:"debug_logs_dir"`
}

// Load читает YAML файл, подставляет ENV переменные и возвращает готовую структуру.
//
// Перед чтением подгружается .env из текущей директории (если есть).
// Ошибки валидации фатальны: конфигурация статична и не исправится сама.
func Load(path string) (*AppConfig, error) {
	// 0. .env не обязателен
	_ = godotenv.Load()

	// 1. Проверяем существование файла
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found at: %s", path)
	}

	// 2. Читаем файл целиком
	rawBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(rawBytes)
}

// Parse разбирает YAML из памяти: подстановка ENV, дефолты, валидация.
func Parse(raw []byte) (*AppConfig, error) {
	contentWithEnv := os.ExpandEnv(string(raw))

	var cfg AppConfig
	if err := yaml.Unmarshal([]byte(contentWithEnv), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}

	cfg = cfg.GetDefaults()
	cfg.resolveAPIKey()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// GetDefaults возвращает копию конфигурации с заполненными дефолтами.
func (c AppConfig) GetDefaults() AppConfig {
	result := c

	if result.LLM.Provider == "" {
		result.LLM.Provider = "openai"
	}
	if result.LLM.MaxTokens == 0 {
		result.LLM.MaxTokens = 1000
	}
	if result.LLM.Timeout == 0 {
		result.LLM.Timeout = 60 * time.Second
	}
	if result.Monitoring.PollingInterval == 0 {
		result.Monitoring.PollingInterval = 5 * time.Second
	}
	if result.Monitoring.Layout == "" {
		result.Monitoring.Layout = LayoutCategorized
	}
	if result.Processing.MaxFileSize == 0 {
		result.Processing.MaxFileSize = DefaultMaxFileSize
	}
	if result.Processing.Workers == 0 {
		result.Processing.Workers = 1
	}
	if result.Notify.Discord.BaseURL == "" {
		result.Notify.Discord.BaseURL = "https://discord.com/api/v10"
	}

	// Пустые заголовки не отправляем
	headers := make(map[string]string, len(result.Headers))
	for k, v := range result.Headers {
		if v != "" {
			headers[k] = v
		}
	}
	result.Headers = headers

	if result.Classification.Guidelines == nil {
		result.Classification.Guidelines = map[string]string{}
	}

	return result
}

func (c *AppConfig) resolveAPIKey() {
	if c.LLM.APIKey != "" {
		return
	}
	if v := os.Getenv(EnvOpenRouterAPIKey); v != "" {
		c.LLM.APIKey = v
		return
	}
	c.LLM.APIKey = os.Getenv(EnvOpenAIAPIKey)
}

// validate проверяет обязательные поля.
func (c *AppConfig) validate() error {
	if c.LLM.BaseURL == "" {
		return fmt.Errorf("llm.base_url is required")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("no API key found: set llm.api_key, %s or %s", EnvOpenRouterAPIKey, EnvOpenAIAPIKey)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be within [0, 2], got %v", c.LLM.Temperature)
	}
	if c.LLM.MaxTokens < 0 {
		return fmt.Errorf("llm.max_tokens must be positive")
	}
	if c.LLM.RequestsPerMinute < 0 {
		return fmt.Errorf("llm.requests_per_minute must not be negative")
	}
	switch c.LLM.ResponseFormat {
	case ResponseFormatNone, ResponseFormatJSONObject, ResponseFormatJSONSchema:
	default:
		return fmt.Errorf("unknown llm.response_format %q", c.LLM.ResponseFormat)
	}

	if c.Monitoring.InputDir == "" {
		return fmt.Errorf("monitoring.input_dir is required")
	}
	if c.Monitoring.OutputDir == "" {
		return fmt.Errorf("monitoring.output_dir is required")
	}
	if len(c.Monitoring.FileExtensions) == 0 {
		return fmt.Errorf("monitoring.file_extensions must not be empty")
	}
	for _, ext := range c.Monitoring.FileExtensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return fmt.Errorf("monitoring.file_extensions: %q must start with '.'", ext)
		}
	}
	if c.Monitoring.PollingInterval <= 0 {
		return fmt.Errorf("monitoring.polling_interval must be positive")
	}
	switch c.Monitoring.Layout {
	case LayoutCategorized, LayoutFlat:
	default:
		return fmt.Errorf("unknown monitoring.layout %q", c.Monitoring.Layout)
	}

	if c.Processing.MaxFileSize <= 0 {
		return fmt.Errorf("processing.max_file_size must be positive")
	}
	if c.Processing.MaxContentChars < 0 {
		return fmt.Errorf("processing.max_content_chars must not be negative")
	}
	if c.Processing.Workers < 1 {
		return fmt.Errorf("processing.workers must be at least 1")
	}

	if err := c.Classification.validate(); err != nil {
		return err
	}

	if c.Archive.Enabled {
		if c.Archive.Bucket == "" {
			return fmt.Errorf("archive.bucket is required")
		}
		if c.Archive.Endpoint == "" {
			return fmt.Errorf("archive.endpoint is required")
		}
	}

	if d := c.Notify.Discord; d.Enabled {
		if d.Token == "" {
			return fmt.Errorf("notify.discord.token is required")
		}
		if d.FodderChannelID == "" && d.ClassificationsChannelID == "" {
			return fmt.Errorf("notify.discord needs fodder_channel_id or classifications_channel_id")
		}
	}
	if tg := c.Notify.Telegram; tg.Enabled {
		if tg.Token == "" {
			return fmt.Errorf("notify.telegram.token is required")
		}
		if tg.ChatID == 0 {
			return fmt.Errorf("notify.telegram.chat_id is required")
		}
	}

	return nil
}

func (c *ClassificationConfig) validate() error {
	if len(c.Categories) == 0 {
		return fmt.Errorf("classification.categories must not be empty")
	}

	seen := make(map[string]struct{}, len(c.Categories))
	for _, cat := range c.Categories {
		if strings.TrimSpace(cat) == "" {
			return fmt.Errorf("classification.categories contains an empty name")
		}
		if _, dup := seen[cat]; dup {
			return fmt.Errorf("classification.categories: duplicate category %q", cat)
		}
		seen[cat] = struct{}{}
	}

	for cat := range c.Guidelines {
		if _, ok := seen[cat]; !ok {
			return fmt.Errorf("classification.guidelines references unknown category %q", cat)
		}
	}

	return nil
}

// Helper методы для удобства доступа

// HasCategory проверяет, входит ли категория в сконфигурированный набор.
func (c *ClassificationConfig) HasCategory(name string) bool {
	for _, cat := range c.Categories {
		if cat == name {
			return true
		}
	}
	return false
}

// Guideline возвращает описание категории или заглушку.
func (c *ClassificationConfig) Guideline(name string) string {
	if g, ok := c.Guidelines[name]; ok && g != "" {
		return g
	}
	return "No description available"
}

// AllowsFile проверяет имя файла против allow-list суффиксов.
// Сравнение точное и чувствительно к регистру: ".TXT" не совпадает с ".txt".
func (m *MonitoringConfig) AllowsFile(name string) bool {
	for _, suffix := range m.FileExtensions {
		if strings.HasSuffix(name, suffix) && len(name) > len(suffix) {
			return true
		}
	}
	return false
}
