// Package app собирает компоненты демона из конфигурации.
//
// Build создаёт провайдера, движок классификации, ledger, зеркало,
// уведомления, процессор и watcher. Components.Close освобождает их в
// обратном порядке.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ilkoid/mastication/pkg/classifier"
	"github.com/ilkoid/mastication/pkg/config"
	"github.com/ilkoid/mastication/pkg/debug"
	"github.com/ilkoid/mastication/pkg/events"
	"github.com/ilkoid/mastication/pkg/factory"
	"github.com/ilkoid/mastication/pkg/ledger"
	"github.com/ilkoid/mastication/pkg/llm"
	"github.com/ilkoid/mastication/pkg/notify"
	"github.com/ilkoid/mastication/pkg/processor"
	"github.com/ilkoid/mastication/pkg/prompt"
	"github.com/ilkoid/mastication/pkg/s3storage"
	"github.com/ilkoid/mastication/pkg/utils"
	"github.com/ilkoid/mastication/pkg/watcher"
)

// eventBuffer — размер буфера событий между процессором и уведомлениями.
const eventBuffer = 64

// Components содержит все компоненты демона.
type Components struct {
	Config    *config.AppConfig
	Provider  llm.Provider
	Engine    *classifier.Engine
	Ledger    ledger.Ledger
	Archive   *s3storage.Client // nil, если archive.enabled = false
	Notifiers []notify.Notifier
	Processor *processor.Processor
	Watcher   *watcher.Watcher

	emitter      *events.ChanEmitter // nil без уведомлений
	dispatcher   *notify.Dispatcher
	dispatchDone chan struct{}
}

// Option настраивает сборку (для тестов).
type Option func(*buildOptions)

type buildOptions struct {
	provider llm.Provider
	procOpts []processor.Option
}

// WithProvider подменяет LLM провайдера.
func WithProvider(p llm.Provider) Option {
	return func(o *buildOptions) { o.provider = p }
}

// WithProcessorOptions добавляет опции процессора (например, часы).
func WithProcessorOptions(opts ...processor.Option) Option {
	return func(o *buildOptions) { o.procOpts = append(o.procOpts, opts...) }
}

// Build создаёт компоненты по конфигурации.
//
// Ошибки ledger'а и зеркала фатальны. Ошибка инициализации отдельного
// канала уведомлений только логируется: канал отключается.
func Build(ctx context.Context, cfg *config.AppConfig, opts ...Option) (*Components, error) {
	var bo buildOptions
	for _, opt := range opts {
		opt(&bo)
	}

	c := &Components{Config: cfg}

	// 1. LLM провайдер
	c.Provider = bo.provider
	if c.Provider == nil {
		provider, err := factory.NewLLMProvider(cfg.LLM, cfg.Headers)
		if err != nil {
			return nil, fmt.Errorf("create llm provider: %w", err)
		}
		c.Provider = provider
	}
	if cfg.App.DebugLogsDir != "" {
		rec, err := debug.NewRecorder(debug.RecorderConfig{LogsDir: cfg.App.DebugLogsDir})
		if err != nil {
			return nil, fmt.Errorf("create debug recorder: %w", err)
		}
		c.Provider = debug.WrapProvider(c.Provider, rec)
	}

	// 2. Движок классификации
	engineOpts, err := EngineOptions(cfg.LLM)
	if err != nil {
		return nil, err
	}
	c.Engine = classifier.New(c.Provider, cfg, engineOpts...)

	// 3. Ledger
	l, err := openLedger(ctx, cfg.Ledger)
	if err != nil {
		return nil, err
	}
	c.Ledger = l

	// 4. Зеркало
	if cfg.Archive.Enabled {
		archive, err := s3storage.New(cfg.Archive)
		if err != nil {
			c.Ledger.Close()
			return nil, err
		}
		c.Archive = archive
	}

	// 5. Уведомления
	c.Notifiers = buildNotifiers(cfg.Notify)

	procOpts := []processor.Option{processor.WithLedger(c.Ledger)}
	if c.Archive != nil {
		procOpts = append(procOpts, processor.WithArchiver(c.Archive))
	}
	if len(c.Notifiers) > 0 {
		c.emitter = events.NewChanEmitter(eventBuffer)
		c.dispatcher = notify.NewDispatcher(c.emitter.Subscribe(), c.Notifiers...)
		procOpts = append(procOpts, processor.WithEmitter(c.emitter))
	}
	procOpts = append(procOpts, bo.procOpts...)

	// 6. Процессор и watcher
	c.Processor = processor.New(c.Engine, cfg, procOpts...)
	c.Watcher = watcher.New(c.Processor, c.Ledger, cfg)

	utils.Info("Components built",
		"provider", cfg.LLM.Provider,
		"model", cfg.LLM.Model,
		"ledger", ledgerKind(cfg.Ledger),
		"archive", cfg.Archive.Enabled,
		"notifiers", len(c.Notifiers))

	return c, nil
}

// Start восстанавливает ledger из дерева output и запускает доставку уведомлений.
func (c *Components) Start(ctx context.Context) error {
	if _, err := ledger.Rebuild(ctx, c.Ledger, c.Config.Monitoring.OutputDir); err != nil {
		return fmt.Errorf("rebuild ledger: %w", err)
	}

	if c.dispatcher != nil && c.dispatchDone == nil {
		c.dispatchDone = make(chan struct{})
		go func() {
			defer close(c.dispatchDone)
			c.dispatcher.Run(ctx)
		}()
	}
	return nil
}

// Close закрывает канал событий, дожидается доставки и закрывает ledger.
func (c *Components) Close() error {
	if c.emitter != nil {
		c.emitter.Close()
	}
	if c.dispatchDone != nil {
		<-c.dispatchDone
	}
	if c.Ledger != nil {
		return c.Ledger.Close()
	}
	return nil
}

// EngineOptions загружает шаблон промпта, если задан llm.prompt_file.
func EngineOptions(cfg config.LLMConfig) ([]classifier.Option, error) {
	if cfg.PromptFile == "" {
		return nil, nil
	}
	pf, err := prompt.Load(cfg.PromptFile)
	if err != nil {
		return nil, fmt.Errorf("load prompt file: %w", err)
	}
	utils.Info("Prompt file loaded", "path", cfg.PromptFile, "messages", len(pf.Messages))
	return []classifier.Option{classifier.WithPrompt(pf)}, nil
}

func openLedger(ctx context.Context, cfg config.LedgerConfig) (ledger.Ledger, error) {
	if cfg.Path == "" {
		return ledger.NewMemory(), nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	return ledger.OpenSQLite(ctx, cfg.Path)
}

func ledgerKind(cfg config.LedgerConfig) string {
	if cfg.Path == "" {
		return "memory"
	}
	return "sqlite"
}

func buildNotifiers(cfg config.NotifyConfig) []notify.Notifier {
	var out []notify.Notifier

	if cfg.Discord.Enabled {
		out = append(out, notify.NewDiscord(cfg.Discord))
	}

	if cfg.Telegram.Enabled {
		tg, err := notify.NewTelegram(cfg.Telegram)
		if err != nil {
			utils.Warn("Telegram notifications disabled", "error", err)
		} else {
			out = append(out, tg)
		}
	}

	return out
}
