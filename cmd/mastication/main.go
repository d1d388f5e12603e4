// Mastication — демон, классифицирующий текстовые заметки через LLM.
//
// Опрашивает monitoring.input_dir, отправляет каждый новый файл в
// OpenAI-совместимый endpoint и сохраняет JSON результат в output_dir.
//
// Usage:
//
//	mastication [-config path] [-verbose] [-once]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/ilkoid/mastication/internal/app"
	"github.com/ilkoid/mastication/pkg/utils"
)

func main() {
	configFlag := flag.String("config", "", "path to config.yaml (default: "+app.DefaultConfigPath+")")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	once := flag.Bool("once", false, "run a single tick and exit")
	flag.Parse()

	if err := run(*configFlag, *verbose, *once); err != nil {
		fmt.Fprintf(os.Stderr, "mastication: %v\n", err)
		os.Exit(1)
	}
}

func run(configFlag string, verbose, once bool) error {
	// 1. Конфигурация (.env грузится внутри config.Load)
	cfg, cfgPath, err := app.LoadConfig(configFlag)
	if err != nil {
		return err
	}

	// 2. Логгер
	if err := utils.InitLogger(cfg.App.LogFile, cfg.App.Debug || verbose); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer utils.SetupGracefulShutdown(cancel)()

	utils.Info("Mastication starting", "config", cfgPath)

	// 3. Компоненты
	components, err := app.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := components.Close(); err != nil {
			utils.Warn("Shutdown error", "error", err)
		}
	}()

	// 4. Входная директория
	if err := os.MkdirAll(cfg.Monitoring.InputDir, 0755); err != nil {
		utils.Warn("Cannot create input directory", "dir", cfg.Monitoring.InputDir, "error", err)
	}

	// 5. Ledger и уведомления
	if err := components.Start(ctx); err != nil {
		return err
	}

	// 6. Цикл
	if once {
		stats := components.Watcher.Tick(ctx)
		utils.Info("Single tick finished",
			"eligible", stats.Eligible,
			"processed", stats.Processed,
			"failed", stats.Failed)
		return nil
	}

	return components.Watcher.Run(ctx)
}
