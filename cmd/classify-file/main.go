// Утилита для разовой классификации одного файла.
//
// Печатает JSON артефакта в stdout, ничего не пишет на диск.
//
// Usage:
//
//	classify-file [-config path] <file>
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ilkoid/mastication/internal/app"
	"github.com/ilkoid/mastication/pkg/classifier"
	"github.com/ilkoid/mastication/pkg/factory"
	"github.com/ilkoid/mastication/pkg/processor"
	"github.com/ilkoid/mastication/pkg/utils"
)

func main() {
	configFlag := flag.String("config", "", "path to config.yaml")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	// 1. Путь к файлу из аргументов
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: classify-file [-config path] <file>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	// 2. Конфигурация и логгер (в stderr, stdout занят результатом)
	cfg, _, err := app.LoadConfig(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config load error: %v\n", err)
		os.Exit(1)
	}
	if err := utils.InitLogger("", cfg.App.Debug || *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Logger init error: %v\n", err)
		os.Exit(1)
	}
	defer utils.Close()

	// 3. Читаем файл с теми же правилами, что и демон
	content, err := processor.ReadText(path, cfg.Processing.MaxFileSize, cfg.Processing.Latin1Fallback)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(1)
	}

	// 4. Провайдер и движок
	provider, err := factory.NewLLMProvider(cfg.LLM, cfg.Headers)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Provider init error: %v\n", err)
		os.Exit(1)
	}
	engineOpts, err := app.EngineOptions(cfg.LLM)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Prompt error: %v\n", err)
		os.Exit(1)
	}
	engine := classifier.New(provider, cfg, engineOpts...)

	// 5. Классификация с таймаутом
	ctx, cancel := context.WithTimeout(context.Background(), cfg.LLM.Timeout+5*time.Second)
	defer cancel()

	name := filepath.Base(path)
	res, err := engine.Classify(ctx, classifier.Request{FileName: name, Content: content})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Classification failed (%s): %v\n", processor.ErrorKind(err), err)
		os.Exit(1)
	}

	// 6. Вывод
	data, err := processor.NewArtifact(res, name).Marshal()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Encode error: %v\n", err)
		os.Exit(1)
	}
	os.Stdout.Write(data)
}
