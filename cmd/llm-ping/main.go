// llm-ping — утилита для проверки доступности LLM провайдера.
//
// Отправляет короткий запрос с параметрами секции llm и печатает
// статус, задержку и тип ошибки (auth, rate_limit, transport).
//
// Usage:
//
//	llm-ping [-config path] [-model name]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ilkoid/mastication/internal/app"
	"github.com/ilkoid/mastication/pkg/factory"
	"github.com/ilkoid/mastication/pkg/llm"
	"github.com/ilkoid/mastication/pkg/processor"
)

func main() {
	configFlag := flag.String("config", "", "path to config.yaml")
	model := flag.String("model", "", "override llm.model")
	flag.Parse()

	// 1. Загружаем конфигурацию
	cfg, cfgPath, err := app.LoadConfig(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config load error: %v\n", err)
		os.Exit(1)
	}

	// 2. Создаем провайдера
	provider, err := factory.NewLLMProvider(cfg.LLM, cfg.Headers)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Provider init error: %v\n", err)
		os.Exit(1)
	}

	modelName := cfg.LLM.Model
	if *model != "" {
		modelName = *model
	}

	fmt.Printf("🔍 Testing LLM Provider: %s (%s)\n", cfg.LLM.Provider, cfgPath)
	fmt.Printf("   Endpoint: %s\n\n", cfg.LLM.BaseURL)

	// 3. Выполняем ping
	ctx, cancel := context.WithTimeout(context.Background(), cfg.LLM.Timeout)
	defer cancel()

	start := time.Now()
	msg, err := provider.Generate(ctx,
		[]llm.Message{llm.User("Reply with the single word: pong")},
		llm.WithModel(modelName),
		llm.WithMaxTokens(5),
		llm.WithFormat(""),
	)
	latency := time.Since(start)

	// 4. Выводим результат
	if err != nil {
		fmt.Printf("❌ Status: UNAVAILABLE\n")
		fmt.Printf("   Model: %s\n", modelName)
		fmt.Printf("   Error Type: %s\n", processor.ErrorKind(err))
		fmt.Printf("   Error: %v\n", err)
		var te *llm.TransportError
		if errors.As(err, &te) && te.StatusCode > 0 {
			fmt.Printf("   HTTP Code: %d\n", te.StatusCode)
		}
		fmt.Printf("   Latency: %dms\n", latency.Milliseconds())
		os.Exit(1)
	}

	fmt.Printf("✅ Status: AVAILABLE\n")
	fmt.Printf("   Model: %s\n", modelName)
	fmt.Printf("   Latency: %dms\n", latency.Milliseconds())
	fmt.Printf("   Message: %q\n", msg.Content)
}
