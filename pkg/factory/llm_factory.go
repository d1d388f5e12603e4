package factory

import (
	"fmt"

	"github.com/ilkoid/mastication/pkg/config"
	"github.com/ilkoid/mastication/pkg/llm"
	"github.com/ilkoid/mastication/pkg/llm/openai"
)

// NewLLMProvider создает провайдера на основе секции llm конфигурации.
//
// Все поддерживаемые провайдеры говорят на OpenAI-совместимом протоколе,
// различается только base_url.
func NewLLMProvider(cfg config.LLMConfig, headers map[string]string) (llm.Provider, error) {
	switch cfg.Provider {
	case "openai", "openrouter", "zai", "deepseek":
		return openai.NewClient(cfg, headers), nil

	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Provider)
	}
}
