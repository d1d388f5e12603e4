// Package classifier превращает текст заметки в провалидированную классификацию.
//
// Engine строит запрос (системный промпт + задача классификации), делает
// ровно один вызов llm.Provider и строго проверяет ответ. Retry здесь нет:
// файл остаётся в очереди и будет повторён на следующем тике.
package classifier

import (
	"context"
	"fmt"

	"github.com/ilkoid/mastication/pkg/config"
	"github.com/ilkoid/mastication/pkg/llm"
	"github.com/ilkoid/mastication/pkg/prompt"
	"github.com/ilkoid/mastication/pkg/utils"
)

// Request — один файл на классификацию.
type Request struct {
	FileName string // Базовое имя файла, попадает в промпт
	Content  string
}

// Classifier — то, что нужно процессору от движка. Позволяет подменять движок в тестах.
type Classifier interface {
	Classify(ctx context.Context, req Request) (Result, error)
}

// Engine выполняет классификацию через LLM.
type Engine struct {
	provider        llm.Provider
	cls             config.ClassificationConfig
	llmCfg          config.LLMConfig
	maxContentChars int
	prompt          *prompt.PromptFile // nil — встроенный промпт
}

var _ Classifier = (*Engine)(nil)

// Option настраивает Engine.
type Option func(*Engine)

// WithPrompt заменяет встроенный промпт шаблоном из файла.
// Непустые поля config шаблона переопределяют модель, температуру и max_tokens.
func WithPrompt(pf *prompt.PromptFile) Option {
	return func(e *Engine) { e.prompt = pf }
}

// New создаёт движок. Конфигурация копируется и дальше не меняется.
func New(provider llm.Provider, cfg *config.AppConfig, opts ...Option) *Engine {
	e := &Engine{
		provider:        provider,
		cls:             cfg.Classification,
		llmCfg:          cfg.LLM,
		maxContentChars: cfg.Processing.MaxContentChars,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Messages возвращает сообщения чата для запроса.
// Системное сообщение опускается, если llm.system_prompt пустой.
// Ошибка возможна только при рендере шаблона из файла.
func (e *Engine) Messages(req Request) ([]llm.Message, error) {
	content := req.Content
	if e.maxContentChars > 0 {
		if truncated, ok := truncateRunes(content, e.maxContentChars); ok {
			utils.Info("Content truncated",
				"file", req.FileName,
				"max_chars", e.maxContentChars)
			content = truncated
		}
	}

	if e.prompt != nil {
		return e.renderPrompt(req.FileName, content)
	}

	messages := make([]llm.Message, 0, 2)
	if e.llmCfg.SystemPrompt != "" {
		messages = append(messages, llm.System(e.llmCfg.SystemPrompt))
	}
	messages = append(messages, llm.User(BuildPrompt(e.cls, req.FileName, content)))
	return messages, nil
}

func (e *Engine) renderPrompt(fileName, content string) ([]llm.Message, error) {
	data := prompt.Data{
		FileName:   fileName,
		Content:    content,
		Categories: make([]prompt.Category, len(e.cls.Categories)),
	}
	for i, name := range e.cls.Categories {
		data.Categories[i] = prompt.Category{Name: name, Guideline: e.cls.Guideline(name)}
	}

	rendered, err := e.prompt.RenderMessages(data)
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}

	messages := make([]llm.Message, len(rendered))
	for i, m := range rendered {
		messages[i] = llm.Message{Role: llm.Role(m.Role), Content: m.Content}
	}
	return messages, nil
}

// Options возвращает параметры генерации из конфигурации.
func (e *Engine) Options() []llm.GenerateOption {
	opts := []llm.GenerateOption{
		llm.WithModel(e.llmCfg.Model),
		llm.WithTemperature(e.llmCfg.Temperature),
		llm.WithMaxTokens(e.llmCfg.MaxTokens),
		llm.WithFormat(e.llmCfg.ResponseFormat),
	}
	if e.prompt != nil {
		pc := e.prompt.Config
		if pc.Model != "" {
			opts = append(opts, llm.WithModel(pc.Model))
		}
		if pc.Temperature != 0 {
			opts = append(opts, llm.WithTemperature(pc.Temperature))
		}
		if pc.MaxTokens != 0 {
			opts = append(opts, llm.WithMaxTokens(pc.MaxTokens))
		}
	}
	if e.llmCfg.ResponseFormat == config.ResponseFormatJSONSchema {
		opts = append(opts, llm.WithSchema("classification", ResponseSchema(e.cls.Categories)))
	}
	return opts
}

// Classify отправляет файл в LLM и разбирает ответ.
//
// Ошибки: транспортные из llm (*llm.TransportError, *llm.AuthenticationError,
// *llm.RateLimitError) и *ResponseFormatError / *InvalidCategoryError.
func (e *Engine) Classify(ctx context.Context, req Request) (Result, error) {
	messages, err := e.Messages(req)
	if err != nil {
		return Result{}, err
	}

	msg, err := e.provider.Generate(ctx, messages, e.Options()...)
	if err != nil {
		return Result{}, err
	}

	res, err := Parse(msg.Content, e.cls.Categories)
	if err != nil {
		utils.Debug("Raw response", "file", req.FileName, "response", msg.Content)
		return Result{}, err
	}

	if !res.ConfidenceInRange() {
		utils.Warn("Confidence outside [0, 1]",
			"file", req.FileName,
			"confidence", res.Confidence)
	}

	return res, nil
}

// truncateRunes обрезает s до n символов (не байт).
func truncateRunes(s string, n int) (string, bool) {
	count := 0
	for i := range s {
		if count == n {
			return s[:i], true
		}
		count++
	}
	return s, false
}
