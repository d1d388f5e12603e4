// Package openai реализует адаптер LLM провайдера для OpenAI-совместимых API
// (OpenAI, OpenRouter, Zai, DeepSeek).
//
// Один вызов Generate — один blocking запрос /chat/completions без retry:
// повтор обеспечивает следующий тик watcher'а.
package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ilkoid/mastication/pkg/config"
	"github.com/ilkoid/mastication/pkg/llm"
	"github.com/ilkoid/mastication/pkg/utils"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// Client реализует интерфейс llm.Provider для OpenAI-совместимых API.
type Client struct {
	api      *openai.Client
	defaults llm.GenerateOptions
	limiter  *rate.Limiter // nil — без ограничения
}

var _ llm.Provider = (*Client)(nil)

// headerDoer добавляет кастомные заголовки (HTTP-Referer, X-Title и т.п.)
// к каждому запросу SDK.
type headerDoer struct {
	client  *http.Client
	headers map[string]string
}

func (d *headerDoer) Do(req *http.Request) (*http.Response, error) {
	for k, v := range d.headers {
		req.Header.Set(k, v)
	}
	return d.client.Do(req)
}

// customHeaders копирует headers без Authorization: bearer token
// задаётся только через api_key.
func customHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if strings.EqualFold(k, "Authorization") {
			utils.Warn("Ignoring custom Authorization header, use llm.api_key")
			continue
		}
		out[k] = v
	}
	return out
}

// NewClient создает OpenAI клиент на основе секции llm конфигурации.
//
// apiKey передаётся как bearer token; headers добавляются к каждому запросу.
// requests_per_minute > 0 включает клиентский rate limiter.
func NewClient(cfg config.LLMConfig, headers map[string]string) *Client {
	return NewClientWithHTTP(cfg, headers, &http.Client{Timeout: cfg.Timeout})
}

// NewClientWithHTTP — то же, что NewClient, но с заданным http.Client (для тестов).
func NewClientWithHTTP(cfg config.LLMConfig, headers map[string]string, httpClient *http.Client) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &headerDoer{client: httpClient, headers: customHeaders(headers)}

	c := &Client{
		api: openai.NewClientWithConfig(oc),
		defaults: llm.GenerateOptions{
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Format:      cfg.ResponseFormat,
		},
	}

	if cfg.RequestsPerMinute > 0 {
		every := time.Minute / time.Duration(cfg.RequestsPerMinute)
		c.limiter = rate.NewLimiter(rate.Every(every), 1)
	}

	return c
}

// Generate выполняет запрос к API и возвращает ответ модели.
//
// Алгоритм:
//  1. Ждёт rate limiter (если включен)
//  2. Конвертирует сообщения в формат OpenAI SDK
//  3. Вызывает API
//  4. Классифицирует ошибку в llm.TransportError / AuthenticationError / RateLimitError
func (c *Client) Generate(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (llm.Message, error) {
	startTime := time.Now()
	o := llm.ApplyOptions(c.defaults, opts...)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return llm.Message{}, &llm.TransportError{Err: err}
		}
	}

	utils.Debug("LLM request started",
		"model", o.Model,
		"messages_count", len(messages),
		"format", o.Format)

	req := openai.ChatCompletionRequest{
		Model:       o.Model,
		Messages:    mapToOpenAI(messages),
		Temperature: float32(o.Temperature),
		MaxTokens:   o.MaxTokens,
	}
	req.ResponseFormat = responseFormat(o)

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		classified := classifyError(err)
		utils.Error("LLM API request failed",
			"error", classified,
			"model", o.Model,
			"duration_ms", time.Since(startTime).Milliseconds())
		return llm.Message{}, classified
	}

	if len(resp.Choices) == 0 {
		utils.Warn("LLM response has no choices", "model", o.Model)
		return llm.Message{Role: llm.RoleAssistant}, nil
	}

	choice := resp.Choices[0].Message
	result := llm.Message{
		Role:    llm.RoleAssistant,
		Content: choice.Content,
	}

	utils.Info("LLM response received",
		"model", o.Model,
		"content_length", len(result.Content),
		"duration_ms", time.Since(startTime).Milliseconds())

	return result, nil
}

// mapToOpenAI конвертирует наши сообщения в формат SDK.
func mapToOpenAI(messages []llm.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		}
	}
	return out
}

func responseFormat(o llm.GenerateOptions) *openai.ChatCompletionResponseFormat {
	switch o.Format {
	case config.ResponseFormatJSONObject:
		return &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	case config.ResponseFormatJSONSchema:
		if o.Schema == nil {
			return &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			}
		}
		return &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   o.SchemaName,
				Schema: o.Schema,
				Strict: true,
			},
		}
	default:
		return nil
	}
}

// classifyError переводит ошибки SDK в транспортную таксономию llm.
//
//   - *openai.APIError / *openai.RequestError со статусом → по статусу
//   - всё остальное (timeout, connection refused) → TransportError без статуса
func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return llm.ClassifyStatus(apiErr.HTTPStatusCode, apiErr.Message, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return llm.ClassifyStatus(reqErr.HTTPStatusCode, reqErr.Error(), err)
	}

	return &llm.TransportError{Err: err}
}
