package debug

import (
	"context"
	"time"

	"github.com/ilkoid/mastication/pkg/llm"
	"github.com/ilkoid/mastication/pkg/utils"
)

// RecordingProvider оборачивает llm.Provider и сохраняет каждый вызов.
//
// Ошибка записи трейса только логируется и не влияет на результат вызова.
type RecordingProvider struct {
	next     llm.Provider
	recorder *Recorder
	now      func() time.Time
}

var _ llm.Provider = (*RecordingProvider)(nil)

// WrapProvider возвращает провайдера, который пишет трейсы в recorder.
func WrapProvider(next llm.Provider, recorder *Recorder) *RecordingProvider {
	return &RecordingProvider{next: next, recorder: recorder, now: time.Now}
}

// Generate вызывает вложенного провайдера и записывает трейс.
func (p *RecordingProvider) Generate(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (llm.Message, error) {
	o := llm.ApplyOptions(llm.GenerateOptions{}, opts...)
	start := p.now()

	resp, err := p.next.Generate(ctx, messages, opts...)

	trace := Trace{
		Timestamp: start,
		Duration:  p.now().Sub(start).Milliseconds(),
		Request: LLMRequest{
			Model:       o.Model,
			Temperature: o.Temperature,
			MaxTokens:   o.MaxTokens,
			Format:      o.Format,
			Messages:    make([]Message, len(messages)),
		},
		Response: LLMResponse{Content: resp.Content},
	}
	for i, m := range messages {
		trace.Request.Messages[i] = Message{Role: string(m.Role), Content: m.Content}
	}
	if err != nil {
		trace.Error = err.Error()
	}

	if path, saveErr := p.recorder.Save(trace); saveErr != nil {
		utils.Warn("Failed to save LLM trace", "error", saveErr)
	} else {
		utils.Debug("LLM trace saved", "path", path)
	}

	return resp, err
}
