// Загрузка и Рендер - чтение файла и text/template.

package prompt

import (
	"bytes"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Load загружает YAML файл промпта, проверяет роли и компилирует шаблоны.
//
// Ошибки шаблонов обнаруживаются при загрузке: пробный рендер выполняется
// на данных-примерах.
func Load(path string) (*PromptFile, error) {
	// 1. Проверяем наличие
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("prompt file not found: %s", path)
	}

	// 2. Читаем байты
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read error: %w", err)
	}

	return Parse(data)
}

// Parse разбирает YAML промпта из байтов.
func Parse(data []byte) (*PromptFile, error) {
	var pf PromptFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("yaml parse error: %w", err)
	}

	if len(pf.Messages) == 0 {
		return nil, fmt.Errorf("prompt has no messages")
	}

	hasUser := false
	pf.templates = make([]*template.Template, len(pf.Messages))
	for i, msg := range pf.Messages {
		switch msg.Role {
		case "user":
			hasUser = true
		case "system", "assistant":
		default:
			return nil, fmt.Errorf("message #%d: unknown role %q", i, msg.Role)
		}

		tmpl, err := template.New(fmt.Sprintf("msg%d", i)).Option("missingkey=error").Parse(msg.Content)
		if err != nil {
			return nil, fmt.Errorf("template parse error in message #%d (%s): %w", i, msg.Role, err)
		}
		pf.templates[i] = tmpl
	}
	if !hasUser {
		return nil, fmt.Errorf("prompt has no user message")
	}

	sample := Data{
		FileName:   "sample.txt",
		Content:    "sample",
		Categories: []Category{{Name: "misc", Guideline: "sample"}},
	}
	if _, err := pf.RenderMessages(sample); err != nil {
		return nil, err
	}

	return &pf, nil
}

// RenderMessages возвращает готовые сообщения, где все {{.Field}}
// заменены на значения из data.
func (pf *PromptFile) RenderMessages(data Data) ([]Message, error) {
	rendered := make([]Message, len(pf.Messages))

	for i, msg := range pf.Messages {
		var tmpl *template.Template
		if i < len(pf.templates) {
			tmpl = pf.templates[i]
		}
		if tmpl == nil {
			var err error
			tmpl, err = template.New("msg").Parse(msg.Content)
			if err != nil {
				return nil, fmt.Errorf("template parse error in message #%d (%s): %w", i, msg.Role, err)
			}
		}

		// Рендерим в буфер
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("template execute error in message #%d: %w", i, err)
		}

		rendered[i] = Message{
			Role:    msg.Role,
			Content: buf.String(),
		}
	}

	return rendered, nil
}
