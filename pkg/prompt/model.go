// Структуры данных - описывает формат YAML файла промпта.
package prompt

import "text/template"

// PromptFile описывает структуру YAML-файла с промптом классификации.
type PromptFile struct {
	Config   PromptConfig `yaml:"config"`
	Messages []Message    `yaml:"messages"`

	templates []*template.Template // Скомпилированные Messages[i].Content
}

// PromptConfig - переопределения параметров модели для промпта.
// Нулевые значения не переопределяют секцию llm конфигурации.
type PromptConfig struct {
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// Message - одно сообщение в чате
type Message struct {
	Role    string `yaml:"role"`    // system, user, assistant
	Content string `yaml:"content"` // Шаблон с {{.Variables}}
}

// Data — данные для рендера шаблонов.
type Data struct {
	FileName   string
	Content    string
	Categories []Category
}

// Category — категория с описанием в порядке конфигурации.
type Category struct {
	Name      string
	Guideline string
}
