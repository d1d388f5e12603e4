package classifier

import (
	"fmt"
	"strings"

	"github.com/ilkoid/mastication/pkg/config"
	"github.com/sashabaranov/go-openai/jsonschema"
)

// BuildPrompt собирает пользовательское сообщение задачи классификации.
//
// Структура:
//  1. Заголовок CLASSIFICATION TASK
//  2. Список категорий с описаниями (в порядке конфигурации)
//  3. Содержимое файла
//  4. Требования к формату ответа
func BuildPrompt(cls config.ClassificationConfig, fileName, content string) string {
	var b strings.Builder

	b.WriteString("CLASSIFICATION TASK\n\n")
	b.WriteString("Analyze the following content and classify it into one of these categories:\n\n")

	for _, cat := range cls.Categories {
		fmt.Fprintf(&b, "- %s: %s\n", cat, cls.Guideline(cat))
	}

	fmt.Fprintf(&b, "\nCONTENT TO CLASSIFY (from file: %s):\n\n", fileName)
	b.WriteString(content)
	b.WriteString("\n\n")

	b.WriteString(`RESPONSE FORMAT REQUIREMENTS:
You MUST respond with a valid JSON object using this exact structure:
{
    "category": "string",           // The primary category from the list above
    "confidence": number,           // Confidence score from 0.0 to 1.0
    "subcategory": "string|null",   // Optional more specific classification
    "summary": "string",            // Brief 1-2 sentence summary of the content
    "tags": ["array", "of", "tags"] // Array of relevant tags/keywords
}

IMPORTANT: Only output the JSON object, nothing else. Do not include any explanatory text.
`)

	return b.String()
}

// ResponseSchema возвращает строгую JSON-схему ответа для response_format=json_schema.
//
// category ограничена enum'ом сконфигурированных категорий. subcategory
// описана строкой: пустая строка трактуется как null при разборе.
func ResponseSchema(categories []string) *jsonschema.Definition {
	return &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"category": {
				Type:        jsonschema.String,
				Enum:        categories,
				Description: "The primary category",
			},
			"confidence": {
				Type:        jsonschema.Number,
				Description: "Confidence score from 0.0 to 1.0",
			},
			"subcategory": {
				Type:        jsonschema.String,
				Description: "More specific classification, empty string if none",
			},
			"summary": {
				Type:        jsonschema.String,
				Description: "Brief 1-2 sentence summary of the content",
			},
			"tags": {
				Type:  jsonschema.Array,
				Items: &jsonschema.Definition{Type: jsonschema.String},
			},
		},
		Required:             []string{"category", "confidence", "subcategory", "summary", "tags"},
		AdditionalProperties: false,
	}
}
