package classifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ilkoid/mastication/pkg/utils"
)

// Result — провалидированный ответ модели.
//
// Либо все поля разобраны и соответствуют схеме, либо Parse возвращает
// ошибку: частично валидного результата не бывает.
type Result struct {
	Category    string   `json:"category"`
	Confidence  float64  `json:"confidence"`
	Subcategory *string  `json:"subcategory"`
	Summary     string   `json:"summary"`
	Tags        []string `json:"tags"`
}

// requiredFields — поля, без которых ответ отклоняется.
var requiredFields = []string{"category", "confidence", "summary", "tags"}

// Parse разбирает текст ответа модели и проверяет его против набора категорий.
//
// Снимается одна markdown-ограда (```json ... ```), больше никакого ремонта.
// Возвращает *ResponseFormatError или *InvalidCategoryError.
func Parse(raw string, categories []string) (Result, error) {
	text := utils.CleanJsonBlock(raw)
	if text == "" {
		return Result{}, &ResponseFormatError{Reason: "empty response", Raw: raw}
	}

	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var fields map[string]json.RawMessage
	if err := dec.Decode(&fields); err != nil {
		return Result{}, &ResponseFormatError{Reason: "response is not a JSON object", Raw: raw, Err: err}
	}
	if dec.More() {
		return Result{}, &ResponseFormatError{Reason: "trailing data after JSON object", Raw: raw}
	}
	if fields == nil {
		return Result{}, &ResponseFormatError{Reason: "response is null", Raw: raw}
	}

	for _, name := range requiredFields {
		if _, ok := fields[name]; !ok {
			return Result{}, &ResponseFormatError{Reason: "missing required field: " + name, Raw: raw}
		}
	}

	var res Result

	if err := decodeStrict(fields["category"], &res.Category); err != nil {
		return Result{}, &ResponseFormatError{Reason: "category must be a string", Raw: raw, Err: err}
	}

	var confidence json.Number
	if bytes.HasPrefix(bytes.TrimSpace(fields["confidence"]), []byte(`"`)) {
		return Result{}, &ResponseFormatError{Reason: "confidence must be a number", Raw: raw}
	}
	if err := decodeStrict(fields["confidence"], &confidence); err != nil {
		return Result{}, &ResponseFormatError{Reason: "confidence must be a number", Raw: raw, Err: err}
	}
	c, err := confidence.Float64()
	if err != nil {
		return Result{}, &ResponseFormatError{Reason: "confidence must be a number", Raw: raw, Err: err}
	}
	res.Confidence = c

	if err := decodeStrict(fields["summary"], &res.Summary); err != nil {
		return Result{}, &ResponseFormatError{Reason: "summary must be a string", Raw: raw, Err: err}
	}

	if isNull(fields["tags"]) {
		return Result{}, &ResponseFormatError{Reason: "tags must be an array of strings", Raw: raw}
	}
	if err := decodeStrict(fields["tags"], &res.Tags); err != nil {
		return Result{}, &ResponseFormatError{Reason: "tags must be an array of strings", Raw: raw, Err: err}
	}
	if res.Tags == nil {
		res.Tags = []string{}
	}

	if sub, ok := fields["subcategory"]; ok && !isNull(sub) {
		var s string
		if err := decodeStrict(sub, &s); err != nil {
			return Result{}, &ResponseFormatError{Reason: "subcategory must be a string or null", Raw: raw, Err: err}
		}
		if strings.TrimSpace(s) != "" {
			res.Subcategory = &s
		}
	}

	if !contains(categories, res.Category) {
		return Result{}, &InvalidCategoryError{Category: res.Category, Allowed: categories}
	}

	return res, nil
}

// ConfidenceInRange сообщает, лежит ли уверенность в рекомендованном [0, 1].
// Значения вне диапазона не отклоняются, а только логируются.
func (r Result) ConfidenceInRange() bool {
	return r.Confidence >= 0 && r.Confidence <= 1
}

// decodeStrict декодирует одно поле, отклоняя null и несовпадение типов.
func decodeStrict(raw json.RawMessage, dst any) error {
	if isNull(raw) {
		return fmt.Errorf("value is null")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(dst)
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null"
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
