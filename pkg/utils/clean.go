// Package utils предоставляет вспомогательные функции для обработки ответов LLM.
package utils

import (
	"strings"
)

// CleanJsonBlock снимает одну markdown-обёртку вокруг JSON.
//
// LLM часто возвращает JSON обёрнутым в кодовый блок:
//
//	```json
//	{"key": "value"}
//	```
//
// Снимается только одна открывающая и одна закрывающая ограда,
// дальнейшего "ремонта" ответа не делается.
//
// Примеры:
//
//	```json {"a": 1} ``` → {"a": 1}
//	``` {"a": 1} ```     → {"a": 1}
//	{"a": 1}             → {"a": 1}
func CleanJsonBlock(s string) string {
	s = strings.TrimSpace(s)

	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")

	// Убираем язык блока (json, JSON, Json) до первого перевода строки
	if i := strings.IndexAny(s, "\n{["); i >= 0 {
		lang := strings.TrimSpace(s[:i])
		if strings.EqualFold(lang, "json") || lang == "" {
			s = s[i:]
		}
	}

	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")

	return strings.TrimSpace(s)
}
