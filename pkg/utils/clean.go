package utils

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

var (
	thinkBlockRe    = regexp.MustCompile(`(?is)<\s*think\s*>.*?<\s*/\s*think\s*>`)
	trailingSpaceRe = regexp.MustCompile(`[ \t]+\n`)
)

// BulletPrefix - маркер строки в сводке для Telegram.
const BulletPrefix = "• "

// CleanJsonBlock удаляет markdown-обёртку вокруг JSON.
//
// Примеры:
//
//	```json {"a": 1} ``` → {"a": 1}
//	``` {"a": 1} ``` → {"a": 1}
func CleanJsonBlock(s string) string {
	s = strings.TrimSpace(s)

	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```Json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	return strings.TrimSpace(s)
}

// StripThinkBlocks вырезает блоки <think>...</think> (reasoning модели)
// и хвостовые пробелы строк.
func StripThinkBlocks(s string) string {
	s = thinkBlockRe.ReplaceAllString(s, "")
	s = trailingSpaceRe.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}

// FormatToTwoBullets оставляет не больше двух непустых строк
// и добавляет маркер "• " тем, у которых его нет.
func FormatToTwoBullets(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "•") {
			line = BulletPrefix + line
		}
		lines = append(lines, line)
		if len(lines) == 2 {
			break
		}
	}
	return strings.Join(lines, "\n")
}

// SafeJSON разбирает JSON объект из текста.
// Если текст не является JSON объектом, возвращает {"text": raw}.
func SafeJSON(raw string) map[string]any {
	var payload map[string]any
	if err := json.Unmarshal([]byte(CleanJsonBlock(raw)), &payload); err != nil || payload == nil {
		return map[string]any{"text": raw}
	}
	return payload
}

// Truncate обрезает строку до limit рун, добавляя многоточие.
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if limit <= 0 || len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}

// ToJSON сериализует v в компактный JSON без экранирования HTML.
// При ошибке возвращает "null".
func ToJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "null"
	}
	return strings.TrimRight(buf.String(), "\n")
}
