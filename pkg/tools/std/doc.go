// Package std содержит инструменты агента поверх MCP серверов.
//
// Инструменты не ходят в сеть сами: вызов уходит в tools.Caller
// (mcpbridge.Manager), ответ сервера возвращается модели как JSON.
package std

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// marshalResult сериализует ответ инструмента без экранирования HTML.
func marshalResult(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
