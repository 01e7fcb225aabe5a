package events

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilkoid/wxagent/pkg/utils"
)

// previewLimit - длина превью аргументов и результатов.
const previewLimit = 160

// Describe возвращает однострочное описание события для журнала.
//
// Пустая строка - событие не стоит показывать.
func Describe(e Event) string {
	switch d := e.Data.(type) {
	case ThinkingData:
		return fmt.Sprintf("thinking (round %d, %d messages)", d.Round+1, d.Messages)
	case ToolCallData:
		return fmt.Sprintf("→ %s %s", d.ToolName, utils.Truncate(oneLine(d.Args), previewLimit))
	case ToolResultData:
		status := "ok"
		if d.IsError {
			status = "error"
		}
		return fmt.Sprintf("← %s [%s, %s] %s", d.ToolName, status, d.Duration.Round(time.Millisecond), utils.Truncate(oneLine(d.Result), previewLimit))
	case ObservationData:
		return d.Text
	case MessageData:
		if strings.TrimSpace(d.Content) == "" {
			return ""
		}
		return d.Content
	case ErrorData:
		if d.Err == nil {
			return "error"
		}
		return "error: " + d.Err.Error()
	default:
		return string(e.Type)
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
