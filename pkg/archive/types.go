// Package archive сохраняет транскрипты запусков агентов в JSON.
//
// Транскрипт пишется в локальную директорию и, если настроено,
// дублируется в S3 совместимое хранилище.
package archive

import "time"

// Виды запусков.
const (
	KindThink    = "think"
	KindPipeline = "pipeline"
)

// Transcript - полный трейс одного запуска.
type Transcript struct {
	RunID       string    `json:"run_id"`
	Kind        string    `json:"kind"`
	Timestamp   time.Time `json:"timestamp"`
	Instruction string    `json:"instruction"`
	Duration    int64     `json:"duration_ms"`
	Rounds      []Round   `json:"rounds"`
	Summary     Summary   `json:"summary"`
	FinalReply  string    `json:"final_reply,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// Round - один запрос к модели и инструменты, которые он вызвал.
type Round struct {
	Number   int             `json:"round"`
	Duration int64           `json:"duration_ms"`
	Request  ModelRequest    `json:"model_request"`
	Reply    ModelReply      `json:"model_reply"`
	Tools    []ToolExecution `json:"tools,omitempty"`

	modelCall bool
}

// ModelRequest - параметры запроса к модели.
type ModelRequest struct {
	Model         string `json:"model,omitempty"`
	MessagesCount int    `json:"messages_count"`
}

// ModelReply - ответ модели.
type ModelReply struct {
	Content   string         `json:"content,omitempty"`
	ToolCalls []ToolCallInfo `json:"tool_calls,omitempty"`
	Duration  int64          `json:"duration_ms"`
	Error     string         `json:"error,omitempty"`
}

// ToolCallInfo - вызов инструмента, предложенный моделью.
type ToolCallInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Args string `json:"args,omitempty"`
}

// ToolExecution - выполнение одного инструмента.
type ToolExecution struct {
	Name      string `json:"name"`
	Args      string `json:"args,omitempty"`
	Result    string `json:"result,omitempty"`
	Truncated bool   `json:"result_truncated,omitempty"`
	Duration  int64  `json:"duration_ms"`
	Success   bool   `json:"success"`
}

// Summary - агрегаты по запуску.
type Summary struct {
	ModelCalls    int      `json:"model_calls"`
	ToolCalls     int      `json:"tool_calls"`
	ModelDuration int64    `json:"model_duration_ms"`
	ToolDuration  int64    `json:"tool_duration_ms"`
	ToolsUsed     []string `json:"tools_used,omitempty"`
	Errors        []string `json:"errors,omitempty"`
}
