package ui

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ilkoid/wxagent/pkg/chain"
	"github.com/ilkoid/wxagent/pkg/config"
	"github.com/ilkoid/wxagent/pkg/events"
	"github.com/ilkoid/wxagent/pkg/pipeline"
)

// Task - то, что экран запускает по Enter.
type Task interface {
	Title() string
	Placeholder() string
	// Option - текущее значение переключаемой настройки для строки статуса.
	// Пусто - настройки нет.
	Option() string
	CycleOption()
	Execute(ctx context.Context, input string, emitter events.Emitter) Outcome
}

// Outcome - итог одного запуска.
type Outcome struct {
	Preview string // Итоговый текст для пользователя
	State   string // Итоговое состояние (JSON)
	Err     error
}

// ThinkRunner - think агент (chain.ThinkAgent).
type ThinkRunner interface {
	Run(ctx context.Context, state *chain.ThinkState) (*chain.ThinkState, error)
	SetEmitter(emitter events.Emitter)
}

// PipelineRunner - конвейер (pipeline.Pipeline).
type PipelineRunner interface {
	Run(ctx context.Context, state *pipeline.State) (*pipeline.State, error)
	SetEmitter(emitter events.Emitter)
}

// ThinkTask - свободная инструкция для think агента.
type ThinkTask struct {
	agent  ThinkRunner
	chatID string
}

// NewThinkTask создаёт задачу. chatID - необязательное переопределение чата.
func NewThinkTask(agent ThinkRunner, chatID string) *ThinkTask {
	return &ThinkTask{agent: agent, chatID: strings.TrimSpace(chatID)}
}

func (t *ThinkTask) Title() string { return "Agent Think: Weather → Telegram" }

func (t *ThinkTask) Placeholder() string {
	return "Get the weather for Paris and Berlin. Send a single concise Telegram message."
}

func (t *ThinkTask) Option() string {
	if t.chatID == "" {
		return ""
	}
	return "chat_id: " + t.chatID
}

// CycleOption - у think задачи переключаемой настройки нет.
func (t *ThinkTask) CycleOption() {}

func (t *ThinkTask) Execute(ctx context.Context, input string, emitter events.Emitter) Outcome {
	t.agent.SetEmitter(emitter)
	defer t.agent.SetEmitter(nil)

	result, err := t.agent.Run(ctx, chain.NewThinkState(input, t.chatID))

	out := Outcome{Err: err}
	if result == nil {
		return out
	}
	if msg, ok := result.LastAssistant(); ok {
		out.Preview = msg.Content
	}
	out.State = ThinkStateJSON(result)
	return out
}

// ThinkStateJSON - итоговое состояние, где сообщения заменены списком ролей.
func ThinkStateJSON(s *chain.ThinkState) string {
	view := struct {
		Messages       []string                   `json:"messages"`
		WeatherResults []chain.WeatherObservation `json:"weather_results"`
		Loops          int                        `json:"loops"`
		RunID          string                     `json:"run_id,omitempty"`
		TranscriptPath string                     `json:"transcript_path,omitempty"`
	}{
		WeatherResults: s.WeatherResults,
		Loops:          s.Loops,
		RunID:          s.RunID,
		TranscriptPath: s.TranscriptPath,
	}
	for _, r := range s.Roles() {
		view.Messages = append(view.Messages, string(r))
	}
	return indentJSON(view)
}

// unitChoices - "" означает единицы из конфигурации.
var unitChoices = []string{"", config.UnitsMetric, config.UnitsImperial}

// PipelineTask - погода для одной локации через фиксированный конвейер.
type PipelineTask struct {
	pipe  PipelineRunner
	units int
}

// NewPipelineTask создаёт задачу с начальными единицами ("" - из конфигурации).
func NewPipelineTask(pipe PipelineRunner, units string) *PipelineTask {
	t := &PipelineTask{pipe: pipe}
	for i, u := range unitChoices {
		if u == units {
			t.units = i
		}
	}
	return t
}

func (t *PipelineTask) Title() string { return "Weather → Telegram Agent" }

func (t *PipelineTask) Placeholder() string { return "Paris, FR" }

func (t *PipelineTask) Option() string {
	if u := unitChoices[t.units]; u != "" {
		return "Units: " + u
	}
	return "Units: default"
}

// CycleOption переключает default → metric → imperial.
func (t *PipelineTask) CycleOption() {
	t.units = (t.units + 1) % len(unitChoices)
}

// Units возвращает выбранные единицы ("" - из конфигурации).
func (t *PipelineTask) Units() string {
	return unitChoices[t.units]
}

func (t *PipelineTask) Execute(ctx context.Context, input string, emitter events.Emitter) Outcome {
	t.pipe.SetEmitter(emitter)
	defer t.pipe.SetEmitter(nil)

	result, err := t.pipe.Run(ctx, &pipeline.State{
		Location: strings.TrimSpace(input),
		Units:    t.Units(),
	})

	out := Outcome{Err: err}
	if result != nil {
		out.Preview = result.MessageText
		out.State = indentJSON(result)
	}
	return out
}

func indentJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ""
	}
	return string(data)
}
