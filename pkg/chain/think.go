package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ilkoid/wxagent/pkg/archive"
	"github.com/ilkoid/wxagent/pkg/events"
	"github.com/ilkoid/wxagent/pkg/llm"
	"github.com/ilkoid/wxagent/pkg/tools"
	"github.com/ilkoid/wxagent/pkg/tools/std"
	"github.com/ilkoid/wxagent/pkg/utils"
)

// handler выполняет один вызов инструмента: сырой JSON внутрь, строка наружу.
type handler func(ctx context.Context, argsJSON string) (string, error)

// ThinkAgent - шаблон think агента.
//
// Зависимости задаются при создании, runtime состояние живёт в ThinkState.
// Несколько Run могут идти параллельно, если у каждого своё состояние.
type ThinkAgent struct {
	provider     llm.Provider
	registry     *tools.Registry
	handlers     map[string]handler
	systemPrompt string
	model        string // Только для транскрипта
	toolTimeout  time.Duration

	mu      sync.RWMutex
	emitter events.Emitter
	archive *archive.Config
}

// Option настраивает ThinkAgent.
type Option func(*ThinkAgent)

// WithSystemPrompt заменяет системный промпт. Пустая строка игнорируется.
func WithSystemPrompt(prompt string) Option {
	return func(a *ThinkAgent) {
		if strings.TrimSpace(prompt) != "" {
			a.systemPrompt = prompt
		}
	}
}

// WithModelName задаёт имя модели для транскрипта.
func WithModelName(name string) Option {
	return func(a *ThinkAgent) { a.model = name }
}

// WithToolTimeout ограничивает время одного вызова инструмента.
func WithToolTimeout(d time.Duration) Option {
	return func(a *ThinkAgent) { a.toolTimeout = d }
}

// NewThinkAgent создаёт агента. Обработчики строятся по реестру
// один раз: инструмент, зарегистрированный позже, агенту не виден.
func NewThinkAgent(provider llm.Provider, registry *tools.Registry, opts ...Option) *ThinkAgent {
	a := &ThinkAgent{
		provider:     provider,
		registry:     registry,
		handlers:     make(map[string]handler),
		systemPrompt: DefaultSystemPrompt,
		toolTimeout:  2 * time.Minute,
	}
	for _, opt := range opts {
		opt(a)
	}

	for _, name := range registry.Names() {
		tool, err := registry.Get(name)
		if err != nil {
			continue
		}
		a.handlers[name] = tool.Execute
	}
	return a
}

// SetEmitter подключает получателя событий (TUI, CLI).
func (a *ThinkAgent) SetEmitter(emitter events.Emitter) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.emitter = emitter
}

// SetArchive включает запись транскриптов. nil - выключить.
func (a *ThinkAgent) SetArchive(cfg *archive.Config) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.archive = cfg
}

// run - runtime данные одного запуска.
type run struct {
	ctx      context.Context
	agent    *ThinkAgent
	state    *ThinkState
	emitter  events.Emitter
	recorder *archive.Recorder
}

func (r *run) emit(typ events.EventType, data events.EventData) {
	if r.emitter != nil {
		r.emitter.Emit(r.ctx, events.New(typ, data))
	}
}

// Run выполняет цикл до финального ответа модели или исчерпания бюджета.
//
// state дополняется на месте и возвращается. При ошибке модели
// возвращается частичное состояние и ошибка.
func (a *ThinkAgent) Run(ctx context.Context, state *ThinkState) (*ThinkState, error) {
	if state == nil {
		state = &ThinkState{}
	}

	a.mu.RLock()
	emitter := a.emitter
	archiveCfg := a.archive
	a.mu.RUnlock()

	r := &run{ctx: ctx, agent: a, state: state, emitter: emitter}
	if archiveCfg != nil {
		rec, err := archive.NewRecorder(*archiveCfg, archive.KindThink, state.Instruction())
		if err != nil {
			utils.Warn("Transcript disabled", "error", err)
		} else {
			r.recorder = rec
			state.RunID = rec.RunID()
		}
	}

	err := r.loop()

	final := ""
	if m, ok := state.LastAssistant(); ok {
		final = m.Content
	}
	if r.recorder != nil {
		path, ferr := r.recorder.Finalize(context.WithoutCancel(ctx), final, err)
		if ferr != nil {
			utils.Warn("Transcript not saved", "run_id", state.RunID, "error", ferr)
		}
		state.TranscriptPath = path
	}

	if err != nil {
		r.emit(events.EventError, events.ErrorData{Err: err})
		return state, err
	}
	r.emit(events.EventDone, events.MessageData{Content: final, Loops: state.Loops})
	return state, nil
}

func (r *run) loop() error {
	defs := r.agent.registry.GetDefinitions()

	for round := 0; ; round++ {
		if err := r.ctx.Err(); err != nil {
			return err
		}

		reply, err := r.think(round, defs)
		if err != nil {
			return err
		}

		if !reply.HasToolCalls() || r.state.Loops >= MaxToolLoops {
			if reply.HasToolCalls() {
				utils.Warn("Tool loop budget exhausted",
					"loops", r.state.Loops,
					"pending_calls", len(reply.ToolCalls))
			}
			r.recorder.EndRound()
			return nil
		}

		r.act(reply.ToolCalls)
		r.recorder.EndRound()
	}
}

// think отправляет историю модели и добавляет ответ.
func (r *run) think(round int, defs []tools.ToolDefinition) (llm.Message, error) {
	messages := make([]llm.Message, 0, len(r.state.Messages)+1)
	messages = append(messages, llm.SystemMessage(r.agent.systemPrompt))
	messages = append(messages, r.state.Messages...)

	r.emit(events.EventThinking, events.ThinkingData{Round: round, Messages: len(messages)})
	r.recorder.StartRound(round, r.agent.model, len(messages))

	start := time.Now()
	reply, err := r.agent.provider.Generate(r.ctx, messages, defs)
	duration := time.Since(start)
	if err != nil {
		r.recorder.RecordReply("", nil, duration, err)
		utils.Error("Model call failed", "round", round, "error", err)
		return llm.Message{}, fmt.Errorf("model call failed: %w", err)
	}

	reply.Role = llm.RoleAssistant
	for i := range reply.ToolCalls {
		if reply.ToolCalls[i].ID == "" {
			reply.ToolCalls[i].ID = "call_" + uuid.NewString()
		}
	}
	r.state.Messages = append(r.state.Messages, reply)

	calls := make([]archive.ToolCallInfo, len(reply.ToolCalls))
	for i, tc := range reply.ToolCalls {
		calls[i] = archive.ToolCallInfo{ID: tc.ID, Name: tc.Name, Args: tc.Args}
	}
	r.recorder.RecordReply(reply.Content, calls, duration, nil)

	if strings.TrimSpace(reply.Content) != "" {
		r.emit(events.EventMessage, events.MessageData{Content: reply.Content, Loops: r.state.Loops})
	}

	utils.Debug("Model replied",
		"round", round,
		"tool_calls", len(reply.ToolCalls),
		"content_len", len(reply.Content))
	return reply, nil
}

// act выполняет все вызовы раунда по порядку и добавляет наблюдение.
func (r *run) act(calls []llm.ToolCall) {
	var lines []string

	for _, tc := range calls {
		result, failed := r.execute(tc)
		r.state.Messages = append(r.state.Messages, llm.ToolMessage(tc.ID, tc.Name, result))

		if failed {
			continue
		}

		payload := utils.SafeJSON(result)
		var obs *WeatherObservation
		if tc.Name == std.GetWeatherToolName {
			o := observeWeather(payload, utils.SafeJSON(tc.Args))
			r.state.WeatherResults = append(r.state.WeatherResults, o)
			obs = &o
		}
		if line := observe(tc.Name, payload, obs); line != "" {
			lines = append(lines, line)
		}
	}

	r.state.Loops++

	if len(lines) > 0 {
		text := observationText(lines)
		r.state.Messages = append(r.state.Messages, llm.AssistantMessage(text))
		r.emit(events.EventObservation, events.ObservationData{Loops: r.state.Loops, Text: text})
	}
}

// execute вызывает обработчик. Любая ошибка превращается в {"error": ...}.
func (r *run) execute(tc llm.ToolCall) (result string, failed bool) {
	r.emit(events.EventToolCall, events.ToolCallData{CallID: tc.ID, ToolName: tc.Name, Args: tc.Args})

	start := time.Now()
	out, err := r.dispatch(tc)
	duration := time.Since(start)

	if err != nil {
		failed = true
		if errors.Is(err, ErrUnknownTool) {
			out = errorResult(fmt.Sprintf("Unknown tool '%s'", tc.Name))
		} else {
			out = errorResult(fmt.Sprintf("%s failed: %v", tc.Name, err))
		}
		utils.Warn("Tool call failed", "tool", tc.Name, "error", err)
	}

	r.recorder.RecordTool(tc.Name, tc.Args, out, duration, !failed)
	r.emit(events.EventToolResult, events.ToolResultData{
		CallID:   tc.ID,
		ToolName: tc.Name,
		Result:   out,
		IsError:  failed,
		Duration: duration,
	})
	return out, failed
}

func (r *run) dispatch(tc llm.ToolCall) (string, error) {
	h, ok := r.agent.handlers[tc.Name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, tc.Name)
	}

	args := utils.CleanJsonBlock(tc.Args)
	if strings.TrimSpace(args) == "" {
		args = "{}"
	}

	ctx := r.ctx
	if r.agent.toolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.agent.toolTimeout)
		defer cancel()
	}
	return h(ctx, args)
}

func errorResult(msg string) string {
	b, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		return `{"error":"internal error"}`
	}
	return string(b)
}
