// Package pipeline - фиксированный агент: погода → форматирование → отправка.
//
// Ветвлений и повторов нет. Ошибка этапа останавливает конвейер,
// вызывающий получает частичное состояние.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ilkoid/wxagent/pkg/archive"
	"github.com/ilkoid/wxagent/pkg/events"
	"github.com/ilkoid/wxagent/pkg/llm"
	"github.com/ilkoid/wxagent/pkg/tools"
	"github.com/ilkoid/wxagent/pkg/toolserver"
	"github.com/ilkoid/wxagent/pkg/utils"
)

// ErrEmptyLocation - конвейер запущен без локации.
var ErrEmptyLocation = errors.New("location is required")

// Этапы конвейера.
const (
	StageWeather = "get_weather"
	StageFormat  = "format_message"
	StageSend    = "send_telegram"
)

// FormatSystemPrompt - системный промпт этапа форматирования.
const FormatSystemPrompt = "You write concise weather summaries for Telegram.\n" +
	"Output ONLY the final message (no analysis, no tags). " +
	"Use at most two short lines with • bullets. Be friendly and clear."

// State - вход и рабочие данные одного запуска.
type State struct {
	// Вход
	Location string `json:"location"`
	Units    string `json:"units,omitempty"`   // metric | imperial, пусто = умолчание сервера
	ChatID   string `json:"chat_id,omitempty"` // пусто = чат по умолчанию

	// Результаты этапов
	WeatherPayload map[string]any `json:"weather_payload,omitempty"`
	MessageText    string         `json:"message_text,omitempty"`
	TelegramResult map[string]any `json:"telegram_result,omitempty"`

	// Заполняются, если включён архив
	RunID          string `json:"run_id,omitempty"`
	TranscriptPath string `json:"transcript_path,omitempty"`
}

// Pipeline - шаблон конвейера. Состояние живёт в State.
type Pipeline struct {
	caller   tools.Caller
	provider llm.Provider
	model    string

	mu      sync.RWMutex
	emitter events.Emitter
	archive *archive.Config
}

// New создаёт конвейер. model используется только в транскрипте.
func New(caller tools.Caller, provider llm.Provider, model string) *Pipeline {
	return &Pipeline{caller: caller, provider: provider, model: model}
}

// SetEmitter подключает получателя событий.
func (p *Pipeline) SetEmitter(emitter events.Emitter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.emitter = emitter
}

// SetArchive включает запись транскриптов. nil - выключить.
func (p *Pipeline) SetArchive(cfg *archive.Config) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.archive = cfg
}

type run struct {
	ctx      context.Context
	p        *Pipeline
	state    *State
	emitter  events.Emitter
	recorder *archive.Recorder
}

func (r *run) emit(typ events.EventType, data events.EventData) {
	if r.emitter != nil {
		r.emitter.Emit(r.ctx, events.New(typ, data))
	}
}

// Run выполняет три этапа по порядку.
func (p *Pipeline) Run(ctx context.Context, state *State) (*State, error) {
	if state == nil {
		state = &State{}
	}

	p.mu.RLock()
	r := &run{ctx: ctx, p: p, state: state, emitter: p.emitter}
	archiveCfg := p.archive
	p.mu.RUnlock()

	if archiveCfg != nil {
		rec, err := archive.NewRecorder(*archiveCfg, archive.KindPipeline, state.Location)
		if err != nil {
			utils.Warn("Transcript disabled", "error", err)
		} else {
			r.recorder = rec
			state.RunID = rec.RunID()
		}
	}

	err := r.stages()

	if r.recorder != nil {
		path, ferr := r.recorder.Finalize(context.WithoutCancel(ctx), state.MessageText, err)
		if ferr != nil {
			utils.Warn("Transcript not saved", "run_id", state.RunID, "error", ferr)
		}
		state.TranscriptPath = path
	}

	if err != nil {
		r.emit(events.EventError, events.ErrorData{Err: err})
		return state, err
	}
	r.emit(events.EventDone, events.MessageData{Content: state.MessageText})
	return state, nil
}

func (r *run) stages() error {
	if strings.TrimSpace(r.state.Location) == "" {
		return ErrEmptyLocation
	}
	if err := r.weather(); err != nil {
		return fmt.Errorf("%s: %w", StageWeather, err)
	}
	if err := r.format(); err != nil {
		return fmt.Errorf("%s: %w", StageFormat, err)
	}
	if err := r.send(); err != nil {
		return fmt.Errorf("%s: %w", StageSend, err)
	}
	return nil
}

// callTool вызывает инструмент сервера с событиями и записью в транскрипт.
func (r *run) callTool(server, tool string, args map[string]any) (map[string]any, error) {
	name := server + "." + tool
	argsJSON := utils.ToJSON(args)
	r.emit(events.EventToolCall, events.ToolCallData{ToolName: name, Args: argsJSON})

	start := time.Now()
	payload, err := r.p.caller.CallJSON(r.ctx, server, tool, args)
	d := time.Since(start)

	result := utils.ToJSON(payload)
	if err != nil {
		result = err.Error()
	}
	r.recorder.RecordTool(name, argsJSON, result, d, err == nil)
	r.emit(events.EventToolResult, events.ToolResultData{ToolName: name, Result: result, IsError: err != nil, Duration: d})
	return payload, err
}

func (r *run) weather() error {
	args := map[string]any{"location": r.state.Location}
	if u := strings.TrimSpace(r.state.Units); u != "" {
		args["units"] = u
	}

	payload, err := r.callTool(toolserver.WeatherServerName, toolserver.ToolGetCurrentWeather, args)
	if err != nil {
		return err
	}
	r.state.WeatherPayload = payload
	return nil
}

func (r *run) format() error {
	messages := FormatMessages(r.state.WeatherPayload, r.state.Location)

	r.emit(events.EventThinking, events.ThinkingData{Messages: len(messages)})
	r.recorder.StartRound(0, r.p.model, len(messages))

	start := time.Now()
	reply, err := r.p.provider.Generate(r.ctx, messages)
	d := time.Since(start)
	r.recorder.RecordReply(reply.Content, nil, d, err)
	r.recorder.EndRound()
	if err != nil {
		return fmt.Errorf("model call failed: %w", err)
	}

	r.state.MessageText = utils.FormatToTwoBullets(utils.StripThinkBlocks(reply.Content))
	r.emit(events.EventMessage, events.MessageData{Content: r.state.MessageText})
	return nil
}

func (r *run) send() error {
	args := map[string]any{"text": r.state.MessageText}
	if id := strings.TrimSpace(r.state.ChatID); id != "" {
		args["chat_id"] = id
	}

	payload, err := r.callTool(toolserver.TelegramServerName, toolserver.ToolSendMessage, args)
	if err != nil {
		return err
	}
	r.state.TelegramResult = payload
	return nil
}

// FormatMessages строит запрос этапа форматирования из ответа weather сервера.
//
// Отсутствующие значения выводятся как "?".
func FormatMessages(payload map[string]any, location string) []llm.Message {
	loc, _ := payload["resolved_location"].(string)
	if loc == "" {
		loc = location
	}
	w, _ := payload["weather"].(map[string]any)
	units, _ := w["units"].(map[string]any)
	tempUnit := str(units["temperature"])
	humUnit := str(units["humidity"])
	windUnit := str(units["wind_speed"])

	user := fmt.Sprintf("Location: %s\nTemperature: %s%s\nFeels Like: %s%s\nHumidity: %s%s\nWind: %s %s\nTime: %s",
		loc,
		value(w["temperature"]), tempUnit,
		value(w["apparent_temperature"]), tempUnit,
		value(w["humidity"]), humUnit,
		value(w["wind_speed"]), windUnit,
		value(w["time"]))

	return []llm.Message{
		llm.SystemMessage(FormatSystemPrompt),
		llm.UserMessage(user),
	}
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func value(v any) string {
	switch x := v.(type) {
	case nil:
		return "?"
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		if x == "" {
			return "?"
		}
		return x
	default:
		return fmt.Sprint(x)
	}
}
