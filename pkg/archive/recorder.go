package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ilkoid/wxagent/pkg/utils"
)

// Uploader выгружает готовый транскрипт. Реализуется S3Uploader.
type Uploader interface {
	Upload(ctx context.Context, name string, data []byte) error
}

// Config - настройки Recorder.
type Config struct {
	// Dir - директория для JSON файлов. Пусто = текущая.
	Dir string

	// MaxResultSize ограничивает размер результата инструмента в байтах.
	// 0 - без ограничений.
	MaxResultSize int

	// Uploader - опциональная выгрузка после записи файла.
	Uploader Uploader
}

// Recorder накапливает транскрипт одного запуска.
//
// Потокобезопасен. Nil *Recorder допустим: все методы ничего не делают.
type Recorder struct {
	mu sync.Mutex

	cfg     Config
	log     Transcript
	current *Round
	started time.Time
	used    map[string]struct{}
	errors  []string
}

// NewRecorder создаёт рекордер для запуска вида kind.
func NewRecorder(cfg Config, kind, instruction string) (*Recorder, error) {
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create archive directory: %w", err)
		}
	}

	now := time.Now()
	return &Recorder{
		cfg: cfg,
		log: Transcript{
			RunID:       NewRunID(kind, now),
			Kind:        kind,
			Timestamp:   now,
			Instruction: instruction,
		},
		started: now,
		used:    make(map[string]struct{}),
	}, nil
}

// NewRunID - "<kind>_20060102_150405_<8 hex>".
func NewRunID(kind string, t time.Time) string {
	return fmt.Sprintf("%s_%s_%s", kind, t.Format("20060102_150405"), uuid.NewString()[:8])
}

// RunID возвращает идентификатор запуска.
func (r *Recorder) RunID() string {
	if r == nil {
		return ""
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.log.RunID
}

// StartRound начинает новый раунд. Незавершённый раунд закрывается.
func (r *Recorder) StartRound(num int, model string, messages int) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closeRoundLocked()
	r.current = &Round{
		Number:    num,
		Request:   ModelRequest{Model: model, MessagesCount: messages},
		modelCall: true,
	}
}

// RecordReply записывает ответ модели (или ошибку) текущего раунда.
func (r *Recorder) RecordReply(content string, calls []ToolCallInfo, d time.Duration, err error) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == nil {
		return
	}
	r.current.Reply = ModelReply{Content: content, ToolCalls: calls, Duration: d.Milliseconds()}
	if err != nil {
		r.current.Reply.Error = err.Error()
		r.errors = append(r.errors, "model: "+err.Error())
	}
}

// RecordTool записывает выполнение инструмента в текущем раунде.
func (r *Recorder) RecordTool(name, args, result string, d time.Duration, success bool) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == nil {
		r.current = &Round{Number: len(r.log.Rounds)}
	}

	exec := ToolExecution{
		Name:     name,
		Args:     args,
		Result:   result,
		Duration: d.Milliseconds(),
		Success:  success,
	}
	if max := r.cfg.MaxResultSize; max > 0 && len(exec.Result) > max {
		exec.Result = exec.Result[:max] + "... (truncated)"
		exec.Truncated = true
	}

	r.current.Tools = append(r.current.Tools, exec)
	r.used[name] = struct{}{}
	if !success {
		r.errors = append(r.errors, fmt.Sprintf("tool %s: %s", name, utils.Truncate(result, 200)))
	}
}

// EndRound закрывает текущий раунд.
func (r *Recorder) EndRound() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeRoundLocked()
}

func (r *Recorder) closeRoundLocked() {
	if r.current == nil {
		return
	}
	r.current.Duration = r.current.Reply.Duration
	for _, t := range r.current.Tools {
		r.current.Duration += t.Duration
	}
	r.log.Rounds = append(r.log.Rounds, *r.current)
	r.current = nil
}

// Finalize записывает транскрипт в файл и выгружает его, если задан Uploader.
//
// Ошибка выгрузки логируется и не возвращается: файл уже сохранён.
func (r *Recorder) Finalize(ctx context.Context, finalReply string, runErr error) (string, error) {
	if r == nil {
		return "", nil
	}
	r.mu.Lock()
	r.closeRoundLocked()

	r.log.FinalReply = finalReply
	r.log.Duration = time.Since(r.started).Milliseconds()
	if runErr != nil {
		r.log.Error = runErr.Error()
	}
	r.buildSummaryLocked()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	err := enc.Encode(r.log)
	name := r.log.RunID + ".json"
	r.mu.Unlock()

	if err != nil {
		return "", fmt.Errorf("failed to marshal transcript: %w", err)
	}

	path := filepath.Join(r.cfg.Dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("failed to write transcript: %w", err)
	}

	if r.cfg.Uploader != nil {
		if err := r.cfg.Uploader.Upload(ctx, name, buf.Bytes()); err != nil {
			utils.Warn("Transcript upload failed", "run_id", r.log.RunID, "error", err)
		}
	}

	utils.Debug("Transcript saved", "path", path)
	return path, nil
}

func (r *Recorder) buildSummaryLocked() {
	s := Summary{Errors: r.errors}
	for name := range r.used {
		s.ToolsUsed = append(s.ToolsUsed, name)
	}
	sort.Strings(s.ToolsUsed)

	for _, round := range r.log.Rounds {
		if round.modelCall {
			s.ModelCalls++
		}
		s.ModelDuration += round.Reply.Duration
		for _, t := range round.Tools {
			s.ToolCalls++
			s.ToolDuration += t.Duration
		}
	}
	r.log.Summary = s
}
