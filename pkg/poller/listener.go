// Package poller - Telegram listener: long polling через MCP сервер telegram,
// каждое входящее сообщение запускает think агента.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ilkoid/wxagent/pkg/chain"
	"github.com/ilkoid/wxagent/pkg/telegram"
	"github.com/ilkoid/wxagent/pkg/tools"
	"github.com/ilkoid/wxagent/pkg/toolserver"
	"github.com/ilkoid/wxagent/pkg/utils"
)

// Runner - think агент (chain.ThinkAgent).
type Runner interface {
	Run(ctx context.Context, state *chain.ThinkState) (*chain.ThinkState, error)
}

// Options - параметры listener.
type Options struct {
	Timeout      int           // Long polling, секунды
	IdleSleep    time.Duration // Пауза после пустого или неудачного опроса
	AgentTimeout time.Duration // Таймаут обработки одного сообщения, 0 = без ограничения
}

// Listener опрашивает getUpdates по одному запросу за раз.
//
// Между итерациями сохраняется только offset.
type Listener struct {
	caller tools.Caller
	agent  Runner
	store  OffsetStore
	opts   Options

	// sleep подменяется в тестах
	sleep func(ctx context.Context, d time.Duration) error
}

// NewListener создаёт listener. nil store - offset в памяти.
func NewListener(caller tools.Caller, agent Runner, store OffsetStore, opts Options) *Listener {
	if store == nil {
		store = NewMemoryStore()
	}
	if opts.Timeout < 0 {
		opts.Timeout = 0
	}
	return &Listener{
		caller: caller,
		agent:  agent,
		store:  store,
		opts:   opts,
		sleep:  sleepCtx,
	}
}

// Run опрашивает Telegram до отмены ctx. Возвращает ctx.Err().
func (l *Listener) Run(ctx context.Context) error {
	utils.Info("Starting Telegram listener",
		"timeout", l.opts.Timeout,
		"idle_sleep", l.opts.IdleSleep)

	for {
		handled, err := l.PollOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			utils.Error("Failed to fetch Telegram updates", "error", err)
		}
		if err != nil || handled == 0 {
			if err := l.sleep(ctx, l.opts.IdleSleep); err != nil {
				return err
			}
		}
	}
}

// PollOnce выполняет один getUpdates и обрабатывает полученные обновления.
//
// Возвращает число полученных обновлений. Ошибка обработки одного
// обновления логируется и не прерывает остальные.
func (l *Listener) PollOnce(ctx context.Context) (int, error) {
	args := map[string]any{"timeout": l.opts.Timeout}

	offset, hasOffset, err := l.store.Load(ctx)
	if err != nil {
		return 0, err
	}
	if hasOffset {
		args["offset"] = offset
	}

	payload, err := l.caller.CallJSON(ctx, toolserver.TelegramServerName, toolserver.ToolGetUpdates, args)
	if err != nil {
		return 0, err
	}

	resp, err := telegram.ParseUpdates([]byte(utils.ToJSON(payload)))
	if err != nil {
		return 0, fmt.Errorf("parse updates: %w", err)
	}
	if !resp.OK {
		return 0, fmt.Errorf("telegram getUpdates returned error payload: %s", resp.Description)
	}

	for _, u := range resp.Result {
		if next := u.UpdateID + 1; u.UpdateID > 0 && (!hasOffset || next > offset) {
			offset, hasOffset = next, true
			if err := l.store.Save(ctx, offset); err != nil {
				utils.Warn("Failed to persist offset", "offset", offset, "error", err)
			}
		}

		if err := l.process(ctx, u); err != nil {
			if ctx.Err() != nil {
				return len(resp.Result), ctx.Err()
			}
			utils.Error("Error while processing update", "update_id", u.UpdateID, "error", err)
		}
	}
	return len(resp.Result), nil
}

// ErrSkipped - обновление не требует ответа (бот, нет текста, нет чата).
var ErrSkipped = errors.New("update skipped")

// process запускает агента для одного обновления.
func (l *Listener) process(ctx context.Context, u telegram.Update) error {
	state, err := StateForUpdate(u)
	if errors.Is(err, ErrSkipped) {
		utils.Debug("Update skipped", "update_id", u.UpdateID)
		return nil
	}

	runCtx := ctx
	if l.opts.AgentTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, l.opts.AgentTimeout)
		defer cancel()
	}

	result, err := l.agent.Run(runCtx, state)
	if err != nil {
		return err
	}

	if summary := result.Summary(); summary != "" {
		utils.Info("Update handled", "update_id", u.UpdateID, "summary", utils.Truncate(summary, 300))
	} else {
		utils.Info("Update handled", "update_id", u.UpdateID)
	}
	return nil
}

// StateForUpdate строит начальное состояние агента для обновления.
func StateForUpdate(u telegram.Update) (*chain.ThinkState, error) {
	msg := u.Payload()
	if msg == nil || msg.FromBot() {
		return nil, ErrSkipped
	}
	text := msg.Body()
	if text == "" || msg.Chat.ID == 0 {
		return nil, ErrSkipped
	}

	chatID := fmt.Sprintf("%d", msg.Chat.ID)
	return chain.NewThinkState(BuildPrompt(msg.SenderLabel(), chatID, text), chatID), nil
}

// BuildPrompt - инструкция агенту для входящего сообщения.
func BuildPrompt(sender, chatID, text string) string {
	return fmt.Sprintf("Telegram message from %s in chat %s: \"%s\".\n", sender, chatID, text) +
		"Figure out the requested weather tasks. Call get_weather once per location before sending any Telegram reply.\n" +
		"Send responses back using send_telegram with the same chat_id. If the request is unclear or out of scope, send a polite clarification."
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
