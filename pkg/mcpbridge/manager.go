// Package mcpbridge - клиентская сторона MCP: запуск серверов инструментов
// как дочерних процессов и вызов их инструментов.
package mcpbridge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"

	"github.com/ilkoid/wxagent/pkg/config"
	"github.com/ilkoid/wxagent/pkg/utils"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ErrServerNotInitialized - вызов инструмента на сервере без сессии.
var ErrServerNotInitialized = errors.New("MCP server not initialized")

// Manager держит по одной сессии на каждый сервер.
//
// Потокобезопасен. Сессии закрываются через Close.
type Manager struct {
	mu       sync.RWMutex
	client   *mcp.Client
	sessions map[string]*mcp.ClientSession
}

// NewManager создаёт менеджер без сессий.
func NewManager() *Manager {
	return &Manager{
		client:   mcp.NewClient(&mcp.Implementation{Name: "wxagent", Version: "1.0.0"}, nil),
		sessions: make(map[string]*mcp.ClientSession),
	}
}

// Start запускает серверы из конфигурации.
//
// Сервер, который не удалось запустить, пропускается с записью в лог:
// отсутствие одного сервера не мешает работе с остальными.
func (m *Manager) Start(ctx context.Context, servers map[string]config.MCPServerConfig) {
	names := make([]string, 0, len(servers))
	for name := range servers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cfg := servers[name]
		if err := m.Attach(ctx, name, &mcp.CommandTransport{Command: buildCommand(cfg)}); err != nil {
			utils.Error("Failed to start MCP server", "server", name, "command", cfg.Command, "error", err)
			continue
		}
		utils.Info("MCP server started", "server", name, "command", cfg.Command)
	}
}

// buildCommand собирает команду сервера. Значения env раскрываются
// через os.ExpandEnv и дописываются к окружению текущего процесса.
func buildCommand(cfg config.MCPServerConfig) *exec.Cmd {
	args := make([]string, len(cfg.Args))
	for i, a := range cfg.Args {
		args[i] = os.ExpandEnv(a)
	}

	cmd := exec.Command(os.ExpandEnv(cfg.Command), args...)
	cmd.Env = os.Environ()

	keys := make([]string, 0, len(cfg.Env))
	for k := range cfg.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cmd.Env = append(cmd.Env, k+"="+os.ExpandEnv(cfg.Env[k]))
	}
	cmd.Stderr = os.Stderr
	return cmd
}

// Attach подключает сервер через произвольный транспорт.
//
// Существующая сессия с тем же именем закрывается.
func (m *Manager) Attach(ctx context.Context, name string, transport mcp.Transport) error {
	session, err := m.client.Connect(ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("connect %s: %w", name, err)
	}

	m.mu.Lock()
	old := m.sessions[name]
	m.sessions[name] = session
	m.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	return nil
}

// Servers возвращает имена подключённых серверов.
func (m *Manager) Servers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.sessions))
	for name := range m.sessions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CallTool вызывает инструмент на сервере и возвращает результат как есть.
func (m *Manager) CallTool(ctx context.Context, server, tool string, args map[string]any) (*mcp.CallToolResult, error) {
	m.mu.RLock()
	session, ok := m.sessions[server]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrServerNotInitialized, server)
	}

	if args == nil {
		args = map[string]any{}
	}

	utils.Debug("MCP tool call", "server", server, "tool", tool)
	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: tool, Arguments: args})
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", server, tool, err)
	}
	return res, nil
}

// CallJSON вызывает инструмент и разбирает первый текстовый блок как JSON.
//
// Результат с IsError превращается в ошибку с текстом сервера.
func (m *Manager) CallJSON(ctx context.Context, server, tool string, args map[string]any) (map[string]any, error) {
	res, err := m.CallTool(ctx, server, tool, args)
	if err != nil {
		return nil, err
	}
	if err := ResultError(res); err != nil {
		return nil, fmt.Errorf("%s.%s: %w", server, tool, err)
	}
	return DecodePayload(res), nil
}

// Close закрывает все сессии. Дочерние процессы завершаются вместе с ними.
func (m *Manager) Close() error {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*mcp.ClientSession)
	m.mu.Unlock()

	var errs []error
	for name, s := range sessions {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// FirstText возвращает текст первого текстового блока результата.
func FirstText(res *mcp.CallToolResult) string {
	if res == nil {
		return ""
	}
	for _, c := range res.Content {
		if t, ok := c.(*mcp.TextContent); ok {
			return t.Text
		}
	}
	return ""
}

// DecodePayload разбирает первый текстовый блок как JSON объект.
// Не-JSON текст заворачивается в {"text": ...}.
func DecodePayload(res *mcp.CallToolResult) map[string]any {
	return utils.SafeJSON(FirstText(res))
}

// ResultError возвращает ошибку для результата с IsError.
func ResultError(res *mcp.CallToolResult) error {
	if res == nil || !res.IsError {
		return nil
	}
	msg := strings.TrimSpace(FirstText(res))
	if msg == "" {
		msg = "tool returned an error"
	}
	return errors.New(msg)
}
