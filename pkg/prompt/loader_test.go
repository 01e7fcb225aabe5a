package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ilkoid/wxagent/pkg/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePrompt(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "think.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSystem(t *testing.T) {
	path := writePrompt(t, `
messages:
  - role: system
    content: |
      You are a weather assistant. Units: {{.DefaultUnits}}.
  - role: user
    content: "ignored"
  - role: System
    content: "Chat: {{.DefaultChatID}}"
`)

	got, err := LoadSystem(path, AgentData{DefaultUnits: "imperial", DefaultChatID: "42"})
	require.NoError(t, err)
	assert.Equal(t, "You are a weather assistant. Units: imperial.\n\nChat: 42", got)
}

func TestRenderMessages(t *testing.T) {
	pf := &PromptFile{Messages: []Message{
		{Role: "system", Content: "Rules for {{.DefaultUnits}}"},
		{Role: "user", Content: "Hello"},
	}}

	msgs, err := pf.RenderMessages(AgentData{DefaultUnits: "metric"})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Equal(t, "Rules for metric", msgs[0].Content)
	assert.Equal(t, llm.RoleUser, msgs[1].Role)
}

func TestRenderMessages_UnknownField(t *testing.T) {
	pf := &PromptFile{Messages: []Message{{Role: "system", Content: "{{.Nope}}"}}}

	_, err := pf.RenderMessages(AgentData{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "message #0")
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompt file not found")

	_, err = Load(writePrompt(t, "messages: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no messages")

	_, err = LoadSystem(writePrompt(t, "messages:\n  - role: user\n    content: hi\n"), AgentData{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no system messages")
}
