// Think-tui - терминальный интерфейс think агента: свободная инструкция,
// живой журнал вызовов инструментов и итоговое состояние.
//
// Использование:
//
//	think-tui [--config config.yaml] [--chat-id 123456] [--show-state] [--theme dracula]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ilkoid/wxagent/internal/ui"
	"github.com/ilkoid/wxagent/pkg/app"
	"github.com/ilkoid/wxagent/pkg/utils"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to config.yaml (default: search, then environment)")
		chatID     = flag.String("chat-id", "", "Override Telegram chat_id (optional)")
		showState  = flag.Bool("show-state", false, "Show final state after each run")
		theme      = flag.String("theme", "default", "Color scheme: default, light, dracula")
		debugFlag  = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	cfg, _, err := app.InitializeConfig(&app.DefaultConfigPathFinder{ConfigFlag: *configPath})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Терминал занят TUI, логи только в файл
	if err := utils.InitLogger(utils.LogOptions{
		Dir:    cfg.App.LogsDir,
		Prefix: "think-tui",
		Debug:  *debugFlag || cfg.App.Debug,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer utils.Close()

	comps, err := app.Initialize(context.Background(), cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating components: %v\n", err)
		os.Exit(1)
	}
	defer comps.Close()

	model := ui.InitialModel(ui.NewThinkTask(comps.Agent, *chatID), ui.Options{
		ColorScheme: *theme,
		ModelName:   comps.ModelName,
		Timeout:     cfg.AgentTimeout(),
		ShowState:   *showState,
	})

	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		utils.Error("TUI error", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
}
