// Weather-tui - терминальный интерфейс конвейера: локация → погода →
// короткое сообщение → Telegram.
//
// Использование:
//
//	weather-tui [--config config.yaml] [--units metric|imperial] [--show-state]
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
		units      = flag.String("units", "", "Initial units: metric or imperial (default: config)")
		showState  = flag.Bool("show-state", true, "Show final state after each run")
		theme      = flag.String("theme", "default", "Color scheme: default, light, dracula")
		debugFlag  = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	cfg, _, err := app.InitializeConfig(&app.DefaultConfigPathFinder{ConfigFlag: *configPath})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := utils.InitLogger(utils.LogOptions{
		Dir:    cfg.App.LogsDir,
		Prefix: "weather-tui",
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

	model := ui.InitialModel(ui.NewPipelineTask(comps.Pipeline, *units), ui.Options{
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
