// Weather-server - MCP сервер инструмента get_current_weather (Open-Meteo) через stdio.
//
// Запускается агентом как дочерний процесс (mcp_servers.weather).
// Stdout занят протоколом, логи идут в stderr.
//
// Использование:
//
//	weather-server [--config config.yaml] [--debug]
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ilkoid/wxagent/pkg/app"
	"github.com/ilkoid/wxagent/pkg/toolserver"
	"github.com/ilkoid/wxagent/pkg/utils"
	"github.com/ilkoid/wxagent/pkg/weather"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to config.yaml (default: search, then environment)")
		debugFlag  = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	if err := utils.InitLogger(utils.LogOptions{Stderr: true, Debug: *debugFlag}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg, _, err := app.InitializeConfig(&app.DefaultConfigPathFinder{ConfigFlag: *configPath})
	if err != nil {
		utils.Error("Config loading failed", "error", err)
		os.Exit(1)
	}

	ctx, shutdown := utils.SetupGracefulShutdownWithContext()
	defer shutdown()

	client := weather.New(cfg.Weather)
	utils.Info("Weather server starting", "default_units", client.DefaultUnits())

	if err := toolserver.ServeStdio(ctx, toolserver.NewWeatherServer(client)); err != nil && ctx.Err() == nil {
		utils.Error("Weather server stopped", "error", err)
		shutdown()
		os.Exit(1)
	}
}
