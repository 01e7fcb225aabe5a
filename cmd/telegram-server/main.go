// Telegram-server - MCP сервер инструментов send_message и get_updates через stdio.
//
// Запускается агентом как дочерний процесс (mcp_servers.telegram).
// Stdout занят протоколом, логи идут в stderr.
//
// Использование:
//
//	telegram-server [--config config.yaml] [--debug]
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ilkoid/wxagent/pkg/app"
	"github.com/ilkoid/wxagent/pkg/telegram"
	"github.com/ilkoid/wxagent/pkg/toolserver"
	"github.com/ilkoid/wxagent/pkg/utils"
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

	bot := telegram.New(cfg.Telegram)
	// Токен проверяется при вызове инструмента: list_tools работает и без него
	utils.Info("Telegram server starting",
		"token_set", cfg.Telegram.BotToken != "",
		"default_chat_set", bot.DefaultChatID() != "")

	if err := toolserver.ServeStdio(ctx, toolserver.NewTelegramServer(bot)); err != nil && ctx.Err() == nil {
		utils.Error("Telegram server stopped", "error", err)
		shutdown()
		os.Exit(1)
	}
}
