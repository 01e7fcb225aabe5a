// Think-poller - Telegram listener: каждое входящее сообщение обрабатывает think агент.
//
// Использование:
//
//	think-poller [--timeout 20] [--idle-sleep 1.0] [--config config.yaml] [--state-db offsets.db] [--debug]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ilkoid/wxagent/pkg/app"
	"github.com/ilkoid/wxagent/pkg/config"
	"github.com/ilkoid/wxagent/pkg/poller"
	"github.com/ilkoid/wxagent/pkg/utils"
)

func main() {
	var (
		timeout    = flag.Int("timeout", 20, "Long-poll timeout in seconds (0 = short polling)")
		idleSleep  = flag.Float64("idle-sleep", 1.0, "Sleep between empty polls in seconds")
		configPath = flag.String("config", "", "Path to config.yaml (default: search, then environment)")
		stateDB    = flag.String("state-db", "", "SQLite file to persist the update offset (default: in memory)")
		debugFlag  = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	cfg, cfgPath, err := app.InitializeConfig(&app.DefaultConfigPathFinder{ConfigFlag: *configPath})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := utils.InitLogger(utils.LogOptions{
		Stderr: true,
		Debug:  *debugFlag || cfg.App.Debug,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if cfgPath != "" {
		utils.Info("Config loaded", "path", cfgPath)
	}

	// Флаги перекрывают config.yaml, только если заданы явно
	applyFlags(flag.CommandLine, &cfg.Poller, *timeout, *idleSleep, *stateDB)

	ctx, shutdown := utils.SetupGracefulShutdownWithContext()
	defer shutdown()

	if err := run(ctx, cfg); err != nil {
		utils.Error("Listener stopped", "error", err)
		shutdown()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.AppConfig) error {
	comps, err := app.Initialize(ctx, cfg)
	if err != nil {
		return err
	}
	defer comps.Close()

	var store poller.OffsetStore = poller.NewMemoryStore()
	if cfg.Poller.StateDB != "" {
		sqlite, err := poller.OpenSQLiteStore(cfg.Poller.StateDB, "telegram")
		if err != nil {
			return err
		}
		store = sqlite
		utils.Info("Offset store opened", "path", cfg.Poller.StateDB)
	}
	defer store.Close()

	listener := poller.NewListener(comps.Bridge, comps.Agent, store, poller.Options{
		Timeout:      cfg.Poller.Timeout,
		IdleSleep:    time.Duration(cfg.Poller.IdleSleep * float64(time.Second)),
		AgentTimeout: cfg.AgentTimeout(),
	})

	err = listener.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
