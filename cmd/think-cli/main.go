// Think-cli - однократный запуск think агента или конвейера погоды из терминала.
//
// Использование:
//
//	think-cli "Get the weather for Paris and Berlin. Send a single Telegram message."
//	think-cli --chat-id 123456 "Weather in Madrid and Beirut, separate messages"
//	think-cli --pipeline --units imperial "Paris, FR"
//	think-cli --json "..."
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilkoid/wxagent/pkg/app"
	"github.com/ilkoid/wxagent/pkg/chain"
	"github.com/ilkoid/wxagent/pkg/events"
	"github.com/ilkoid/wxagent/pkg/pipeline"
	"github.com/ilkoid/wxagent/pkg/utils"
)

// Version - версия утилиты (заполняется при сборке)
var Version = "dev"

func main() {
	var (
		configPath  = flag.String("config", "", "Path to config.yaml (default: search, then environment)")
		modelName   = flag.String("model", "", "Override model alias from config")
		chatID      = flag.String("chat-id", "", "Override Telegram chat_id")
		usePipeline = flag.Bool("pipeline", false, "Run the fixed weather pipeline for a location")
		units       = flag.String("units", "", "Units for --pipeline: metric or imperial (default: config)")
		jsonOutput  = flag.Bool("json", false, "Output final state as JSON")
		quiet       = flag.Bool("quiet", false, "Do not print progress events")
		debugFlag   = flag.Bool("debug", false, "Enable debug logging")
		showVersion = flag.Bool("version", false, "Show version")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("think-cli version %s\n", Version)
		os.Exit(0)
	}

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: instruction argument is required")
		fmt.Fprintln(os.Stderr, "Usage: think-cli [flags] \"instruction\"")
		os.Exit(1)
	}
	input := strings.TrimSpace(strings.Join(flag.Args(), " "))

	cfg, _, err := app.InitializeConfig(&app.DefaultConfigPathFinder{ConfigFlag: *configPath})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *modelName != "" {
		cfg.Agent.Model = *modelName
	}

	if err := utils.InitLogger(utils.LogOptions{
		Dir:    cfg.App.LogsDir,
		Prefix: "think-cli",
		Debug:  *debugFlag || cfg.App.Debug,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, shutdown := utils.SetupGracefulShutdownWithContext()
	defer shutdown()

	ctx, cancel := context.WithTimeout(ctx, cfg.AgentTimeout())
	defer cancel()

	comps, err := app.Initialize(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating components: %v\n", err)
		shutdown()
		os.Exit(1)
	}
	defer comps.Close()

	// Ход запуска всегда пишется в лог, в stderr - без --quiet
	progress := events.Multi{events.EmitterFunc(logEvent)}
	if !*quiet {
		progress = append(progress, events.EmitterFunc(printEvent))
	}

	start := time.Now()
	if *usePipeline {
		comps.Pipeline.SetEmitter(progress)
		state, err := comps.Pipeline.Run(ctx, &pipeline.State{Location: input, Units: *units, ChatID: *chatID})
		printPipeline(state, err, time.Since(start), *jsonOutput)
		exitOnError(err, shutdown)
		return
	}

	comps.Agent.SetEmitter(progress)
	state, err := comps.Agent.Run(ctx, chain.NewThinkState(input, *chatID))
	printThink(state, err, time.Since(start), *jsonOutput)
	exitOnError(err, shutdown)
}

func printEvent(_ context.Context, e events.Event) {
	if e.Type == events.EventDone {
		return
	}
	if text := events.Describe(e); text != "" {
		fmt.Fprintln(os.Stderr, text)
	}
}

func logEvent(_ context.Context, e events.Event) {
	if text := events.Describe(e); text != "" {
		utils.Debug("Agent event", "type", e.Type, "event", text)
	}
}

func exitOnError(err error, shutdown func()) {
	if err == nil {
		return
	}
	shutdown()
	os.Exit(1)
}
