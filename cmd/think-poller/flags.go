package main

import (
	"flag"

	"github.com/ilkoid/wxagent/pkg/config"
)

// applyFlags переносит в cfg флаги, явно заданные в командной строке.
// Так --timeout 0 и --idle-sleep 0 отличимы от "флаг не задан".
func applyFlags(fs *flag.FlagSet, cfg *config.PollerConfig, timeout int, idleSleep float64, stateDB string) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "timeout":
			cfg.Timeout = timeout
		case "idle-sleep":
			cfg.IdleSleep = idleSleep
		case "state-db":
			cfg.StateDB = stateDB
		}
	})
}
