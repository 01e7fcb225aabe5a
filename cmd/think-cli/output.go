package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ilkoid/wxagent/pkg/chain"
	"github.com/ilkoid/wxagent/pkg/pipeline"
)

// printThink выводит итог think агента. Частичное состояние выводится и при ошибке.
func printThink(state *chain.ThinkState, err error, d time.Duration, asJSON bool) {
	if asJSON {
		printJSON(struct {
			State      *chain.ThinkState `json:"state"`
			DurationMs int64             `json:"duration_ms"`
			Error      string            `json:"error,omitempty"`
		}{state, d.Milliseconds(), errString(err)})
		return
	}

	fmt.Println("=== Agent Think ===")
	if state != nil {
		if msg, ok := state.LastAssistant(); ok {
			fmt.Println()
			fmt.Println(msg.Content)
		}
		fmt.Println()
		fmt.Printf("Loops: %d\n", state.Loops)
		for _, w := range state.WeatherResults {
			temp := "?"
			if w.Temperature != nil {
				temp = fmt.Sprintf("%g%s", *w.Temperature, w.Unit)
			}
			fmt.Printf("  • %s: %s, %s\n", w.Location, temp, w.Condition)
		}
		if state.TranscriptPath != "" {
			fmt.Printf("Transcript: %s\n", state.TranscriptPath)
		}
	}
	fmt.Printf("Duration: %d ms\n", d.Milliseconds())
	printErr(err)
}

// printPipeline выводит итог конвейера.
func printPipeline(state *pipeline.State, err error, d time.Duration, asJSON bool) {
	if asJSON {
		printJSON(struct {
			State      *pipeline.State `json:"state"`
			DurationMs int64           `json:"duration_ms"`
			Error      string          `json:"error,omitempty"`
		}{state, d.Milliseconds(), errString(err)})
		return
	}

	fmt.Println("=== Weather Pipeline ===")
	if state != nil && state.MessageText != "" {
		fmt.Println()
		fmt.Println(state.MessageText)
		fmt.Println()
	}
	if state != nil && state.TranscriptPath != "" {
		fmt.Printf("Transcript: %s\n", state.TranscriptPath)
	}
	fmt.Printf("Duration: %d ms\n", d.Milliseconds())
	printErr(err)
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func printErr(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
