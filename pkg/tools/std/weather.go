package std

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ilkoid/wxagent/pkg/tools"
	"github.com/ilkoid/wxagent/pkg/toolserver"
)

// GetWeatherToolName - имя инструмента погоды для модели.
const GetWeatherToolName = "get_weather"

// GetWeatherTool - текущая погода для одной локации.
//
// Вызывает weather.get_current_weather и возвращает ответ сервера как есть.
type GetWeatherTool struct {
	caller tools.Caller
	units  string
}

// NewGetWeatherTool создаёт инструмент. Пустые units - умолчание сервера.
func NewGetWeatherTool(caller tools.Caller, units string) *GetWeatherTool {
	return &GetWeatherTool{caller: caller, units: units}
}

func (t *GetWeatherTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        GetWeatherToolName,
		Description: "Get current weather for a location (city).",
		Parameters: tools.JSONSchema{
			"type": "object",
			"properties": map[string]any{
				"location": map[string]any{
					"type":        "string",
					"description": "City or free-text place, e.g. 'Madrid' or 'Paris, FR'",
				},
			},
			"required": []string{"location"},
		},
	}
}

func (t *GetWeatherTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	var args struct {
		Location string `json:"location"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(args.Location) == "" {
		return "", errors.New("location is required")
	}

	callArgs := map[string]any{"location": args.Location}
	if t.units != "" {
		callArgs["units"] = t.units
	}

	payload, err := t.caller.CallJSON(ctx, toolserver.WeatherServerName, toolserver.ToolGetCurrentWeather, callArgs)
	if err != nil {
		return "", err
	}
	return marshalResult(payload)
}
