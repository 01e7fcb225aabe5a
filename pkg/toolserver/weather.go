package toolserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ilkoid/wxagent/pkg/utils"
	"github.com/ilkoid/wxagent/pkg/weather"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewWeatherServer создаёт MCP сервер с инструментом get_current_weather.
func NewWeatherServer(client *weather.Client) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "weather-mcp-server", Version: Version}, nil)

	server.AddTool(&mcp.Tool{
		Name:        ToolGetCurrentWeather,
		Title:       "Open-Meteo current weather",
		Description: "Get current weather for a free-text location (via Open-Meteo geocoding + forecast).",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []any{"location"},
			"properties": map[string]any{
				"location": map[string]any{
					"type":        "string",
					"description": "Free-text place (e.g., 'Paris, FR')",
				},
				"units": map[string]any{
					"type":        "string",
					"enum":        []any{"metric", "imperial"},
					"description": "Units for temperature/wind",
				},
			},
		},
	}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		report, err := currentWeather(ctx, client, req.Params.Arguments)
		if err != nil {
			return errorResult(ToolGetCurrentWeather, err), nil
		}
		utils.Info("Weather tool served",
			"query", report.QueryLocation,
			"resolved", report.ResolvedLocation)
		return jsonResult(report)
	})

	return server
}

func currentWeather(ctx context.Context, client *weather.Client, raw []byte) (*weather.Report, error) {
	args, err := decodeArgs(raw)
	if err != nil {
		return nil, err
	}

	locVal, ok := args["location"]
	if !ok || locVal == nil {
		return nil, errors.New("Missing required argument 'location'")
	}
	location, ok := locVal.(string)
	if !ok {
		return nil, fmt.Errorf("location must be a string, got %T", locVal)
	}

	var units string
	if u, ok := args["units"]; ok && u != nil {
		s, ok := u.(string)
		if !ok {
			return nil, fmt.Errorf("units must be a string, got %T", u)
		}
		units = strings.ToLower(s)
	}

	return client.Current(ctx, location, units)
}
