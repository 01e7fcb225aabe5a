package chain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ilkoid/wxagent/pkg/tools/std"
	"github.com/ilkoid/wxagent/pkg/utils"
)

// previewLimit - длина превью текста Telegram в наблюдении.
const previewLimit = 60

// observeWeather извлекает WeatherObservation из ответа get_weather.
//
// Понимает ответ weather сервера ({resolved_location, weather:{...}})
// и плоскую форму ({location, temperature, condition}).
func observeWeather(payload map[string]any, args map[string]any) WeatherObservation {
	obs := WeatherObservation{Raw: payload}

	obs.Location = firstString(payload, "resolved_location", "location")
	if obs.Location == "" {
		obs.Location = firstString(args, "location")
	}
	if obs.Location == "" {
		obs.Location = "Unknown"
	}

	src := payload
	if w, ok := payload["weather"].(map[string]any); ok {
		src = w
	}
	if t, ok := toFloat(src["temperature"]); ok {
		obs.Temperature = &t
	}
	obs.Condition = firstString(src, "condition")
	if units, ok := src["units"].(map[string]any); ok {
		obs.Unit = firstString(units, "temperature")
	}
	return obs
}

// weatherObservationText - "Observation: Madrid, ES: 21.5°C, clear sky."
func weatherObservationText(o WeatherObservation) string {
	temp := "?"
	if o.Temperature != nil {
		temp = strconv.FormatFloat(*o.Temperature, 'f', -1, 64) + o.Unit
	}
	cond := o.Condition
	if cond == "" {
		cond = "?"
	}
	return fmt.Sprintf("Observation: %s: %s, %s.", o.Location, temp, cond)
}

// telegramObservationText - подтверждение отправки. Пусто, если ok != true.
func telegramObservationText(payload map[string]any) string {
	if ok, _ := payload["ok"].(bool); !ok {
		return ""
	}

	chatID := scalar(payload["chat_id"])
	msgID := scalar(payload["message_id"])
	text, _ := payload["text"].(string)

	return fmt.Sprintf("Observation: Telegram sent to chat %s (msg id %s): “%s”.",
		chatID, msgID, utils.Truncate(text, previewLimit))
}

// observationText собирает наблюдения раунда в одно сообщение.
func observationText(lines []string) string {
	return strings.Join(lines, "\n")
}

// observe возвращает строку наблюдения для результата инструмента.
func observe(toolName string, payload map[string]any, obs *WeatherObservation) string {
	switch {
	case obs != nil:
		return weatherObservationText(*obs)
	case toolName == std.SendTelegramToolName:
		return telegramObservationText(payload)
	default:
		return ""
	}
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}

func scalar(v any) string {
	switch x := v.(type) {
	case nil:
		return "?"
	case string:
		if x == "" {
			return "?"
		}
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
