// Package chain - think агент: цикл вызова инструментов, где модель
// сама решает, какие инструменты вызвать и когда остановиться.
//
// Один запуск:
//  1. модель получает системный промпт, историю и определения инструментов;
//  2. ответ добавляется в историю; без tool calls или при исчерпанном
//     бюджете раундов запуск завершается;
//  3. инструменты выполняются последовательно, по одному tool сообщению
//     на вызов; ошибки инструментов становятся результатами {"error": ...};
//  4. Loops увеличивается, в историю добавляется наблюдение, цикл повторяется.
//
// Ошибка модели прерывает запуск: вызывающий получает частичное состояние
// вместе с ошибкой.
package chain

import "errors"

// MaxToolLoops - жёсткий потолок раундов инструментов за запуск.
const MaxToolLoops = 8

// ErrUnknownTool - модель запросила инструмент, которого нет в реестре.
// Наружу не возвращается: превращается в результат {"error": ...}.
var ErrUnknownTool = errors.New("unknown tool")

// DefaultSystemPrompt - правила планирования для think агента.
const DefaultSystemPrompt = "You are an assistant with two tools: get_weather(location) and send_telegram(chat_id, text).\n" +
	"\n" +
	"Planning rules:\n" +
	"1) If the user asks for multiple locations, call get_weather ONCE PER LOCATION.\n" +
	"2) Accumulate results. Do NOT call send_telegram until you have ALL requested locations.\n" +
	"3) If the user says 'send in one message', combine all results into a single concise message and call send_telegram ONCE.\n" +
	"4) If they say 'separately' (or one-per-city), call send_telegram once PER CITY with that city's line.\n" +
	"5) If not specified, DEFAULT to a single combined message.\n" +
	"6) After any tool result, produce a short, clear user-facing summary (no raw JSON unless asked).\n" +
	"7) Do NOT re-call a tool that already succeeded unless the user changed their request.\n" +
	"\n" +
	"Formatting guidance:\n" +
	"- Weather line format: '{location}: {temp}{unit}, {condition}'.\n" +
	"- If any field is missing, write '?' for it.\n" +
	"- Telegram confirmation: mention chat_id (it can be null) and a short preview of text.\n"
