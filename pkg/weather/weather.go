// Package weather - SDK для Open-Meteo: геокодинг свободного текста и текущая погода.
//
// Геокодинг понимает "Paris", "Paris, FR" и "Paris ,  fr ": последний
// фрагмент длиной 2–3 символа считается кодом страны. Если фильтр по
// стране ничего не дал, запрос повторяется без фильтра. Из кандидатов
// выбирается самый населённый.
package weather

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ilkoid/wxagent/pkg/apiclient"
	"github.com/ilkoid/wxagent/pkg/config"
	"github.com/ilkoid/wxagent/pkg/utils"
)

var (
	// ErrEmptyLocation - пустая строка локации.
	ErrEmptyLocation = errors.New("location is empty")

	// ErrLocationNotFound - геокодинг не нашёл ни одного кандидата.
	ErrLocationNotFound = errors.New("could not geocode location")

	// ErrUnsupportedUnits - система единиц не metric и не imperial.
	ErrUnsupportedUnits = errors.New("units must be metric or imperial")
)

const currentFields = "temperature_2m,relative_humidity_2m,apparent_temperature,wind_speed_10m,weather_code"

// Location - результат геокодинга.
type Location struct {
	Name        string  `json:"name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	CountryCode string  `json:"country_code"`
	Country     string  `json:"country"`
	Admin1      string  `json:"admin1"`
	Population  int64   `json:"population"`
}

// DisplayName - "Name, CC".
func (l Location) DisplayName() string {
	return fmt.Sprintf("%s, %s", l.Name, l.CountryCode)
}

// Units - подписи единиц измерения.
type Units struct {
	Temperature string `json:"temperature"`
	WindSpeed   string `json:"wind_speed"`
	Humidity    string `json:"humidity"`
}

// Conditions - текущая погода.
//
// Числовые поля - указатели: Open-Meteo может не вернуть значение.
type Conditions struct {
	Temperature         *float64 `json:"temperature"`
	ApparentTemperature *float64 `json:"apparent_temperature"`
	Humidity            *float64 `json:"humidity"`
	WindSpeed           *float64 `json:"wind_speed"`
	WeatherCode         *int     `json:"weather_code"`
	Condition           string   `json:"condition,omitempty"`
	Time                string   `json:"time"`
	Units               Units    `json:"units"`
}

// Report - ответ инструмента get_current_weather.
type Report struct {
	QueryLocation    string     `json:"query_location"`
	ResolvedLocation string     `json:"resolved_location"`
	Country          string     `json:"country,omitempty"`
	Weather          Conditions `json:"weather"`
}

// Client - клиент Open-Meteo.
type Client struct {
	api          *apiclient.Client
	geocodingURL string
	forecastURL  string
	defaultUnits string
}

// New создаёт клиент из конфигурации.
func New(cfg config.WeatherConfig) *Client {
	cfg = cfg.GetDefaults()

	return &Client{
		api: apiclient.New(apiclient.Options{
			Service:       "open-meteo",
			UserAgent:     "wxagent weather server",
			RateLimit:     cfg.RateLimit,
			BurstLimit:    cfg.BurstLimit,
			RetryAttempts: cfg.RetryAttempts,
			Timeout:       apiclient.ParseTimeout(cfg.Timeout, 30*time.Second),
		}),
		geocodingURL: cfg.GeocodingURL,
		forecastURL:  cfg.ForecastURL,
		defaultUnits: cfg.DefaultUnits,
	}
}

// DefaultUnits возвращает систему единиц по умолчанию.
func (c *Client) DefaultUnits() string {
	return c.defaultUnits
}

// NormalizeUnits приводит units к metric/imperial. Пустая строка - fallback.
func NormalizeUnits(units, fallback string) (string, error) {
	u := strings.ToLower(strings.TrimSpace(units))
	if u == "" {
		u = strings.ToLower(strings.TrimSpace(fallback))
	}
	if u == "" {
		u = config.UnitsMetric
	}
	switch u {
	case config.UnitsMetric, config.UnitsImperial:
		return u, nil
	default:
		return "", fmt.Errorf("%w: got '%s'", ErrUnsupportedUnits, units)
	}
}

// LabelsFor возвращает подписи единиц для системы.
func LabelsFor(units string) Units {
	if units == config.UnitsImperial {
		return Units{Temperature: "°F", WindSpeed: "mph", Humidity: "%"}
	}
	return Units{Temperature: "°C", WindSpeed: "km/h", Humidity: "%"}
}

// Current геокодирует локацию и возвращает текущую погоду.
//
// Если геокодинг ничего не нашёл, прогноз не запрашивается.
func (c *Client) Current(ctx context.Context, location, units string) (*Report, error) {
	u, err := NormalizeUnits(units, c.defaultUnits)
	if err != nil {
		return nil, err
	}

	loc, err := c.Geocode(ctx, location)
	if err != nil {
		return nil, err
	}

	cond, err := c.Forecast(ctx, loc.Latitude, loc.Longitude, u)
	if err != nil {
		return nil, err
	}

	utils.Debug("Weather resolved",
		"query", location,
		"resolved", loc.DisplayName(),
		"units", u)

	return &Report{
		QueryLocation:    location,
		ResolvedLocation: loc.DisplayName(),
		Country:          loc.CountryCode,
		Weather:          *cond,
	}, nil
}

// ParseQuery разбирает "City, CC" на имя и код страны.
//
// Код страны - последний непустой фрагмент длиной 2–3 символа, в верхнем регистре.
func ParseQuery(location string) (name, countryCode string) {
	q := strings.TrimSpace(location)
	name = q
	if !strings.Contains(q, ",") {
		return name, ""
	}

	var parts []string
	for _, p := range strings.Split(q, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) < 2 {
		return name, ""
	}

	name = parts[0]
	tail := strings.ToUpper(parts[len(parts)-1])
	if n := len([]rune(tail)); n >= 2 && n <= 3 {
		countryCode = tail
	}
	return name, countryCode
}

type geocodingResponse struct {
	Results []Location `json:"results"`
}

// Geocode находит координаты для свободного текста.
func (c *Client) Geocode(ctx context.Context, location string) (*Location, error) {
	if strings.TrimSpace(location) == "" {
		return nil, ErrEmptyLocation
	}

	name, countryCode := ParseQuery(location)

	params := url.Values{}
	params.Set("name", name)
	params.Set("count", "5")
	params.Set("language", "en")
	if countryCode != "" {
		params.Set("country_code", countryCode)
	}

	results, err := c.search(ctx, params)
	if err != nil {
		return nil, err
	}

	// API может проигнорировать country_code - фильтруем сами
	if countryCode != "" {
		var filtered []Location
		for _, r := range results {
			if strings.ToUpper(r.CountryCode) == countryCode {
				filtered = append(filtered, r)
			}
		}
		if len(filtered) > 0 {
			results = filtered
		}
	}

	// Повтор без фильтра по стране
	if len(results) == 0 && countryCode != "" {
		utils.Debug("Geocoding retry without country filter",
			"name", name,
			"country_code", countryCode)
		params.Del("country_code")
		results, err = c.search(ctx, params)
		if err != nil {
			return nil, err
		}
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrLocationNotFound, location)
	}

	// Самый населённый кандидат, при равенстве - порядок API
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Population > results[j].Population
	})

	best := results[0]
	return &best, nil
}

func (c *Client) search(ctx context.Context, params url.Values) ([]Location, error) {
	var resp geocodingResponse
	if err := c.api.Get(ctx, "geocoding", c.geocodingURL, params, &resp); err != nil {
		return nil, fmt.Errorf("geocoding request failed: %w", err)
	}
	return resp.Results, nil
}

type forecastResponse struct {
	Current struct {
		Time                string   `json:"time"`
		Temperature         *float64 `json:"temperature_2m"`
		RelativeHumidity    *float64 `json:"relative_humidity_2m"`
		ApparentTemperature *float64 `json:"apparent_temperature"`
		WindSpeed           *float64 `json:"wind_speed_10m"`
		WeatherCode         *int     `json:"weather_code"`
	} `json:"current"`
}

// Forecast запрашивает текущую погоду по координатам.
//
// metric → °C и km/h, imperial → °F и mph. Влажность всегда в процентах.
func (c *Client) Forecast(ctx context.Context, lat, lon float64, units string) (*Conditions, error) {
	tempUnit, windUnit := "celsius", "kmh"
	if units == config.UnitsImperial {
		tempUnit, windUnit = "fahrenheit", "mph"
	}

	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("current", currentFields)
	params.Set("wind_speed_unit", windUnit)
	params.Set("temperature_unit", tempUnit)
	params.Set("timezone", "auto")

	var resp forecastResponse
	if err := c.api.Get(ctx, "forecast", c.forecastURL, params, &resp); err != nil {
		return nil, fmt.Errorf("forecast request failed: %w", err)
	}

	cur := resp.Current
	cond := &Conditions{
		Temperature:         cur.Temperature,
		ApparentTemperature: cur.ApparentTemperature,
		Humidity:            cur.RelativeHumidity,
		WindSpeed:           cur.WindSpeed,
		WeatherCode:         cur.WeatherCode,
		Time:                cur.Time,
		Units:               LabelsFor(units),
	}
	if cur.WeatherCode != nil {
		cond.Condition = Describe(*cur.WeatherCode)
	}
	return cond, nil
}
