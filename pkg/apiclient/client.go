// Package apiclient - общий HTTP клиент для внешних JSON API (Open-Meteo, Telegram Bot API).
//
// Даёт то, что нужно каждому SDK поверх net/http:
//   - rate limiting на endpoint (golang.org/x/time/rate)
//   - retry на сетевых ошибках, 429 и 5xx
//   - классификацию ошибок (ErrorType) для человекочитаемых сообщений
//
// Высокоуровневые методы живут в pkg/weather и pkg/telegram.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ilkoid/wxagent/pkg/utils"
	"golang.org/x/time/rate"
)

// ErrorType представляет тип ошибки при работе с внешним API.
type ErrorType int

const (
	ErrUnknown ErrorType = iota
	ErrAuthFailed
	ErrTimeout
	ErrNetwork
	ErrRateLimit
)

// String возвращает строковое представление типа ошибки.
func (e ErrorType) String() string {
	switch e {
	case ErrAuthFailed:
		return "authentication_failed"
	case ErrTimeout:
		return "timeout"
	case ErrNetwork:
		return "network_error"
	case ErrRateLimit:
		return "rate_limit"
	default:
		return "unknown"
	}
}

// HumanMessage возвращает человекочитаемое сообщение для типа ошибки.
func (e ErrorType) HumanMessage() string {
	switch e {
	case ErrAuthFailed:
		return "Токен недействителен или отсутствует. Проверьте ключи в конфигурации."
	case ErrTimeout:
		return "Превышено время ожидания. Сервер не отвечает или проблемы с сетью."
	case ErrNetwork:
		return "Сервер недоступен. Проверьте подключение к интернету."
	case ErrRateLimit:
		return "Превышен лимит запросов. Подождите перед следующей попыткой."
	default:
		return "Неизвестная ошибка при обращении к API."
	}
}

// StatusError - ответ API с кодом, отличным от 2xx.
type StatusError struct {
	Service    string
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s api error: status %d, body: %s", e.Service, e.StatusCode, strings.TrimSpace(string(e.Body)))
}

// HTTPClient интерфейс для выполнения HTTP запросов.
//
// Стандартный *http.Client реализует этот интерфейс.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options - параметры клиента.
type Options struct {
	Service       string        // Имя сервиса для ошибок и логов ("open-meteo", "telegram")
	UserAgent     string        // Заголовок User-Agent
	RateLimit     int           // Запросов в минуту на endpoint
	BurstLimit    int           // Burst для rate limiter
	RetryAttempts int           // Количество попыток (>= 1)
	Timeout       time.Duration // Таймаут запроса по умолчанию
	RetryDelay    time.Duration // Базовая пауза между повторами
	HTTPClient    HTTPClient    // nil = http.DefaultClient
}

// Client - HTTP клиент с rate limiting и retry.
type Client struct {
	opts Options

	mu       sync.Mutex
	limiters map[string]*rate.Limiter // endpoint → limiter
}

// New создаёт клиент. Нулевые поля Options получают значения по умолчанию.
func New(opts Options) *Client {
	if opts.Service == "" {
		opts.Service = "http"
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 600
	}
	if opts.BurstLimit <= 0 {
		opts.BurstLimit = 5
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 500 * time.Millisecond
	}
	if opts.HTTPClient == nil {
		// Без общего таймаута: у long polling свой срок, он задаётся через Request.Timeout
		opts.HTTPClient = &http.Client{}
	}

	return &Client{
		opts:     opts,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Request описывает один вызов API.
type Request struct {
	Endpoint string        // Ключ limiter'а ("geocoding", "sendMessage")
	Method   string        // GET или POST
	URL      string        // Полный URL без query
	Query    url.Values    // Query параметры (может быть nil)
	Body     any           // Тело запроса, сериализуется в JSON
	Timeout  time.Duration // 0 = Options.Timeout

	// RateLimitRetryOnly - запрос не идемпотентен (sendMessage): повтор только
	// после 429, когда API подтверждает, что запрос не выполнен.
	RateLimitRetryOnly bool
}

// Get выполняет GET запрос и декодирует JSON ответ в dest.
func (c *Client) Get(ctx context.Context, endpoint, rawURL string, query url.Values, dest any) error {
	return c.Do(ctx, Request{Endpoint: endpoint, Method: http.MethodGet, URL: rawURL, Query: query}, dest)
}

// Post выполняет POST запрос с JSON телом и декодирует JSON ответ в dest.
func (c *Client) Post(ctx context.Context, endpoint, rawURL string, body, dest any) error {
	return c.Do(ctx, Request{Endpoint: endpoint, Method: http.MethodPost, URL: rawURL, Body: body}, dest)
}

// Do выполняет запрос с retry логикой и rate limiting.
//
// dest может быть *[]byte - тогда тело ответа копируется без разбора.
func (c *Client) Do(ctx context.Context, req Request, dest any) error {
	u, err := url.Parse(req.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	var payload []byte
	if req.Body != nil {
		payload, err = json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.opts.Timeout
	}

	limiter := c.getOrCreateLimiter(req.Endpoint)

	var lastErr error
	for attempt := 0; attempt < c.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			utils.Debug("API request retry",
				"service", c.opts.Service,
				"endpoint", req.Endpoint,
				"attempt", attempt,
				"error", lastErr)
		}

		// 1. Ждем разрешения от лимитера
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter wait: %w", err)
		}

		body, status, header, err := c.roundTrip(ctx, req.Method, u.String(), payload, timeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if req.RateLimitRetryOnly {
				return fmt.Errorf("%s %s: %w", c.opts.Service, req.Endpoint, err)
			}
			lastErr = err
			if !c.sleep(ctx, c.opts.RetryDelay*time.Duration(attempt+1)) {
				return ctx.Err()
			}
			continue
		}

		// 2. 429 - ждём Retry-After и пробуем снова
		if status == http.StatusTooManyRequests {
			lastErr = &StatusError{Service: c.opts.Service, StatusCode: status, Body: body}
			if !c.sleep(ctx, retryAfter(header, body)) {
				return ctx.Err()
			}
			continue
		}

		// 3. 5xx - временная ошибка сервера
		if status >= http.StatusInternalServerError {
			lastErr = &StatusError{Service: c.opts.Service, StatusCode: status, Body: body}
			if req.RateLimitRetryOnly {
				return lastErr
			}
			if !c.sleep(ctx, c.opts.RetryDelay*time.Duration(attempt+1)) {
				return ctx.Err()
			}
			continue
		}

		if status < 200 || status >= 300 {
			return &StatusError{Service: c.opts.Service, StatusCode: status, Body: body}
		}

		if dest == nil {
			return nil
		}
		if raw, ok := dest.(*[]byte); ok {
			*raw = body
			return nil
		}
		if err := json.Unmarshal(body, dest); err != nil {
			return fmt.Errorf("unmarshal %s response: %w", c.opts.Service, err)
		}
		return nil
	}

	return fmt.Errorf("%s: max retries exceeded, last error: %w", c.opts.Service, lastErr)
}

func (c *Client) roundTrip(ctx context.Context, method, rawURL string, payload []byte, timeout time.Duration) ([]byte, int, http.Header, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, method, rawURL, bodyReader)
	if err != nil {
		return nil, 0, nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.opts.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.opts.UserAgent)
	}

	resp, err := c.opts.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("read body: %w", err)
	}
	return body, resp.StatusCode, resp.Header, nil
}

func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// retryAfter читает Retry-After или parameters.retry_after (Telegram).
func retryAfter(header http.Header, body []byte) time.Duration {
	if s := header.Get("Retry-After"); s != "" {
		if sec, err := strconv.Atoi(s); err == nil {
			return time.Duration(sec) * time.Second
		}
	}

	var tg struct {
		Parameters struct {
			RetryAfter int `json:"retry_after"`
		} `json:"parameters"`
	}
	if json.Unmarshal(body, &tg) == nil && tg.Parameters.RetryAfter > 0 {
		return time.Duration(tg.Parameters.RetryAfter) * time.Second
	}

	return time.Second
}

// getOrCreateLimiter возвращает limiter для endpoint, создавая его при первом обращении.
func (c *Client) getOrCreateLimiter(endpoint string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	if limiter, exists := c.limiters[endpoint]; exists {
		return limiter
	}

	// Запросов/минуту → rate.Limit в запросах/секунду
	limiter := rate.NewLimiter(rate.Limit(float64(c.opts.RateLimit)/60.0), c.opts.BurstLimit)
	c.limiters[endpoint] = limiter
	return limiter
}

// ClassifyError классифицирует ошибку по типу для диагностики.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrUnknown
	}

	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden:
			return ErrAuthFailed
		case se.StatusCode == http.StatusTooManyRequests:
			return ErrRateLimit
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}

	errMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errMsg, "unauthorized"):
		return ErrAuthFailed
	case strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "deadline exceeded"):
		return ErrTimeout
	case strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "no such host"):
		return ErrNetwork
	case strings.Contains(errMsg, "too many requests"):
		return ErrRateLimit
	}

	return ErrUnknown
}

// IsAPIError сообщает, что ошибка получена при обращении к API
// (ответ не 2xx, сетевая ошибка, таймаут), а не при проверке входных данных.
func IsAPIError(err error) bool {
	var se *StatusError
	var ue *url.Error
	return errors.As(err, &se) || errors.As(err, &ue) || errors.Is(err, context.DeadlineExceeded)
}

// ParseTimeout разбирает строку длительности из конфигурации.
func ParseTimeout(s string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return fallback
}
