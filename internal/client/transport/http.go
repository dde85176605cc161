package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/voxnote/tasksync/pkg/api"
)

// HTTPClient представляет HTTP транспорт для взаимодействия с сервером.
// Каждое именованное событие отображается в POST на соответствующий
// endpoint; подтверждением служит тело ответа.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string

	mu        sync.Mutex
	connected bool
	listeners map[int]func(connected bool)
	nextID    int
}

// NewHTTPClient создает новый HTTP транспорт
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:   baseURL,
		connected: true,
		listeners: make(map[int]func(connected bool)),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			// Настройка обработки редиректов
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				return nil
			},
		},
	}
}

// IsConnected reports connectivity observed on the last request
func (c *HTTPClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connected
}

// OnStatusChange registers a connectivity listener
func (c *HTTPClient) OnStatusChange(fn func(connected bool)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.listeners[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// setConnected обновляет состояние и уведомляет подписчиков при переходе
func (c *HTTPClient) setConnected(connected bool) {
	c.mu.Lock()
	changed := c.connected != connected
	c.connected = connected

	var listeners []func(bool)
	if changed {
		for _, fn := range c.listeners {
			listeners = append(listeners, fn)
		}
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(connected)
	}
}

// EmitWithAck delivers a named event via POST and decodes the response
func (c *HTTPClient) EmitWithAck(ctx context.Context, event string, payload, result any) error {
	url := c.baseURL + eventPath(event)

	var bodyReader io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Сетевая ошибка или таймаут: транспорт считается отключенным
		c.setConnected(false)
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	c.setConnected(true)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	// Проверяем статус код
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != "" {
			return &ServerError{Code: resp.StatusCode, Message: errResp.Error}
		}
		return &ServerError{Code: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// eventPath отображает имя события в REST endpoint
func eventPath(event string) string {
	return "/api/v1/events/" + strings.ReplaceAll(event, ":", "/")
}
