package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// wsFrame is an outbound event envelope. The server echoes the request
// id back in its acknowledgment so concurrent emits can be correlated.
type wsFrame struct {
	ID      string          `json:"id"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// wsAck is an inbound acknowledgment envelope
type wsAck struct {
	ID     string          `json:"id"`
	OK     bool            `json:"ok"`
	Error  string          `json:"error,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

// WSClient представляет websocket транспорт с подтверждениями,
// сопоставляемыми по идентификатору запроса
type WSClient struct {
	conn *websocket.Conn

	// writeMu защищает конкурентные записи в соединение
	writeMu sync.Mutex

	mu        sync.Mutex
	pending   map[string]chan wsAck
	connected bool
	listeners map[int]func(connected bool)
	nextID    int
	closed    bool
}

// DialWS подключается к серверу и запускает цикл чтения
func DialWS(ctx context.Context, url string) (*WSClient, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	c := &WSClient{
		conn:      conn,
		pending:   make(map[string]chan wsAck),
		connected: true,
		listeners: make(map[int]func(connected bool)),
	}

	go c.readPump()
	go c.pingPump()

	return c, nil
}

// IsConnected reports whether the socket is still alive
func (c *WSClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connected
}

// OnStatusChange registers a connectivity listener
func (c *WSClient) OnStatusChange(fn func(connected bool)) func() {
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

// EmitWithAck delivers a named event and waits for the correlated ack
func (c *WSClient) EmitWithAck(ctx context.Context, event string, payload, result any) error {
	if !c.IsConnected() {
		return fmt.Errorf("websocket transport is disconnected")
	}

	frame := wsFrame{
		ID:    uuid.New().String(),
		Event: event,
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		frame.Payload = data
	}

	// Регистрируем канал подтверждения до отправки, чтобы не потерять
	// быстрый ответ сервера
	ackCh := make(chan wsAck, 1)
	c.mu.Lock()
	c.pending[frame.ID] = ackCh
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, frame.ID)
		c.mu.Unlock()
	}()

	if err := c.writeFrame(&frame); err != nil {
		return fmt.Errorf("failed to send %s: %w", event, err)
	}

	select {
	case ack := <-ackCh:
		if !ack.OK {
			return &ServerError{Message: ack.Error}
		}
		if result != nil && len(ack.Result) > 0 {
			if err := json.Unmarshal(ack.Result, result); err != nil {
				return fmt.Errorf("failed to decode ack result: %w", err)
			}
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for %s ack: %w", event, ctx.Err())
	}
}

// Close terminates the connection and marks the transport disconnected
func (c *WSClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	err := c.conn.Close()
	c.setConnected(false)

	return err
}

func (c *WSClient) writeFrame(frame *wsFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// readPump читает подтверждения и доставляет их ожидающим emit
func (c *WSClient) readPump() {
	defer func() {
		_ = c.conn.Close()
		c.setConnected(false)
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var ack wsAck
		if err := json.Unmarshal(data, &ack); err != nil {
			// Нераспознанный кадр пропускаем
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[ack.ID]
		c.mu.Unlock()
		if ok {
			ch <- ack
		}
	}
}

func (c *WSClient) pingPump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		if !c.IsConnected() {
			return
		}

		c.writeMu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		err := c.conn.WriteMessage(websocket.PingMessage, nil)
		c.writeMu.Unlock()
		if err != nil {
			return
		}
	}
}

func (c *WSClient) setConnected(connected bool) {
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
