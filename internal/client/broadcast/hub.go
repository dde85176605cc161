package broadcast

import (
	"context"
	"fmt"
	"sync"
)

// Hub доставляет сообщения подписчикам внутри одного процесса.
// Доставка синхронная: Publish возвращается после того, как каждый
// подписчик обработал сообщение, что делает тесты детерминированными.
type Hub struct {
	mu          sync.Mutex
	subscribers map[int]func(msg *Message)
	nextID      int
	closed      bool
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[int]func(msg *Message))}
}

func (h *Hub) Publish(_ context.Context, msg *Message) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return fmt.Errorf("hub is closed")
	}

	fns := make([]func(msg *Message), 0, len(h.subscribers))
	for _, fn := range h.subscribers {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(msg)
	}

	return nil
}

func (h *Hub) Subscribe(fn func(msg *Message)) (func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, fmt.Errorf("hub is closed")
	}

	id := h.nextID
	h.nextID++
	h.subscribers[id] = fn

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subscribers, id)
	}, nil
}

func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	h.subscribers = make(map[int]func(msg *Message))

	return nil
}
