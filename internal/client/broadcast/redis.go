package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisChannel доставляет сообщения через Redis pub/sub, когда вкладки
// живут в разных процессах. Канал именуется по workspace, чтобы чужие
// workspace не получали лишний трафик.
type RedisChannel struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger

	mu      sync.Mutex
	cancels []context.CancelFunc
	closed  bool
}

func NewRedisChannel(client *redis.Client, workspaceID string, logger *slog.Logger) *RedisChannel {
	return &RedisChannel{
		client:  client,
		channel: "tasksync:" + workspaceID,
		logger:  logger,
	}
}

func (c *RedisChannel) Publish(ctx context.Context, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := c.client.Publish(ctx, c.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", c.channel, err)
	}

	return nil
}

func (c *RedisChannel) Subscribe(fn func(msg *Message)) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, fmt.Errorf("redis channel is closed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancels = append(c.cancels, cancel)

	pubsub := c.client.Subscribe(ctx, c.channel)

	// Дожидаемся подтверждения подписки, чтобы не потерять сообщения,
	// опубликованные сразу после Subscribe
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", c.channel, err)
	}

	go func() {
		defer func() {
			_ = pubsub.Close()
		}()

		ch := pubsub.Channel()
		for {
			select {
			case raw, ok := <-ch:
				if !ok {
					return
				}

				var msg Message
				if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
					c.logger.Warn("dropping malformed broadcast message", "error", err)
					continue
				}
				fn(&msg)
			case <-ctx.Done():
				return
			}
		}
	}()

	return cancel, nil
}

func (c *RedisChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	for _, cancel := range c.cancels {
		cancel()
	}
	c.cancels = nil

	return nil
}
