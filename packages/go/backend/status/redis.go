package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel events are mirrored to.
const DefaultChannel = "streamcaption:events"

// RedisMirror republishes broadcast events on a Redis pub/sub channel so other
// processes can follow the active stream.
type RedisMirror struct {
	client  *redis.Client
	channel string
}

// NewRedisMirror connects to addr. It does not dial until first use.
func NewRedisMirror(addr, channel string) (*RedisMirror, error) {
	if addr == "" {
		return nil, errors.New("redis address required")
	}
	if channel == "" {
		channel = DefaultChannel
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	return &RedisMirror{client: client, channel: channel}, nil
}

func (m *RedisMirror) Channel() string { return m.channel }

// Ping checks connectivity.
func (m *RedisMirror) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

// Publish sends env as JSON on the mirror channel.
func (m *RedisMirror) Publish(ctx context.Context, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal status event: %w", err)
	}
	if err := m.client.Publish(ctx, m.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Subscribe follows the mirror channel until ctx is cancelled. The returned
// channel is closed when the subscription ends. Undecodable payloads are
// skipped.
func (m *RedisMirror) Subscribe(ctx context.Context) (<-chan Envelope, error) {
	sub := m.client.Subscribe(ctx, m.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan Envelope, 8)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					continue
				}
				select {
				case out <- env:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (m *RedisMirror) Close() error {
	return m.client.Close()
}
