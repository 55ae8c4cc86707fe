package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisChannel is the pub/sub channel shared by all server instances.
const DefaultRedisChannel = "folio:realtime"

// RedisBroker relays changes through Redis pub/sub so that every server
// instance delivers every change to its own local subscribers.
type RedisBroker struct {
	rdb     *redis.Client
	channel string
	hub     *Hub
	ps      *redis.PubSub
	done    chan struct{}
}

// NewRedisClient creates a Redis client from a redis:// URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return redis.NewClient(opt), nil
}

// NewRedisBroker subscribes to channel and starts relaying received changes
// into hub. It returns once the Redis subscription is confirmed.
func NewRedisBroker(ctx context.Context, rdb *redis.Client, channel string, hub *Hub) (*RedisBroker, error) {
	if channel == "" {
		channel = DefaultRedisChannel
	}

	ps := rdb.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		if cerr := ps.Close(); cerr != nil {
			slog.Warn("closing redis pubsub", "err", cerr)
		}
		return nil, fmt.Errorf("subscribing to %s: %w", channel, err)
	}

	b := &RedisBroker{
		rdb:     rdb,
		channel: channel,
		hub:     hub,
		ps:      ps,
		done:    make(chan struct{}),
	}
	go b.relay(ps.Channel())

	return b, nil
}

// Publish implements Broker.
func (b *RedisBroker) Publish(ctx context.Context, c Change) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding change: %w", err)
	}
	if err := b.rdb.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("publishing change: %w", err)
	}
	return nil
}

// Subscribe implements Broker.
func (b *RedisBroker) Subscribe(ctx context.Context, f Filter) (*Subscription, error) {
	return b.hub.Subscribe(ctx, f)
}

// Close stops the relay and waits for it to exit.
func (b *RedisBroker) Close() error {
	err := b.ps.Close()
	<-b.done
	if err != nil {
		return fmt.Errorf("closing redis pubsub: %w", err)
	}
	return nil
}

func (b *RedisBroker) relay(msgs <-chan *redis.Message) {
	defer close(b.done)

	for msg := range msgs {
		var c Change
		if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
			slog.Warn("decoding relayed change", "err", err)
			continue
		}
		if err := b.hub.Publish(context.Background(), c); err != nil {
			slog.Error("publishing relayed change", "err", err)
		}
	}
}
