package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// envelope is the wire form of an event on a Redis channel.
type envelope struct {
	Event  Event  `json:"event"`
	Except string `json:"except,omitempty"`
}

// NewRedisClient parses url, connects and pings with a short timeout.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, errors.New("redis: url is empty")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	c := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return c, nil
}

// RedisPublisher publishes events on the Redis channel named after the topic,
// so every instance running a RedisRelay can reach its local sessions.
type RedisPublisher struct {
	client redis.UniversalClient
}

func NewRedisPublisher(client redis.UniversalClient) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, topic string, evt Event, exceptID string) error {
	b, err := json.Marshal(envelope{Event: evt, Except: exceptID})
	if err != nil {
		return fmt.Errorf("redis: encode event: %w", err)
	}
	return p.client.Publish(ctx, topic, b).Err()
}

// RedisRelay pattern-subscribes to all inbox topics and republishes what it
// receives into the local Hub.
type RedisRelay struct {
	client redis.UniversalClient
	hub    *Hub
	log    *zap.Logger
}

func NewRedisRelay(client redis.UniversalClient, hub *Hub, log *zap.Logger) *RedisRelay {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisRelay{client: client, hub: hub, log: log}
}

// Run blocks relaying events until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) error {
	ps := r.client.PSubscribe(ctx, TopicPrefix+"*")
	defer func() { _ = ps.Close() }()

	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("redis: subscribe: %w", err)
	}

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			r.relay(ctx, m)
		}
	}
}

func (r *RedisRelay) relay(ctx context.Context, m *redis.Message) {
	if !strings.HasPrefix(m.Channel, TopicPrefix) {
		return
	}
	var env envelope
	if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
		r.log.Warn("dropping malformed relay payload", zap.String("channel", m.Channel), zap.Error(err))
		return
	}
	if err := r.hub.Publish(ctx, m.Channel, env.Event, env.Except); err != nil {
		r.log.Debug("relay delivery failed", zap.String("channel", m.Channel), zap.Error(err))
	}
}
