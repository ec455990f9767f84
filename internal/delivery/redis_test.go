package delivery

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Requires a running Redis; set REDIS_URL to enable.
func TestRedisRelay_RoundTrip(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set; skipping integration test")
	}
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := NewRedisClient(ctx, url)
	req.NoError(err)
	defer client.Close()

	hub := NewHub()
	sub := &fakeSubscriber{}
	own := &fakeSubscriber{}
	topic := InboxTopic("relay-test")
	hub.Subscribe(topic, sub)
	ownID := hub.Subscribe(topic, own)

	relay := NewRedisRelay(client, hub, nil)
	go func() { _ = relay.Run(ctx) }()

	pub := NewRedisPublisher(client)
	req.Eventually(func() bool {
		_ = pub.Publish(ctx, topic, Event{Name: EventMessageCreated, Topic: topic}, ownID)
		return sub.count() > 0
	}, 3*time.Second, 50*time.Millisecond)
	req.Zero(own.count())
}

func TestNewRedisClient_RejectsBadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "")
	require.Error(t, err)
	_, err = NewRedisClient(context.Background(), "not-a-url://")
	require.Error(t, err)
}
