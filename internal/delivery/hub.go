package delivery

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Hub tracks live sessions per topic inside this process. It maps a topic to
// one or more subscribers keyed by a generated socket id.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[string]Subscriber
}

// NewHub creates a new hub instance.
func NewHub() *Hub {
	return &Hub{topics: make(map[string]map[string]Subscriber)}
}

// Subscribe attaches s to topic and returns its socket id, which must be
// passed to Unsubscribe when the session ends.
func (h *Hub) Subscribe(topic string, s Subscriber) string {
	id := uuid.NewString()

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.topics[topic]; !ok {
		h.topics[topic] = make(map[string]Subscriber)
	}
	h.topics[topic][id] = s
	return id
}

// Unsubscribe removes a previously attached session.
func (h *Hub) Unsubscribe(topic, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.topics[topic]; ok {
		delete(subs, id)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
}

// Subscribers reports how many sessions are attached to topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Publish sends evt to every session on topic except exceptID. A topic with
// no sessions is not an error; the event is simply dropped. Sessions are sent
// to concurrently. Sessions whose Send fails, or that have not returned by the
// time ctx is done, are detached and the first such error is returned.
func (h *Hub) Publish(ctx context.Context, topic string, evt Event, exceptID string) error {
	h.mu.RLock()
	targets := make(map[string]Subscriber, len(h.topics[topic]))
	for id, s := range h.topics[topic] {
		if id != exceptID {
			targets[id] = s
		}
	}
	h.mu.RUnlock()

	type sendResult struct {
		id  string
		err error
	}
	results := make(chan sendResult, len(targets))
	for id, s := range targets {
		go func(id string, s Subscriber) {
			results <- sendResult{id: id, err: s.Send(evt)}
		}(id, s)
	}

	var firstErr error
	var failed []string
wait:
	for pending := len(targets); pending > 0; pending-- {
		select {
		case r := <-results:
			delete(targets, r.id)
			if r.err != nil {
				if firstErr == nil {
					firstErr = r.err
				}
				failed = append(failed, r.id)
			}
		case <-ctx.Done():
			for id := range targets {
				failed = append(failed, id)
			}
			if firstErr == nil {
				firstErr = ctx.Err()
			}
			break wait
		}
	}

	for _, id := range failed {
		h.Unsubscribe(topic, id)
	}
	return firstErr
}
