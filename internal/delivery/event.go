// Package delivery pushes refresh signals to users' live sessions.
//
// Every user has one private topic, "user-inbox.{user_id}". Any number of that
// user's sessions may subscribe to it. Delivery is best effort and at most
// once: with nobody subscribed the event is dropped, and the client picks the
// message up on its next history fetch.
package delivery

import "context"

const (
	// TopicPrefix namespaces per-user inbox topics.
	TopicPrefix = "user-inbox."

	EventMessageCreated = "message-created"
	EventConnected      = "connected"
)

// InboxTopic returns the private topic for userID.
func InboxTopic(userID string) string { return TopicPrefix + userID }

// Event is what subscribers receive. A message-created event carries only the
// recipient id; clients re-fetch history on receipt.
type Event struct {
	Name  string            `json:"event"`
	Topic string            `json:"topic"`
	Data  map[string]string `json:"data,omitempty"`
}

// Subscriber is one live session attached to a topic.
type Subscriber interface {
	Send(Event) error
}

// Publisher delivers evt to every subscriber of topic except the session
// identified by exceptID (empty excludes nobody).
type Publisher interface {
	Publish(ctx context.Context, topic string, evt Event, exceptID string) error
}
