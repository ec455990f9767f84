// Package chat implements two-party conversations: resolving the canonical
// chat for a pair of users, the encrypted message log and the orchestration
// behind the messaging endpoints.
package chat

import (
	"context"
	"strings"
	"time"
)

// CanonicalID returns the form of a hex id that is stored and compared.
// Hex parsing accepts either case, so "65A1" and "65a1" name the same record.
func CanonicalID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Chat is the single conversation between two users. SenderUserID is whoever
// made first contact; it carries no other meaning.
type Chat struct {
	ID              string
	SenderUserID    string
	RecipientUserID string
	CreatedAt       time.Time
}

// HasParticipant reports whether userID is one of the chat's two users.
func (c Chat) HasParticipant(userID string) bool {
	return userID != "" && (c.SenderUserID == userID || c.RecipientUserID == userID)
}

// Other returns the participant that is not userID.
func (c Chat) Other(userID string) string {
	if c.SenderUserID == userID {
		return c.RecipientUserID
	}
	return c.SenderUserID
}

// PairKey is the order-independent key for a pair of user ids. Storage keeps a
// unique index on it so both orderings map to one chat.
func PairKey(a, b string) string {
	a, b = CanonicalID(a), CanonicalID(b)
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

// Message is a decrypted message as handed to callers.
type Message struct {
	ID              string
	ChatID          string
	SenderUserID    string
	RecipientUserID string
	Body            string
	CreatedAt       time.Time
}

// StoredMessage is a message as persisted, body still sealed.
type StoredMessage struct {
	ID              string
	ChatID          string
	SenderUserID    string
	RecipientUserID string
	Ciphertext      string
	CreatedAt       time.Time
}

// Participant is the roster view of a user.
type Participant struct {
	UserID string
	Name   string
}

// ChatView is everything needed to render an open conversation.
type ChatView struct {
	Chat      Chat
	Recipient Participant
	Messages  []Message
}

// ChatRepository persists chats. FindBy* return ErrNotFound when nothing
// matches; Create returns ErrConflict when the pair already exists.
type ChatRepository interface {
	FindByID(ctx context.Context, id string) (*Chat, error)
	FindByPair(ctx context.Context, senderID, recipientID string) (*Chat, error)
	Create(ctx context.Context, senderID, recipientID string) (*Chat, error)
}

// MessageRepository persists sealed messages. ListByChat returns rows ordered
// by CreatedAt ascending with insertion order breaking ties.
type MessageRepository interface {
	Insert(ctx context.Context, msg StoredMessage) (StoredMessage, error)
	ListByChat(ctx context.Context, chatID string) ([]StoredMessage, error)
	FindByID(ctx context.Context, id string) (StoredMessage, error)
}

// UserDirectory is the read side of the auth collaborator.
type UserDirectory interface {
	FindUser(ctx context.Context, id string) (Participant, error)
	ListUsers(ctx context.Context) ([]Participant, error)
}

// Codec seals and opens message bodies.
type Codec interface {
	Encode(plaintext string) (string, error)
	Decode(ciphertext string) (string, error)
}

// Notifier signals a recipient's live sessions that a message exists. It must
// not block and has no error path: delivery is best effort.
type Notifier interface {
	Notify(msg Message, exceptSocketID string)
}

type nopNotifier struct{}

func (nopNotifier) Notify(Message, string) {}
