package data

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/PaulBabatuyi/directChat/internal/chat"
)

// User maps to users collection (id, email, display name, password hash, timestamps)
type User struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	Email     string        `bson:"email"`
	Name      string        `bson:"name"`
	Password  string        `bson:"password"`
	CreatedAt time.Time     `bson:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at"`
}

// Chat maps to chats collection. PairKey is the sorted "a:b" form of the two
// participant ids and carries a unique index.
type Chat struct {
	ID              bson.ObjectID `bson:"_id,omitempty"`
	SenderUserID    bson.ObjectID `bson:"sender_user_id"`
	RecipientUserID bson.ObjectID `bson:"recipient_user_id"`
	PairKey         string        `bson:"pair_key"`
	CreatedAt       time.Time     `bson:"created_at"`
}

// Message maps to messages collection; Body holds the sealed envelope, never plaintext.
type Message struct {
	ID              bson.ObjectID `bson:"_id,omitempty"`
	ChatID          bson.ObjectID `bson:"chat_id"`
	SenderUserID    bson.ObjectID `bson:"sender_user_id"`
	RecipientUserID bson.ObjectID `bson:"recipient_user_id"`
	Body            string        `bson:"message"`
	CreatedAt       time.Time     `bson:"created_at"`
}

func (c *Chat) domain() *chat.Chat {
	return &chat.Chat{
		ID:              c.ID.Hex(),
		SenderUserID:    c.SenderUserID.Hex(),
		RecipientUserID: c.RecipientUserID.Hex(),
		CreatedAt:       c.CreatedAt,
	}
}

func (m *Message) domain() chat.StoredMessage {
	return chat.StoredMessage{
		ID:              m.ID.Hex(),
		ChatID:          m.ChatID.Hex(),
		SenderUserID:    m.SenderUserID.Hex(),
		RecipientUserID: m.RecipientUserID.Hex(),
		Ciphertext:      m.Body,
		CreatedAt:       m.CreatedAt,
	}
}

func (u *User) participant() chat.Participant {
	return chat.Participant{UserID: u.ID.Hex(), Name: u.Name}
}
