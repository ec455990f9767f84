package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PaulBabatuyi/directChat/internal/crypto"
	"go.uber.org/zap"
)

// MessageLog is the message store: it validates, seals and persists messages
// and reads a chat's history back in order.
type MessageLog struct {
	chats ChatRepository
	msgs  MessageRepository
	codec Codec
	log   *zap.Logger
	now   func() time.Time
}

// NewMessageLog wires a MessageLog. The codec is required; there is no
// plaintext fallback.
func NewMessageLog(chats ChatRepository, msgs MessageRepository, codec Codec, log *zap.Logger) *MessageLog {
	if log == nil {
		log = zap.NewNop()
	}
	return &MessageLog{
		chats: chats,
		msgs:  msgs,
		codec: codec,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Append stores a message from senderID to recipientID in chatID. The pair must
// be exactly the chat's two participants, in either order.
func (l *MessageLog) Append(ctx context.Context, chatID, senderID, recipientID, plaintext string) (Message, error) {
	chatID, senderID, recipientID = CanonicalID(chatID), CanonicalID(senderID), CanonicalID(recipientID)
	c, err := l.chats.FindByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Message{}, err
		}
		return Message{}, fmt.Errorf("%w: load chat %s: %v", ErrPersistence, chatID, err)
	}
	if senderID == recipientID || !c.HasParticipant(senderID) || !c.HasParticipant(recipientID) {
		return Message{}, ErrParticipantMismatch
	}

	body := crypto.StripTags(plaintext)
	if strings.TrimSpace(body) == "" {
		return Message{}, ErrEmptyMessage
	}
	sealed, err := l.codec.Encode(plaintext)
	if err != nil {
		return Message{}, fmt.Errorf("encode message: %w", err)
	}

	// Mongo keeps millisecond precision; truncate so the returned timestamp
	// matches what a later read yields.
	stored, err := l.msgs.Insert(ctx, StoredMessage{
		ChatID:          c.ID,
		SenderUserID:    senderID,
		RecipientUserID: recipientID,
		Ciphertext:      sealed,
		CreatedAt:       l.now().Truncate(time.Millisecond),
	})
	if err != nil {
		return Message{}, fmt.Errorf("%w: insert message: %v", ErrPersistence, err)
	}
	return toMessage(stored, body), nil
}

// History returns every message of chatID, oldest first. Rows that fail to
// decrypt are logged and left out rather than failing the whole read.
func (l *MessageLog) History(ctx context.Context, chatID string) ([]Message, error) {
	rows, err := l.msgs.ListByChat(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("%w: list messages: %v", ErrPersistence, err)
	}
	out := make([]Message, 0, len(rows))
	for _, row := range rows {
		body, err := l.codec.Decode(row.Ciphertext)
		if err != nil {
			l.log.Warn("skipping undecryptable message",
				zap.String("chat_id", chatID),
				zap.String("message_id", row.ID),
				zap.Error(err))
			continue
		}
		out = append(out, toMessage(row, body))
	}
	return out, nil
}

// Get returns a single decrypted message.
func (l *MessageLog) Get(ctx context.Context, messageID string) (Message, error) {
	row, err := l.msgs.FindByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Message{}, err
		}
		return Message{}, fmt.Errorf("%w: find message: %v", ErrPersistence, err)
	}
	body, err := l.codec.Decode(row.Ciphertext)
	if err != nil {
		l.log.Warn("message failed to decrypt", zap.String("message_id", messageID), zap.Error(err))
		return Message{}, fmt.Errorf("%w: %w", ErrRetrieval, err)
	}
	return toMessage(row, body), nil
}

func toMessage(row StoredMessage, body string) Message {
	return Message{
		ID:              row.ID,
		ChatID:          row.ChatID,
		SenderUserID:    row.SenderUserID,
		RecipientUserID: row.RecipientUserID,
		Body:            body,
		CreatedAt:       row.CreatedAt,
	}
}
