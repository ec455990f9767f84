package chat

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// maxResolveAttempts bounds the probe/insert loop when concurrent callers keep
// winning the insert race.
const maxResolveAttempts = 3

// Resolver maps an unordered pair of users to their one chat, creating it on
// first contact.
type Resolver struct {
	chats ChatRepository
	users UserDirectory
	log   *zap.Logger
}

// NewResolver returns a Resolver backed by the given repositories.
func NewResolver(chats ChatRepository, users UserDirectory, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{chats: chats, users: users, log: log}
}

// ResolveOrCreate returns the id of the chat between currentUserID and
// otherUserID. It probes (current, other) then (other, current) and only then
// inserts (current, other). An insert that loses a race to a concurrent caller
// is answered by probing again.
func (r *Resolver) ResolveOrCreate(ctx context.Context, currentUserID, otherUserID string) (string, error) {
	currentUserID, otherUserID = CanonicalID(currentUserID), CanonicalID(otherUserID)
	if currentUserID == "" || otherUserID == "" || currentUserID == otherUserID {
		return "", ErrInvalidRecipient
	}
	if _, err := r.users.FindUser(ctx, otherUserID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrInvalidRecipient
		}
		return "", fmt.Errorf("%w: lookup recipient: %v", ErrPersistence, err)
	}

	for attempt := 1; attempt <= maxResolveAttempts; attempt++ {
		c, err := r.probe(ctx, currentUserID, otherUserID)
		if err == nil {
			return c.ID, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("%w: probe chat: %v", ErrPersistence, err)
		}

		c, err = r.chats.Create(ctx, currentUserID, otherUserID)
		if err == nil {
			r.log.Debug("chat created",
				zap.String("chat_id", c.ID),
				zap.String("sender_user_id", currentUserID),
				zap.String("recipient_user_id", otherUserID))
			return c.ID, nil
		}
		if !errors.Is(err, ErrConflict) {
			return "", fmt.Errorf("%w: create chat: %v", ErrPersistence, err)
		}
		r.log.Debug("chat create lost race, probing again", zap.Int("attempt", attempt))
	}
	return "", fmt.Errorf("resolve chat after %d attempts: %w", maxResolveAttempts, ErrConflict)
}

func (r *Resolver) probe(ctx context.Context, a, b string) (*Chat, error) {
	c, err := r.chats.FindByPair(ctx, a, b)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return c, err
	}
	return r.chats.FindByPair(ctx, b, a)
}
