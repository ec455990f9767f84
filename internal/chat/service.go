package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Service composes the resolver, the message log and the notifier into the
// operations behind the messaging endpoints.
type Service struct {
	users    UserDirectory
	chats    ChatRepository
	resolver *Resolver
	messages *MessageLog
	notifier Notifier
	log      *zap.Logger
}

// NewService returns a ready-to-use Service. A nil notifier disables push.
func NewService(users UserDirectory, chats ChatRepository, msgs MessageRepository, codec Codec, notifier Notifier, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Service{
		users:    users,
		chats:    chats,
		resolver: NewResolver(chats, users, log),
		messages: NewMessageLog(chats, msgs, codec, log),
		notifier: notifier,
		log:      log,
	}
}

// ListChats returns the roster: every user except the caller.
func (s *Service) ListChats(ctx context.Context, currentUserID string) ([]Participant, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list users: %v", ErrPersistence, err)
	}
	return lo.Filter(users, func(p Participant, _ int) bool {
		return p.UserID != CanonicalID(currentUserID)
	}), nil
}

// OpenChat returns the chat, the other participant and the decrypted history.
// Callers outside the chat get ErrNotAuthorized and nothing else.
func (s *Service) OpenChat(ctx context.Context, currentUserID, chatID string) (ChatView, error) {
	currentUserID = CanonicalID(currentUserID)
	c, err := s.authorize(ctx, currentUserID, chatID)
	if err != nil {
		return ChatView{}, err
	}

	otherID := c.Other(currentUserID)
	other, err := s.users.FindUser(ctx, otherID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return ChatView{}, fmt.Errorf("%w: lookup participant: %v", ErrPersistence, err)
		}
		other = Participant{UserID: otherID}
	}

	history, err := s.messages.History(ctx, c.ID)
	if err != nil {
		return ChatView{}, err
	}
	return ChatView{Chat: *c, Recipient: other, Messages: history}, nil
}

// SelectRecipient resolves or creates the chat with otherUserID.
func (s *Service) SelectRecipient(ctx context.Context, currentUserID, otherUserID string) (string, error) {
	return s.resolver.ResolveOrCreate(ctx, currentUserID, otherUserID)
}

// SendInput is a message submission from the current user.
type SendInput struct {
	CurrentUserID string
	ChatID        string
	RecipientID   string
	Text          string
	// SocketID identifies the sender's own live session so it is not echoed.
	SocketID string
}

// SendResult is the refreshed history after a send. Applied is false when the
// message was not stored; Cause then says why. An unchanged history with
// Applied=false therefore means the send failed, not that nothing happened.
type SendResult struct {
	Messages []Message
	Applied  bool
	Cause    error
}

// Send appends a message, signals the recipient, and returns the chat's full
// history. A failed append is logged and reported through the result, not the
// error; the error is reserved for failing to read the history back.
func (s *Service) Send(ctx context.Context, in SendInput) (SendResult, error) {
	in.CurrentUserID = CanonicalID(in.CurrentUserID)
	in.ChatID = CanonicalID(in.ChatID)
	in.RecipientID = CanonicalID(in.RecipientID)
	if _, err := s.authorize(ctx, in.CurrentUserID, in.ChatID); err != nil {
		s.log.Warn("send rejected",
			zap.String("chat_id", in.ChatID),
			zap.String("user_id", in.CurrentUserID),
			zap.Error(err))
		return SendResult{Cause: err}, nil
	}

	var res SendResult
	msg, err := s.messages.Append(ctx, in.ChatID, in.CurrentUserID, in.RecipientID, in.Text)
	if err != nil {
		s.log.Error("error creating message",
			zap.String("chat_id", in.ChatID),
			zap.String("user_id", in.CurrentUserID),
			zap.Error(err))
		res.Cause = err
	} else {
		res.Applied = true
		s.notifier.Notify(msg, in.SocketID)
	}

	history, err := s.messages.History(ctx, in.ChatID)
	if err != nil {
		return res, fmt.Errorf("reload history: %w", err)
	}
	res.Messages = history
	return res, nil
}

// Message returns one message of a chat the caller participates in.
func (s *Service) Message(ctx context.Context, currentUserID, chatID, messageID string) (Message, error) {
	if _, err := s.authorize(ctx, currentUserID, chatID); err != nil {
		return Message{}, err
	}
	msg, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return Message{}, err
	}
	if msg.ChatID != CanonicalID(chatID) {
		return Message{}, ErrNotFound
	}
	return msg, nil
}

func (s *Service) authorize(ctx context.Context, currentUserID, chatID string) (*Chat, error) {
	c, err := s.chats.FindByID(ctx, CanonicalID(chatID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: load chat: %v", ErrPersistence, err)
	}
	if !c.HasParticipant(CanonicalID(currentUserID)) {
		return nil, ErrNotAuthorized
	}
	return c, nil
}
