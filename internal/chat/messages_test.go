package chat_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/PaulBabatuyi/directChat/internal/chat"
	"github.com/PaulBabatuyi/directChat/internal/chattest"
	"github.com/stretchr/testify/require"
)

func newLog(t *testing.T) (*chat.MessageLog, *chattest.Memory, string) {
	t.Helper()
	mem := chattest.NewMemory()
	c, err := mem.Create(context.Background(), alice, bob)
	require.NoError(t, err)
	return chat.NewMessageLog(mem, mem.Messages(), newCodec(t, 1), nil), mem, c.ID
}

func TestMessageLog_AppendEitherDirection(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	log, _, chatID := newLog(t)

	m1, err := log.Append(ctx, chatID, alice, bob, "hi bob")
	req.NoError(err)
	req.Equal("hi bob", m1.Body)
	req.NotEmpty(m1.ID)

	m2, err := log.Append(ctx, chatID, bob, alice, "hi alice")
	req.NoError(err)
	req.Equal(bob, m2.SenderUserID)

	history, err := log.History(ctx, chatID)
	req.NoError(err)
	req.Equal([]chat.Message{m1, m2}, history)
}

func TestMessageLog_StoresCiphertextOnly(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	log, mem, chatID := newLog(t)

	m, err := log.Append(ctx, chatID, alice, bob, "top secret")
	req.NoError(err)

	row, err := mem.Messages().FindByID(ctx, m.ID)
	req.NoError(err)
	req.NotContains(row.Ciphertext, "top secret")
}

// Scenario: a recipient outside the chat fails validation and writes nothing.
func TestMessageLog_AppendRejectsMismatchedParticipants(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	log, mem, chatID := newLog(t)

	for _, tc := range []struct{ sender, recipient string }{
		{alice, carol},
		{carol, bob},
		{alice, alice},
	} {
		_, err := log.Append(ctx, chatID, tc.sender, tc.recipient, "nope")
		req.ErrorIs(err, chat.ErrParticipantMismatch)
	}
	req.Zero(mem.Messages().Count())
}

func TestMessageLog_AppendRejectsUnknownChatAndEmptyBody(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	log, mem, chatID := newLog(t)

	_, err := log.Append(ctx, chattest.UserID(77), alice, bob, "hello")
	req.ErrorIs(err, chat.ErrNotFound)

	_, err = log.Append(ctx, chatID, alice, bob, "<p>  </p>")
	req.ErrorIs(err, chat.ErrEmptyMessage)
	req.Zero(mem.Messages().Count())
}

// Ordering follows stored timestamps, not call order.
func TestMessageLog_HistoryOrdersByCreatedAt(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	mem := chattest.NewMemory()
	c, err := mem.Create(ctx, alice, bob)
	req.NoError(err)
	codec := newCodec(t, 1)

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for _, tc := range []struct {
		body string
		at   time.Time
	}{
		{"third", base.Add(2 * time.Second)},
		{"first", base},
		{"second-a", base.Add(time.Second)},
		{"second-b", base.Add(time.Second)},
	} {
		sealed, err := codec.Encode(tc.body)
		req.NoError(err)
		_, err = mem.Messages().Insert(ctx, chat.StoredMessage{ChatID: c.ID, SenderUserID: alice, RecipientUserID: bob, Ciphertext: sealed, CreatedAt: tc.at})
		req.NoError(err)
	}

	history, err := chat.NewMessageLog(mem, mem.Messages(), codec, nil).History(ctx, c.ID)
	req.NoError(err)
	var bodies []string
	for i, m := range history {
		bodies = append(bodies, m.Body)
		if i > 0 {
			req.False(m.CreatedAt.Before(history[i-1].CreatedAt))
		}
	}
	req.Equal([]string{"first", "second-a", "second-b", "third"}, bodies)
}

func TestMessageLog_HistorySkipsUndecryptableRows(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	log, mem, chatID := newLog(t)

	_, err := log.Append(ctx, chatID, alice, bob, "readable")
	req.NoError(err)

	foreign, err := newCodec(t, 9).Encode("rotated away")
	req.NoError(err)
	_, err = mem.Messages().Insert(ctx, chat.StoredMessage{ChatID: chatID, SenderUserID: bob, RecipientUserID: alice, Ciphertext: foreign, CreatedAt: time.Now()})
	req.NoError(err)
	_, err = mem.Messages().Insert(ctx, chat.StoredMessage{ChatID: chatID, SenderUserID: bob, RecipientUserID: alice, Ciphertext: "garbage", CreatedAt: time.Now()})
	req.NoError(err)

	history, err := log.History(ctx, chatID)
	req.NoError(err)
	req.Len(history, 1)
	req.Equal("readable", history[0].Body)
}

func TestMessageLog_GetSurfacesRetrievalError(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	log, mem, chatID := newLog(t)

	bad, err := mem.Messages().Insert(ctx, chat.StoredMessage{ChatID: chatID, Ciphertext: "k1.AAAA"})
	req.NoError(err)

	_, err = log.Get(ctx, bad.ID)
	req.ErrorIs(err, chat.ErrRetrieval)
	req.ErrorIs(err, chat.ErrDecryption)

	_, err = log.Get(ctx, chattest.UserID(5))
	req.ErrorIs(err, chat.ErrNotFound)
}

func TestMessageLog_HistoryStorageError(t *testing.T) {
	log, mem, chatID := newLog(t)
	mem.FailList = errors.New("timeout")
	_, err := log.History(context.Background(), chatID)
	require.ErrorIs(t, err, chat.ErrPersistence)
}
