// Package chattest provides in-memory implementations of the chat
// repositories for tests.
package chattest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/PaulBabatuyi/directChat/internal/chat"
)

// UserID formats n as a 24-character hex id, the same shape as a Mongo ObjectID.
func UserID(n int) string { return fmt.Sprintf("%024x", n) }

// Memory stores users, chats and messages in maps. It enforces the same pair
// uniqueness the Mongo indexes do. Zero value is not usable; call NewMemory.
type Memory struct {
	mu       sync.Mutex
	seq      int
	users    []chat.Participant
	chats    map[string]*chat.Chat
	pairs    map[string]string
	ordered  map[string]string
	messages []stored

	// Set to make the corresponding operation fail.
	FailInsert error
	FailList   error
	FailFind   error

	// OnProbe runs (without the lock held) before each FindByPair.
	OnProbe func()
}

type stored struct {
	seq int
	msg chat.StoredMessage
}

func NewMemory() *Memory {
	return &Memory{
		chats:   map[string]*chat.Chat{},
		pairs:   map[string]string{},
		ordered: map[string]string{},
	}
}

func (m *Memory) nextID() string {
	m.seq++
	return UserID(1_000_000 + m.seq)
}

// AddUser registers a user in the directory.
func (m *Memory) AddUser(id, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = append(m.users, chat.Participant{UserID: id, Name: name})
}

func (m *Memory) FindUser(_ context.Context, id string) (chat.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.UserID == id {
			return u, nil
		}
	}
	return chat.Participant{}, chat.ErrNotFound
}

func (m *Memory) ListUsers(context.Context) ([]chat.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]chat.Participant(nil), m.users...), nil
}

func (m *Memory) FindByID(_ context.Context, id string) (*chat.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailFind != nil {
		return nil, m.FailFind
	}
	c, ok := m.chats[id]
	if !ok {
		return nil, chat.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *Memory) FindByPair(_ context.Context, senderID, recipientID string) (*chat.Chat, error) {
	if m.OnProbe != nil {
		m.OnProbe()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.ordered[senderID+">"+recipientID]
	if !ok {
		return nil, chat.ErrNotFound
	}
	cp := *m.chats[id]
	return &cp, nil
}

func (m *Memory) Create(_ context.Context, senderID, recipientID string) (*chat.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := chat.PairKey(senderID, recipientID)
	if _, ok := m.pairs[key]; ok {
		return nil, chat.ErrConflict
	}
	c := &chat.Chat{
		ID:              m.nextID(),
		SenderUserID:    senderID,
		RecipientUserID: recipientID,
		CreatedAt:       time.Now().UTC(),
	}
	m.chats[c.ID] = c
	m.pairs[key] = c.ID
	m.ordered[senderID+">"+recipientID] = c.ID
	cp := *c
	return &cp, nil
}

// ChatCount reports how many chats exist.
func (m *Memory) ChatCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.chats)
}

// Messages returns the message repository view of m.
func (m *Memory) Messages() *MessageStore { return &MessageStore{m: m} }

// MessageStore is the chat.MessageRepository side of a Memory.
type MessageStore struct{ m *Memory }

func (s *MessageStore) Insert(_ context.Context, msg chat.StoredMessage) (chat.StoredMessage, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailInsert != nil {
		return chat.StoredMessage{}, m.FailInsert
	}
	msg.ID = m.nextID()
	m.messages = append(m.messages, stored{seq: m.seq, msg: msg})
	return msg, nil
}

func (s *MessageStore) ListByChat(_ context.Context, chatID string) ([]chat.StoredMessage, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailList != nil {
		return nil, m.FailList
	}
	var rows []stored
	for _, r := range m.messages {
		if r.msg.ChatID == chatID {
			rows = append(rows, r)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].msg.CreatedAt.Equal(rows[j].msg.CreatedAt) {
			return rows[i].msg.CreatedAt.Before(rows[j].msg.CreatedAt)
		}
		return rows[i].seq < rows[j].seq
	})
	out := make([]chat.StoredMessage, len(rows))
	for i, r := range rows {
		out[i] = r.msg
	}
	return out, nil
}

func (s *MessageStore) FindByID(_ context.Context, id string) (chat.StoredMessage, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.messages {
		if r.msg.ID == id {
			return r.msg, nil
		}
	}
	return chat.StoredMessage{}, chat.ErrNotFound
}

// Count reports how many messages exist across all chats.
func (s *MessageStore) Count() int {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return len(s.m.messages)
}
