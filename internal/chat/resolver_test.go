package chat_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/PaulBabatuyi/directChat/internal/chat"
	"github.com/PaulBabatuyi/directChat/internal/chattest"
	"github.com/stretchr/testify/require"
)

// lostRace hides the chat from the first round of probes and reports a
// conflict on insert, as if another request created it in between.
type lostRace struct {
	*chattest.Memory
	mu      sync.Mutex
	hidden  int
	creates int
	failAll bool
}

func (l *lostRace) FindByPair(ctx context.Context, s, r string) (*chat.Chat, error) {
	l.mu.Lock()
	if l.hidden > 0 {
		l.hidden--
		l.mu.Unlock()
		return nil, chat.ErrNotFound
	}
	l.mu.Unlock()
	return l.Memory.FindByPair(ctx, s, r)
}

func (l *lostRace) Create(ctx context.Context, s, r string) (*chat.Chat, error) {
	l.mu.Lock()
	l.creates++
	l.mu.Unlock()
	if l.failAll {
		return nil, chat.ErrConflict
	}
	if _, err := l.Memory.Create(ctx, s, r); err != nil {
		return nil, err
	}
	return nil, chat.ErrConflict
}

func TestResolver_RetriesAfterConflict(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	mem := chattest.NewMemory()
	mem.AddUser(alice, "Alice")
	mem.AddUser(bob, "Bob")

	repo := &lostRace{Memory: mem, hidden: 2}
	r := chat.NewResolver(repo, mem, nil)

	id, err := r.ResolveOrCreate(ctx, bob, alice)
	req.NoError(err)
	req.NotEmpty(id)
	req.Equal(1, repo.creates)
	req.Equal(1, mem.ChatCount())
}

func TestResolver_GivesUpAfterRepeatedConflicts(t *testing.T) {
	req := require.New(t)
	mem := chattest.NewMemory()
	mem.AddUser(bob, "Bob")

	repo := &lostRace{Memory: mem, failAll: true}
	r := chat.NewResolver(repo, mem, nil)

	_, err := r.ResolveOrCreate(context.Background(), alice, bob)
	req.ErrorIs(err, chat.ErrConflict)
	req.Equal(3, repo.creates)
}

type brokenChats struct{ *chattest.Memory }

func (brokenChats) FindByPair(context.Context, string, string) (*chat.Chat, error) {
	return nil, errors.New("connection reset")
}

func TestResolver_SurfacesStorageErrors(t *testing.T) {
	mem := chattest.NewMemory()
	mem.AddUser(bob, "Bob")
	r := chat.NewResolver(brokenChats{mem}, mem, nil)

	_, err := r.ResolveOrCreate(context.Background(), alice, bob)
	require.ErrorIs(t, err, chat.ErrPersistence)
}

// Scenario: simultaneous selections from both sides end with one chat row and
// both callers holding its id.
func TestResolver_ConcurrentSelectionsYieldOneChat(t *testing.T) {
	for round := 0; round < 50; round++ {
		mem := chattest.NewMemory()
		mem.AddUser(alice, "Alice")
		mem.AddUser(bob, "Bob")
		r := chat.NewResolver(mem, mem, nil)

		var (
			wg    sync.WaitGroup
			start = make(chan struct{})
			ids   [2]string
			errs  [2]error
		)
		pairs := [2][2]string{{alice, bob}, {bob, alice}}
		for i := range pairs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				ids[i], errs[i] = r.ResolveOrCreate(context.Background(), pairs[i][0], pairs[i][1])
			}(i)
		}
		close(start)
		wg.Wait()

		require.NoError(t, errs[0])
		require.NoError(t, errs[1])
		require.Equal(t, ids[0], ids[1])
		require.Equal(t, 1, mem.ChatCount())
	}
}

func TestResolver_IDsAreCaseInsensitive(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	dan, erin := "65a1f0c2b3d4e5f60718293a", "65a1f0c2b3d4e5f60718293b"
	mem := chattest.NewMemory()
	mem.AddUser(dan, "Dan")
	mem.AddUser(erin, "Erin")
	r := chat.NewResolver(mem, mem, nil)

	_, err := r.ResolveOrCreate(ctx, dan, strings.ToUpper(dan))
	req.ErrorIs(err, chat.ErrInvalidRecipient)
	req.Zero(mem.ChatCount())

	first, err := r.ResolveOrCreate(ctx, dan, strings.ToUpper(erin))
	req.NoError(err)
	second, err := r.ResolveOrCreate(ctx, erin, dan)
	req.NoError(err)
	req.Equal(first, second)
	req.Equal(1, mem.ChatCount())

	c, err := mem.FindByID(ctx, first)
	req.NoError(err)
	req.Equal(erin, c.RecipientUserID)
}
