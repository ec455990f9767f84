package data

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"github.com/PaulBabatuyi/directChat/internal/chat"
)

func TestChatsCreateAndFind(t *testing.T) {
	c := setupDB(t)
	chats := NewChatsStore(c.ChatsCollection())
	ctx := context.Background()

	a, b := bson.NewObjectID().Hex(), bson.NewObjectID().Hex()

	if _, err := chats.FindByPair(ctx, a, b); !errors.Is(err, chat.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before create, got %v", err)
	}

	created, err := chats.Create(ctx, a, b)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.SenderUserID != a || created.RecipientUserID != b {
		t.Fatalf("participants not preserved: %+v", created)
	}

	got, err := chats.FindByID(ctx, created.ID)
	if err != nil || got.ID != created.ID {
		t.Fatalf("FindByID: %+v %v", got, err)
	}

	// ordered lookup only
	if _, err := chats.FindByPair(ctx, b, a); !errors.Is(err, chat.ErrNotFound) {
		t.Fatalf("reverse probe should miss, got %v", err)
	}

	// either order conflicts on the pair index
	if _, err := chats.Create(ctx, a, b); !errors.Is(err, chat.ErrConflict) {
		t.Fatalf("expected ErrConflict for same order, got %v", err)
	}
	if _, err := chats.Create(ctx, b, a); !errors.Is(err, chat.ErrConflict) {
		t.Fatalf("expected ErrConflict for reverse order, got %v", err)
	}
}

func TestChatsCreate_PairKeyIgnoresHexCase(t *testing.T) {
	c := setupDB(t)
	chats := NewChatsStore(c.ChatsCollection())
	ctx := context.Background()

	a, b := bson.NewObjectID().Hex(), bson.NewObjectID().Hex()
	if _, err := chats.Create(ctx, a, strings.ToUpper(b)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := chats.Create(ctx, b, a); !errors.Is(err, chat.ErrConflict) {
		t.Fatalf("expected ErrConflict for mixed-case pair, got %v", err)
	}

	var doc Chat
	if err := c.ChatsCollection().FindOne(ctx, bson.M{}).Decode(&doc); err != nil {
		t.Fatal(err)
	}
	if doc.PairKey != chat.PairKey(a, b) {
		t.Fatalf("pair_key = %q, want %q", doc.PairKey, chat.PairKey(a, b))
	}
}

func TestResolverAgainstMongo(t *testing.T) {
	c := setupDB(t)
	users := NewUsersStore(c.UsersCollection())
	chats := NewChatsStore(c.ChatsCollection())
	ctx := context.Background()

	u1, err := users.CreateUser(ctx, "one@example.com", "one", "h")
	if err != nil {
		t.Fatal(err)
	}
	u2, err := users.CreateUser(ctx, "two@example.com", "two", "h")
	if err != nil {
		t.Fatal(err)
	}

	r := chat.NewResolver(chats, users, zap.NewNop())

	var wg sync.WaitGroup
	ids := make([]string, 20)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cur, other := u1.ID.Hex(), u2.ID.Hex()
			if i%2 == 1 {
				cur, other = other, cur
			}
			id, err := r.ResolveOrCreate(ctx, cur, other)
			if err != nil {
				t.Errorf("ResolveOrCreate: %v", err)
				return
			}
			ids[i] = id
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		if id != ids[0] {
			t.Fatalf("resolver produced two chats: %v", ids)
		}
	}
	n, err := c.ChatsCollection().CountDocuments(ctx, bson.M{})
	if err != nil || n != 1 {
		t.Fatalf("expected exactly one chat row, got %d (%v)", n, err)
	}
}
