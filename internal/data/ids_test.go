package data

import (
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/PaulBabatuyi/directChat/internal/chat"
)

func TestObjectIDs(t *testing.T) {
	id := bson.NewObjectID()

	got, err := objectIDs(id.Hex(), id.Hex())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != id {
		t.Fatalf("unexpected ids: %v", got)
	}

	for _, bad := range []string{"", "xyz", "0123456789abcdef0123456"} {
		if _, err := objectIDs(id.Hex(), bad); !errors.Is(err, chat.ErrNotFound) {
			t.Fatalf("%q: expected ErrNotFound, got %v", bad, err)
		}
	}
}
