package db

import (
	"context"
	"os"
	"testing"
	"time"
)

// These tests are integration tests and require a running MongoDB instance.
// Set MONGODB_URI in the environment before running them.

func TestNewAndCreateIndexes(t *testing.T) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set; skipping integration test")
	}

	ctx := context.Background()
	c, err := NewWithDatabase(ctx, uri, "chat_db_test")
	if err != nil {
		t.Fatalf("failed to connect to DB: %v", err)
	}
	defer func() {
		_ = c.db.Drop(context.Background())
		_ = c.Close(context.Background())
	}()

	// should be able to create indexes without error, twice
	for i := 0; i < 2; i++ {
		if err := c.CreateIndexes(ctx); err != nil {
			t.Fatalf("CreateIndexes failed: %v", err)
		}
	}

	specs, err := c.ChatsCollection().Indexes().ListSpecifications(ctx)
	if err != nil {
		t.Fatalf("ListSpecifications failed: %v", err)
	}
	unique := 0
	for _, s := range specs {
		if s.Unique != nil && *s.Unique {
			unique++
		}
	}
	if unique != 2 {
		t.Fatalf("expected 2 unique chat indexes, got %d", unique)
	}

	time.Sleep(50 * time.Millisecond)
}

func TestNew_BadURI(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := New(ctx, "not-a-mongo-uri"); err == nil {
		t.Fatal("expected error for malformed URI")
	}
}
