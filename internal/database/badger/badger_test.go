package badger

import (
	"context"
	"errors"
	"testing"

	"github.com/kozaktomas/facelock/internal/database"
)

func openInMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{InMemory: true})
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_GetMissing(t *testing.T) {
	s := openInMemory(t)

	_, err := s.Get(context.Background(), "face_store/db_data")
	if !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_SetGet(t *testing.T) {
	s := openInMemory(t)
	ctx := context.Background()

	if err := s.Set(ctx, "k", []byte("first")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, "k", []byte("second")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("Get = %q, want %q", got, "second")
	}
}

func TestStore_CanceledContext(t *testing.T) {
	s := openInMemory(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Set(ctx, "k", []byte("v")); !errors.Is(err, context.Canceled) {
		t.Errorf("Set with canceled context: got %v, want context.Canceled", err)
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, context.Canceled) {
		t.Errorf("Get with canceled context: got %v, want context.Canceled", err)
	}
}

func TestOpen_RequiresPath(t *testing.T) {
	if _, err := Open(Config{}); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestStore_RoundTripsIdentityStore(t *testing.T) {
	s := openInMemory(t)
	ctx := context.Background()

	store := database.NewIdentityStore(database.StoreConfig{KV: s})
	vec := make([]float32, 512)
	vec[3] = 2
	if err := store.Upsert(4, vec); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := store.Persist(ctx); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	restored := database.NewIdentityStore(database.StoreConfig{KV: s})
	if err := restored.Restore(ctx); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if ids := restored.IDs(); len(ids) != 1 || ids[0] != 4 {
		t.Errorf("IDs = %v, want [4]", ids)
	}
	if restored.NextID() != 5 {
		t.Errorf("NextID = %d, want 5", restored.NextID())
	}
}
