package storage

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestFileStoreStageInputRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	data := []byte("fake-png-bytes")

	key, err := store.StageInput(ctx, "job-1", data)
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	if !strings.HasPrefix(key, "inputs/job-1/") {
		t.Fatalf("unexpected key %q", key)
	}

	got, err := store.Read(ctx, key)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("staged bytes differ: %q", got)
	}

	// Same bytes, same job, same key.
	again, err := store.StageInput(ctx, "job-1", data)
	if err != nil {
		t.Fatalf("restage: %v", err)
	}
	if again != key {
		t.Fatalf("expected stable key, got %q and %q", key, again)
	}
}

func TestFileStoreRejectsTraversalKeys(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := store.Write(context.Background(), "../escape", []byte("x")); err == nil {
		t.Fatal("expected traversal key to be rejected")
	}
}

func TestFileStoreRemoveMissingIsNoError(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.Remove(context.Background(), "inputs/none/missing"); err != nil {
		t.Fatalf("remove missing: %v", err)
	}
}
