package storage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mod-ship/Mod-ai-assistant/internal/storage"
)

func TestFileRoundTrip(t *testing.T) {
	kv, err := storage.NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create file backend: %v", err)
	}
	ctx := context.Background()

	if _, err := kv.Get(ctx, storage.KeyConversations); !errors.Is(err, storage.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound for missing key, got %v", err)
	}

	doc := []byte(`{"conversations":[]}`)
	if err := kv.Set(ctx, storage.KeyConversations, doc); err != nil {
		t.Fatalf("set returned error: %v", err)
	}

	got, err := kv.Get(ctx, storage.KeyConversations)
	if err != nil {
		t.Fatalf("get returned error: %v", err)
	}
	if string(got) != string(doc) {
		t.Fatalf("expected %s, got %s", doc, got)
	}

	// overwrite is whole-document
	doc2 := []byte(`{"conversations":[{"id":"c1"}]}`)
	if err := kv.Set(ctx, storage.KeyConversations, doc2); err != nil {
		t.Fatalf("overwrite returned error: %v", err)
	}
	got, _ = kv.Get(ctx, storage.KeyConversations)
	if string(got) != string(doc2) {
		t.Fatalf("expected overwritten document, got %s", got)
	}

	if err := kv.Delete(ctx, storage.KeyConversations); err != nil {
		t.Fatalf("delete returned error: %v", err)
	}
	if _, err := kv.Get(ctx, storage.KeyConversations); !errors.Is(err, storage.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound after delete, got %v", err)
	}

	// deleting a missing key is not an error
	if err := kv.Delete(ctx, storage.KeyConversations); err != nil {
		t.Fatalf("delete of missing key returned error: %v", err)
	}
}

func TestFileRejectsPathTraversalKeys(t *testing.T) {
	kv, err := storage.NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create file backend: %v", err)
	}

	for _, key := range []string{"", "../escape", "a/b", ".hidden"} {
		if err := kv.Set(context.Background(), key, []byte("{}")); err == nil {
			t.Errorf("expected key %q to be rejected", key)
		}
	}
}
