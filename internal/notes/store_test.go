package notes

import (
	"context"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestGetMissingNoteReturnsEmpty(t *testing.T) {
	store := openTestStore(t)

	note, err := store.Get(context.Background(), "+15550100")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if note != "" {
		t.Fatalf("note = %q, want empty", note)
	}
}

func TestPutAndGetRoundtrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "+15550100", "asked for a callback"); err != nil {
		t.Fatalf("put: %v", err)
	}

	note, err := store.Get(ctx, "+15550100")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if note != "asked for a callback" {
		t.Fatalf("note = %q", note)
	}
}

func TestPutReplacesExistingNote(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "+15550100", "first"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Put(ctx, "+15550100", "second"); err != nil {
		t.Fatalf("put: %v", err)
	}

	note, err := store.Get(ctx, "+15550100")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if note != "second" {
		t.Fatalf("note = %q, want second", note)
	}

	records, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("record count = %d, want 1", len(records))
	}
}

func TestNotesSurviveReopen(t *testing.T) {
	workspace := t.TempDir()
	ctx := context.Background()

	store, err := Open(workspace)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Put(ctx, "+15550100", "persisted"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(workspace)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	note, err := reopened.Get(ctx, "+15550100")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if note != "persisted" {
		t.Fatalf("note = %q, want persisted", note)
	}
}
