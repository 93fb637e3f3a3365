// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/elsirion/fedi-ppq-mod/internal/model"
)

func newTestStore(t *testing.T) (*ConversationStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conversations.json")
	store, err := NewConversationStore(path)
	if err != nil {
		t.Fatalf("NewConversationStore failed: %v", err)
	}
	return store, path
}

func conversationWith(t *testing.T, msgs ...model.Message) *model.Conversation {
	t.Helper()
	conv := model.NewConversation()
	for _, m := range msgs {
		conv.Append(m)
	}
	return conv
}

func TestConversationStore_EmptyOnFirstRun(t *testing.T) {
	store, _ := newTestStore(t)
	if store.Len() != 0 {
		t.Errorf("expected empty store, got %d conversations", store.Len())
	}
}

func TestConversationStore_PrependAndGet(t *testing.T) {
	store, _ := newTestStore(t)

	conv := conversationWith(t, model.NewUserMessage("hello"))
	if err := store.Prepend(conv); err != nil {
		t.Fatalf("Prepend failed: %v", err)
	}

	got, err := store.Get(conv.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ID != conv.ID || len(got.Messages) != 1 {
		t.Errorf("Get returned %+v", got)
	}

	_, err = store.Get("missing")
	if !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("expected ErrConversationNotFound, got %v", err)
	}
}

func TestConversationStore_PrependOrdering(t *testing.T) {
	store, _ := newTestStore(t)

	first := model.NewConversation()
	second := model.NewConversation()
	store.Prepend(first)
	store.Prepend(second)

	list := store.List()
	if len(list) != 2 {
		t.Fatalf("List length = %d, want 2", len(list))
	}
	if list[0].ID != second.ID {
		t.Error("most recent conversation should be first")
	}
	if first.ID == second.ID {
		t.Error("back-to-back conversations must have distinct IDs")
	}
}

func TestConversationStore_RoundTrip(t *testing.T) {
	store, path := newTestStore(t)

	a := conversationWith(t,
		model.NewUserMessage("first question"),
		model.NewAssistantMessage("first answer"),
		model.NewErrorMessage("Error: transient"),
	)
	b := conversationWith(t, model.NewUserMessage("second"))
	b.ApplySummary("A short summary")

	store.Prepend(a)
	store.Prepend(b)

	// Reload from disk.
	reloaded, err := NewConversationStore(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	list := reloaded.List()
	if len(list) != 2 {
		t.Fatalf("List length = %d, want 2", len(list))
	}
	if list[0].ID != b.ID || list[1].ID != a.ID {
		t.Error("collection order must survive the round trip")
	}
	if list[0].Summary != "A short summary" {
		t.Errorf("Summary = %q", list[0].Summary)
	}

	gotA := list[1]
	if len(gotA.Messages) != 3 {
		t.Fatalf("message count = %d, want 3", len(gotA.Messages))
	}
	wantRoles := []model.Role{model.RoleUser, model.RoleAssistant, model.RoleError}
	for i, want := range wantRoles {
		if gotA.Messages[i].Role != want {
			t.Errorf("message %d role = %q, want %q", i, gotA.Messages[i].Role, want)
		}
	}
}

func TestConversationStore_MigratesBareArray(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conversations.json")

	// The legacy shape: a bare array, no envelope, no summary field.
	legacy := `[
  {"id": "1700000000000", "title": "Old chat", "messages": [{"role": "user", "content": "hi"}], "created_at": "2023-11-14T22:13:20Z"}
]`
	if err := os.WriteFile(path, []byte(legacy), 0644); err != nil {
		t.Fatal(err)
	}

	store, err := NewConversationStore(path)
	if err != nil {
		t.Fatalf("NewConversationStore failed: %v", err)
	}

	conv, err := store.Get("1700000000000")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if conv.Title != "Old chat" || conv.Summary != "" {
		t.Errorf("migrated conversation = %+v", conv)
	}

	// Saving rewrites with the current schema version.
	if err := store.Update(conv); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), `"schema_version": 1`) {
		t.Error("saved document should carry schema_version 1")
	}
}

func TestConversationStore_Update(t *testing.T) {
	store, _ := newTestStore(t)

	conv := conversationWith(t, model.NewUserMessage("q"))
	store.Prepend(conv)

	conv.Append(model.NewAssistantMessage("a"))
	conv.DeriveTitle()
	if err := store.Update(conv); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, _ := store.Get(conv.ID)
	if len(got.Messages) != 2 {
		t.Errorf("message count = %d, want 2", len(got.Messages))
	}
	if got.Title != "q" {
		t.Errorf("Title = %q", got.Title)
	}

	if err := store.Update(model.NewConversation()); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("updating an unknown conversation should fail, got %v", err)
	}
}

func TestConversationStore_UpdateFuncHoldsLockAcrossReadModifyWrite(t *testing.T) {
	store, _ := newTestStore(t)

	conv := conversationWith(t, model.NewUserMessage("start"))
	store.Prepend(conv)

	// Two writers append concurrently. Without a single critical section
	// around the read-modify-write, appends would overwrite each other.
	const perWriter = 20
	var wg sync.WaitGroup
	for w := 0; w < 2; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				err := store.UpdateFunc(conv.ID, func(c *model.Conversation) {
					c.Append(model.NewAssistantMessage("a"))
				})
				if err != nil {
					t.Errorf("UpdateFunc failed: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	got, _ := store.Get(conv.ID)
	if len(got.Messages) != 1+2*perWriter {
		t.Errorf("message count = %d, want %d", len(got.Messages), 1+2*perWriter)
	}

	err := store.UpdateFunc("missing", func(*model.Conversation) {})
	if !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("updating an unknown conversation should fail, got %v", err)
	}
}

func TestConversationStore_Delete(t *testing.T) {
	store, _ := newTestStore(t)

	conv := conversationWith(t, model.NewUserMessage("bye"))
	store.Prepend(conv)

	if err := store.Delete(conv.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if store.Exists(conv.ID) {
		t.Error("conversation should be gone after Delete")
	}
	if err := store.Delete(conv.ID); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("double delete should report not found, got %v", err)
	}
}

func TestConversationStore_ListReturnsCopies(t *testing.T) {
	store, _ := newTestStore(t)

	conv := conversationWith(t, model.NewUserMessage("x"))
	store.Prepend(conv)

	list := store.List()
	list[0].Append(model.NewAssistantMessage("mutated"))

	got, _ := store.Get(conv.ID)
	if len(got.Messages) != 1 {
		t.Error("mutating a listed conversation must not affect the store")
	}
}
