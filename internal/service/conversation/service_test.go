package conversation_test

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/kmondie/nebula-edge/backend/internal/model/chat"
	"github.com/kmondie/nebula-edge/backend/internal/model/identity"
	"github.com/kmondie/nebula-edge/backend/internal/service/conversation"
	"github.com/kmondie/nebula-edge/backend/internal/store"
)

func newService(t *testing.T) (*conversation.Service, *store.KV) {
	t.Helper()

	kv, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}
	t.Cleanup(func() { kv.Close() })

	svc, err := conversation.NewService(kv, identity.NewMemoryStore(identity.Seed()))
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}
	return svc, kv
}

func TestSeedsDefaultSession(t *testing.T) {
	svc, _ := newService(t)

	current, err := svc.CurrentSession()
	if err != nil {
		t.Fatalf("CurrentSession err: %v", err)
	}
	if current.Title != conversation.DefaultTitle {
		t.Fatalf("unexpected seed title: %s", current.Title)
	}
	if len(current.Messages) != 0 {
		t.Fatalf("seed session should be empty")
	}
}

func TestCreateSessionPrependsAndSelects(t *testing.T) {
	svc, _ := newService(t)

	created := svc.CreateSession()

	sessions := svc.Sessions(identity.DefaultName)
	if sessions[0].ID != created.ID {
		t.Fatalf("new session not first: got %s", sessions[0].ID)
	}

	current, err := svc.CurrentSession()
	if err != nil {
		t.Fatalf("CurrentSession err: %v", err)
	}
	if current.ID != created.ID {
		t.Fatalf("new session not current")
	}
}

func TestAppendOrderPreserved(t *testing.T) {
	svc, _ := newService(t)
	session := svc.CreateSession()

	const turns = 5
	for i := 0; i < turns; i++ {
		if _, err := svc.AppendMessage(session.ID, chat.Message{
			Role:    chat.RoleUser,
			Content: fmt.Sprintf("user %d", i),
		}); err != nil {
			t.Fatalf("append user err: %v", err)
		}
		if _, err := svc.AppendMessage(session.ID, chat.Message{
			Role:    chat.RoleAssistant,
			Content: fmt.Sprintf("reply %d", i),
		}); err != nil {
			t.Fatalf("append assistant err: %v", err)
		}
	}

	got, err := svc.GetSession(session.ID)
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}
	if len(got.Messages) != 2*turns {
		t.Fatalf("expected %d messages, got %d", 2*turns, len(got.Messages))
	}
	for i := 0; i < turns; i++ {
		if got.Messages[2*i].Content != fmt.Sprintf("user %d", i) {
			t.Fatalf("user turn %d out of order: %s", i, got.Messages[2*i].Content)
		}
		if got.Messages[2*i+1].Content != fmt.Sprintf("reply %d", i) {
			t.Fatalf("assistant turn %d out of order: %s", i, got.Messages[2*i+1].Content)
		}
	}
}

func TestTitleDerivedOnceFromFirstUserMessage(t *testing.T) {
	svc, _ := newService(t)
	session := svc.CreateSession()

	long := strings.Repeat("x", 80)
	if _, err := svc.AppendMessage(session.ID, chat.Message{Role: chat.RoleUser, Content: long}); err != nil {
		t.Fatalf("append err: %v", err)
	}

	got, _ := svc.GetSession(session.ID)
	if got.Title != strings.Repeat("x", chat.TitleLimit) {
		t.Fatalf("title not truncated: %q", got.Title)
	}

	if _, err := svc.AppendMessage(session.ID, chat.Message{Role: chat.RoleUser, Content: "second message"}); err != nil {
		t.Fatalf("append err: %v", err)
	}
	got, _ = svc.GetSession(session.ID)
	if got.Title != strings.Repeat("x", chat.TitleLimit) {
		t.Fatalf("title changed on second message: %q", got.Title)
	}
}

func TestUpdateMessagePatchesExactlyOne(t *testing.T) {
	svc, _ := newService(t)
	session := svc.CreateSession()

	first, _ := svc.AppendMessage(session.ID, chat.Message{Role: chat.RoleUser, Content: "hi"})
	placeholder, _ := svc.AppendMessage(session.ID, chat.Message{
		Role:        chat.RoleAssistant,
		Content:     "Accessing core relay...",
		IsStreaming: true,
	})

	content := "done"
	streaming := false
	if err := svc.UpdateMessage(session.ID, placeholder.ID, chat.Patch{
		Content:     &content,
		IsStreaming: &streaming,
	}); err != nil {
		t.Fatalf("UpdateMessage err: %v", err)
	}

	got, _ := svc.GetSession(session.ID)
	if got.Messages[0].ID != first.ID || got.Messages[0].Content != "hi" {
		t.Fatalf("untouched message mutated: %+v", got.Messages[0])
	}
	if got.Messages[1].Content != "done" || got.Messages[1].IsStreaming {
		t.Fatalf("patch not applied: %+v", got.Messages[1])
	}

	if err := svc.UpdateMessage(session.ID, "missing", chat.Patch{}); err != conversation.ErrMessageNotFound {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
}

func TestShadowSessionsFilteredByViewer(t *testing.T) {
	svc, kv := newService(t)
	session := svc.CreateSession()
	if _, err := svc.AppendMessage(session.ID, chat.Message{Role: chat.RoleUser, Content: "classified"}); err != nil {
		t.Fatalf("append err: %v", err)
	}

	// Mark the session shadow by round-tripping through the vault.
	all := svc.Sessions("Kingston Mondie")
	for i := range all {
		if all[i].ID == session.ID {
			all[i].IsShadow = true
		}
	}
	svc2 := reloadWithSessions(t, kv, all, session.ID)

	if got := svc2.Sessions(identity.DefaultName); len(got) != len(all)-1 {
		t.Fatalf("shadow session visible to guest: %d sessions", len(got))
	}
	if got := svc2.Sessions("Kingston Mondie"); len(got) != len(all) {
		t.Fatalf("shadow session hidden from creator: %d sessions", len(got))
	}
}

func TestRehydratesFromVault(t *testing.T) {
	svc, kv := newService(t)
	session := svc.CreateSession()
	if _, err := svc.AppendMessage(session.ID, chat.Message{Role: chat.RoleUser, Content: "persist me"}); err != nil {
		t.Fatalf("append err: %v", err)
	}

	reloaded, err := conversation.NewService(kv, identity.NewMemoryStore(identity.Seed()))
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}

	got, err := reloaded.GetSession(session.ID)
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}
	if len(got.Messages) != 1 || got.Messages[0].Content != "persist me" {
		t.Fatalf("history not rehydrated: %+v", got.Messages)
	}

	current, err := reloaded.CurrentSession()
	if err != nil {
		t.Fatalf("CurrentSession err: %v", err)
	}
	if current.ID != session.ID {
		t.Fatalf("current session not rehydrated")
	}
}

func reloadWithSessions(t *testing.T, kv *store.KV, sessions []chat.Session, currentID string) *conversation.Service {
	t.Helper()

	payload := struct {
		Sessions  []chat.Session `json:"sessions"`
		CurrentID string         `json:"currentId"`
	}{Sessions: sessions, CurrentID: currentID}

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal err: %v", err)
	}
	if err := kv.Put(store.SlotSessions, data); err != nil {
		t.Fatalf("Put err: %v", err)
	}

	svc, err := conversation.NewService(kv, identity.NewMemoryStore(identity.Seed()))
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}
	return svc
}
