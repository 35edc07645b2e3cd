// Package conversation owns the ordered session collection and its vault slot.
package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kmondie/nebula-edge/backend/internal/model/chat"
	"github.com/kmondie/nebula-edge/backend/internal/model/identity"
	"github.com/kmondie/nebula-edge/backend/internal/store"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrMessageNotFound = errors.New("message not found")
)

// DefaultTitle names the session seeded on first load.
const DefaultTitle = "Neural Stream Initialized"

// NewChatTitle names sessions created by the "new chat" action until the first
// user message overwrites it.
const NewChatTitle = "New Neural Stream"

type persisted struct {
	Sessions  []chat.Session `json:"sessions"`
	CurrentID string         `json:"currentId"`
}

// Service manages sessions in memory and writes the whole collection through
// to its vault slot after every mutation. Newest sessions sit first; the
// current ID always resolves to a member once sessions exist.
type Service struct {
	mu        sync.RWMutex
	sessions  []chat.Session
	currentID string
	profiles  identity.Store
	vault     *store.KV
}

// NewService rehydrates the collection, seeding one default session when the
// slot is empty.
func NewService(vault *store.KV, profiles identity.Store) (*Service, error) {
	s := &Service{profiles: profiles, vault: vault}

	data, ok, err := vault.Get(store.SlotSessions)
	if err != nil {
		return nil, fmt.Errorf("load sessions slot: %w", err)
	}
	if ok {
		var saved persisted
		if err := json.Unmarshal(data, &saved); err != nil {
			return nil, fmt.Errorf("decode sessions slot: %w", err)
		}
		s.sessions = saved.Sessions
		s.currentID = saved.CurrentID
	}

	if len(s.sessions) == 0 {
		s.sessions = []chat.Session{{
			ID:        "default-stream-" + uuid.NewString(),
			Title:     DefaultTitle,
			Messages:  []chat.Message{},
			CreatedAt: time.Now().UTC(),
		}}
	}
	if _, ok := s.find(s.currentID); !ok {
		s.currentID = s.sessions[0].ID
	}

	return s, nil
}

// CreateSession prepends a fresh session and makes it current.
func (s *Service) CreateSession() chat.Session {
	session := chat.Session{
		ID:        "session-" + uuid.NewString(),
		Title:     NewChatTitle,
		Messages:  []chat.Message{},
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.sessions = append([]chat.Session{session}, s.sessions...)
	s.currentID = session.ID
	s.mu.Unlock()

	s.persist()
	return session
}

// SelectSession switches the current session.
func (s *Service) SelectSession(id string) error {
	s.mu.Lock()
	if _, ok := s.find(id); !ok {
		s.mu.Unlock()
		return ErrSessionNotFound
	}
	s.currentID = id
	s.mu.Unlock()

	s.persist()
	return nil
}

// CurrentSession returns a copy of the selected session.
func (s *Service) CurrentSession() (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.find(s.currentID)
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return copySession(s.sessions[idx]), nil
}

// GetSession returns a copy of the session with the given ID.
func (s *Service) GetSession(id string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.find(id)
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return copySession(s.sessions[idx]), nil
}

// Sessions lists sessions visible to the named viewer. Shadow sessions are
// filtered out unless the viewer's profile grants shadow access.
func (s *Service) Sessions(viewer string) []chat.Session {
	shadowAccess := false
	if profile, ok := s.profiles.FindByName(viewer); ok {
		shadowAccess = profile.ShadowAccess
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]chat.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		if session.IsShadow && !shadowAccess {
			continue
		}
		out = append(out, copySession(session))
	}
	return out
}

// AppendMessage appends to a session's ordered history. The first user message
// appended to an empty session sets the title; it never changes afterwards.
func (s *Service) AppendMessage(sessionID string, message chat.Message) (chat.Message, error) {
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now().UTC()
	}

	s.mu.Lock()
	idx, ok := s.find(sessionID)
	if !ok {
		s.mu.Unlock()
		return chat.Message{}, ErrSessionNotFound
	}

	if len(s.sessions[idx].Messages) == 0 && message.Role == chat.RoleUser {
		s.sessions[idx].Title = chat.DeriveTitle(message.Content)
	}
	s.sessions[idx].Messages = append(s.sessions[idx].Messages, message)
	s.mu.Unlock()

	s.persist()
	return message, nil
}

// UpdateMessage patches exactly one message in place, leaving the rest of the
// history untouched.
func (s *Service) UpdateMessage(sessionID, messageID string, patch chat.Patch) error {
	s.mu.Lock()
	idx, ok := s.find(sessionID)
	if !ok {
		s.mu.Unlock()
		return ErrSessionNotFound
	}

	patched := false
	for i := range s.sessions[idx].Messages {
		if s.sessions[idx].Messages[i].ID == messageID {
			patch.Apply(&s.sessions[idx].Messages[i])
			patched = true
			break
		}
	}
	s.mu.Unlock()

	if !patched {
		return ErrMessageNotFound
	}

	s.persist()
	return nil
}

// find returns the index of the session. Caller holds the lock.
func (s *Service) find(id string) (int, bool) {
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			return i, true
		}
	}
	return 0, false
}

func (s *Service) persist() {
	s.mu.RLock()
	data, err := json.Marshal(persisted{Sessions: s.sessions, CurrentID: s.currentID})
	s.mu.RUnlock()
	if err != nil {
		log.Printf("[conversation] encode sessions failed: %v", err)
		return
	}
	if err := s.vault.Put(store.SlotSessions, data); err != nil {
		log.Printf("[conversation] persist sessions failed: %v", err)
	}
}

func copySession(session chat.Session) chat.Session {
	out := session
	out.Messages = append([]chat.Message(nil), session.Messages...)
	return out
}
