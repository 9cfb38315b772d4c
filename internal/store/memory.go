package store

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store for tests and storeless development
// runs. Semantics match RedisStore, including the loading-variant skip.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*ChatSession
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*ChatSession)}
}

func (s *MemoryStore) LoadSession(_ context.Context, id string) (*ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *session
	cp.Messages = append([]ChatMessage(nil), session.Messages...)
	return &cp, nil
}

func (s *MemoryStore) SaveSession(_ context.Context, session *ChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.sessions[session.ID]
	cp := *session
	if ok {
		cp.Messages = existing.Messages
	} else {
		cp.Messages = nil
	}
	s.sessions[session.ID] = &cp
	return nil
}

func (s *MemoryStore) AppendMessage(_ context.Context, sessionID string, m ChatMessage) error {
	if m.Variant == VariantLoading {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		session = &ChatSession{ID: sessionID}
		s.sessions[sessionID] = session
	}
	session.Messages = append(session.Messages, m)
	return nil
}

func (s *MemoryStore) UpdateContact(_ context.Context, sessionID string, u ContactUpdate) error {
	if u.Empty() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		session = &ChatSession{ID: sessionID}
		s.sessions[sessionID] = session
	}
	if u.Name != "" {
		session.UserName = u.Name
	}
	if u.Email != "" {
		session.UserEmail = u.Email
	}
	if u.Phone != "" {
		session.UserPhone = u.Phone
	}
	return nil
}
