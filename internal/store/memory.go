package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sahaj-careers/sahaj/internal/profile"
	"github.com/sahaj-careers/sahaj/internal/session"
)

// MemoryStore is an in-process store for local/dev use.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]profile.Profile
	sessions map[string]session.Session
	byUser   map[string][]string
	resumes  map[string][]Resume
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]profile.Profile),
		sessions: make(map[string]session.Session),
		byUser:   make(map[string][]string),
		resumes:  make(map[string][]Resume),
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, p profile.Profile) (profile.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	p = nonNilProfile(p.Clone())
	s.users[p.ID] = p
	return p.Clone(), nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.users[id]
	if !ok {
		return profile.Profile{}, ErrNotFound
	}
	return p.Clone(), nil
}

func (s *MemoryStore) UpdateUser(_ context.Context, p profile.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[p.ID]; !ok {
		return ErrNotFound
	}
	s.users[p.ID] = nonNilProfile(p.Clone())
	return nil
}

func (s *MemoryStore) CreateSession(_ context.Context, userID string, state session.State) (session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return session.Session{}, ErrNotFound
	}
	sess := newSession(uuid.NewString(), userID, state, time.Now().UTC())
	s.sessions[sess.ID] = sess
	s.byUser[userID] = append(s.byUser[userID], sess.ID)
	return sess.Clone(), nil
}

func (s *MemoryStore) GetSession(_ context.Context, id string) (session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return session.Session{}, ErrNotFound
	}
	return sess.Clone(), nil
}

func (s *MemoryStore) LatestSession(_ context.Context, userID string) (session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byUser[userID]
	if len(ids) == 0 {
		return session.Session{}, ErrNotFound
	}
	return s.sessions[ids[len(ids)-1]].Clone(), nil
}

func (s *MemoryStore) UpdateSession(_ context.Context, sess session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; !ok {
		return ErrNotFound
	}
	s.sessions[sess.ID] = sess.Clone()
	return nil
}

func (s *MemoryStore) CreateResume(_ context.Context, r Resume) (Resume, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[r.UserID]; !ok {
		return Resume{}, ErrNotFound
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.GeneratedAt.IsZero() {
		r.GeneratedAt = time.Now().UTC()
	}
	r.Data = append(json.RawMessage(nil), r.Data...)
	s.resumes[r.UserID] = append(s.resumes[r.UserID], r)
	return r, nil
}

func (s *MemoryStore) LatestResume(_ context.Context, userID string) (Resume, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.resumes[userID]
	if len(arr) == 0 {
		return Resume{}, ErrNotFound
	}
	r := arr[len(arr)-1]
	r.Data = append(json.RawMessage(nil), r.Data...)
	return r, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
