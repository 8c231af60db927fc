package identity

import (
	"context"
	"sync"
)

// StaticStore serves profiles from a fixed map. Used by tests and by
// dev mode, where no identity service is running.
type StaticStore struct {
	mu    sync.RWMutex
	users map[string]Profile
}

func NewStaticStore(users ...Profile) *StaticStore {
	s := &StaticStore{users: make(map[string]Profile, len(users))}
	for _, u := range users {
		s.users[u.UserID] = u
	}
	return s
}

func (s *StaticStore) Add(p Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[p.UserID] = p
}

func (s *StaticStore) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	out := p
	return &out, nil
}
