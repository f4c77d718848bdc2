package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"inkwell.blog/internal/ids"
)

// InMemoryUsers is a UserStore kept in process memory.
type InMemoryUsers struct {
	mu      sync.RWMutex
	byID    map[string]User
	byEmail map[string]string
	now     func() time.Time
}

// NewInMemoryUsers returns an empty store.
func NewInMemoryUsers() *InMemoryUsers {
	return &InMemoryUsers{
		byID:    make(map[string]User),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func (s *InMemoryUsers) Create(_ context.Context, u *User) error {
	if u == nil {
		return fmt.Errorf("%w: user is nil", ErrInvalidInput)
	}
	email := normalizeEmail(u.Email)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byEmail[email]; taken {
		return ErrConflict
	}
	now := s.now().UTC()
	if u.ID == "" {
		u.ID = ids.At(now)
	}
	u.Email = email
	u.CreatedAt, u.UpdatedAt = now, now
	s.byID[u.ID] = *u
	s.byEmail[email] = u.ID
	return nil
}

func (s *InMemoryUsers) Find(_ context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *InMemoryUsers) FindByEmail(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return User{}, ErrNotFound
	}
	return s.byID[id], nil
}

func (s *InMemoryUsers) Update(_ context.Context, id string, upd UserUpdate) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return User{}, ErrNotFound
	}
	if upd.Email != nil {
		email := normalizeEmail(*upd.Email)
		if owner, taken := s.byEmail[email]; taken && owner != id {
			return User{}, ErrConflict
		}
		delete(s.byEmail, u.Email)
		s.byEmail[email] = id
		u.Email = email
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.Bio != nil {
		u.Bio = *upd.Bio
	}
	if upd.Avatar != nil {
		u.Avatar, u.AvatarID = upd.Avatar.URL, upd.Avatar.ID
	}
	u.UpdatedAt = s.now().UTC()
	s.byID[id] = u
	return u, nil
}

func (s *InMemoryUsers) Names(_ context.Context, userIDs []string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(userIDs))
	for _, id := range userIDs {
		if u, ok := s.byID[id]; ok {
			out[id] = u.Name
		}
	}
	return out, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
