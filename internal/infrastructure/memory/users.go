package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-token-nosql/internal/domain"
)

// UserStore keeps users in a map guarded by a RWMutex.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]domain.User)}
}

func (s *UserStore) Put(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.UserID] = *u
	return nil
}

func (s *UserStore) Get(_ context.Context, userID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("user: %w", domain.ErrNotFound)
	}
	return &u, nil
}

func (s *UserStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return s.find(func(u *domain.User) bool { return u.Email == email })
}

func (s *UserStore) GetByPhone(_ context.Context, phone string) (*domain.User, error) {
	return s.find(func(u *domain.User) bool { return u.PhoneNumber == phone })
}

func (s *UserStore) Update(_ context.Context, userID string, patch domain.UserPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("user: %w", domain.ErrNotFound)
	}
	patch.Apply(&u)
	u.UpdatedAt = time.Now().UTC()
	s.users[userID] = u
	return nil
}

// Search returns every user other than excludeID whose name or email
// contains keyword.
func (s *UserStore) Search(_ context.Context, keyword, excludeID string) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.User
	for _, u := range s.users {
		if u.UserID != excludeID && u.Matches(keyword) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *UserStore) find(match func(*domain.User) bool) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if match(&u) {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user: %w", domain.ErrNotFound)
}
