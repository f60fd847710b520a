// Package memory provides process-local stores used for development and tests.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-token-nosql/internal/domain"
)

// ClaimLease bounds how long an unreleased claim blocks other redeemers.
const ClaimLease = 30 * time.Second

type tokenKey struct {
	owner   string
	purpose domain.Purpose
}

// TokenStore keeps tokens in a map guarded by a mutex.
type TokenStore struct {
	mu     sync.Mutex
	tokens map[tokenKey]domain.Token
	now    func() time.Time
}

// NewTokenStore creates an empty store. now defaults to time.Now.
func NewTokenStore(now func() time.Time) *TokenStore {
	if now == nil {
		now = time.Now
	}
	return &TokenStore{tokens: make(map[tokenKey]domain.Token), now: now}
}

func (s *TokenStore) Issue(_ context.Context, t *domain.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	cp.ClaimedAt = 0
	s.tokens[tokenKey{t.OwnerID, t.Purpose}] = cp
	return nil
}

func (s *TokenStore) FindLive(_ context.Context, ownerID string, purpose domain.Purpose) (*domain.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[tokenKey{ownerID, purpose}]
	if !ok || !t.LiveAt(s.now()) {
		return nil, fmt.Errorf("token: %w", domain.ErrNotFound)
	}
	return &t, nil
}

func (s *TokenStore) FindByValue(_ context.Context, purpose domain.Purpose, value string) (*domain.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, t := range s.tokens {
		if k.purpose == purpose && t.Value == value && t.LiveAt(now) {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("token: %w", domain.ErrNotFound)
}

func (s *TokenStore) Claim(_ context.Context, t *domain.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := tokenKey{t.OwnerID, t.Purpose}
	cur, ok := s.tokens[k]
	now := s.now()
	if !ok || cur.Value != t.Value || !cur.LiveAt(now) {
		return fmt.Errorf("token: %w", domain.ErrNotFound)
	}
	if cur.ClaimedAt != 0 && now.Unix() < cur.ClaimedAt+int64(ClaimLease/time.Second) {
		return fmt.Errorf("token claimed: %w", domain.ErrNotFound)
	}
	cur.ClaimedAt = now.Unix()
	s.tokens[k] = cur
	return nil
}

func (s *TokenStore) Release(_ context.Context, t *domain.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := tokenKey{t.OwnerID, t.Purpose}
	if cur, ok := s.tokens[k]; ok && cur.Value == t.Value {
		cur.ClaimedAt = 0
		s.tokens[k] = cur
	}
	return nil
}

// Seal keeps t claimed until it expires; the reaper removes it afterwards.
func (s *TokenStore) Seal(_ context.Context, t *domain.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := tokenKey{t.OwnerID, t.Purpose}
	if cur, ok := s.tokens[k]; ok && cur.Value == t.Value {
		cur.ClaimedAt = cur.ExpiresAt
		s.tokens[k] = cur
	}
	return nil
}

func (s *TokenStore) Redeem(_ context.Context, t *domain.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := tokenKey{t.OwnerID, t.Purpose}
	if cur, ok := s.tokens[k]; ok && cur.Value == t.Value {
		delete(s.tokens, k)
	}
	return nil
}

func (s *TokenStore) Revoke(_ context.Context, ownerID string, purpose domain.Purpose) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, tokenKey{ownerID, purpose})
	return nil
}

// Reap deletes every expired token and returns how many were removed.
func (s *TokenStore) Reap() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for k, t := range s.tokens {
		if !t.LiveAt(now) {
			delete(s.tokens, k)
			n++
		}
	}
	return n
}

// RunReaper calls Reap every interval until ctx is done.
func (s *TokenStore) RunReaper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Reap(); n > 0 {
				slog.Debug("reaped expired tokens", "count", n)
			}
		}
	}
}

// Len returns the number of stored tokens, expired or not.
func (s *TokenStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}
