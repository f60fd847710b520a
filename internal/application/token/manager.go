// Package token implements the lifecycle shared by every single-use token:
// issue, resend-if-live and claim-then-consume redemption.
package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-token-nosql/internal/domain"
)

// Store persists tokens keyed by (owner, purpose).
//
// Issue replaces any existing token for the pair. Find* return
// domain.ErrNotFound for absent or expired tokens. Claim returns
// domain.ErrNotFound when another redeemer holds the token or it has been
// rotated, redeemed or expired. Redeem is idempotent. Seal leaves t claimed
// until it expires, for a token whose side effect ran but could not be deleted.
type Store interface {
	Issue(ctx context.Context, t *domain.Token) error
	FindLive(ctx context.Context, ownerID string, purpose domain.Purpose) (*domain.Token, error)
	FindByValue(ctx context.Context, purpose domain.Purpose, value string) (*domain.Token, error)
	Claim(ctx context.Context, t *domain.Token) error
	Release(ctx context.Context, t *domain.Token) error
	Redeem(ctx context.Context, t *domain.Token) error
	Seal(ctx context.Context, t *domain.Token) error
	Revoke(ctx context.Context, ownerID string, purpose domain.Purpose) error
}

// Recorder observes lifecycle events. Implemented by the metrics package.
type Recorder interface {
	Issued(p domain.Purpose)
	Reused(p domain.Purpose)
	Redeemed(p domain.Purpose)
	Rejected(p domain.Purpose, reason string)
}

// Generator mints a fresh token value.
type Generator func() (string, error)

// Policy describes how tokens of one purpose are minted.
type Policy struct {
	Purpose  domain.Purpose
	TTL      time.Duration
	Generate Generator
}

const redeemAttempts = 2

type Manager struct {
	store    Store
	recorder Recorder
	now      func() time.Time
}

type Option func(*Manager)

// WithClock overrides time.Now, used by tests that need to travel past expiry.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithRecorder attaches a lifecycle recorder.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) {
		if r != nil {
			m.recorder = r
		}
	}
}

func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{store: store, recorder: nopRecorder{}, now: time.Now}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Issue mints a new token for owner, invalidating any previous one for the same purpose.
func (m *Manager) Issue(ctx context.Context, ownerID string, p Policy) (*domain.Token, error) {
	value, err := p.Generate()
	if err != nil {
		return nil, err
	}
	t := domain.NewToken(ownerID, p.Purpose, value, m.now(), p.TTL)
	if err := m.store.Issue(ctx, t); err != nil {
		return nil, fmt.Errorf("issue %s token: %w", p.Purpose, err)
	}
	m.recorder.Issued(p.Purpose)
	return t, nil
}

// Resend returns the live token for owner when there is one, otherwise issues a new one.
// reused is true when the existing token was returned unchanged.
func (m *Manager) Resend(ctx context.Context, ownerID string, p Policy) (t *domain.Token, reused bool, err error) {
	t, err = m.store.FindLive(ctx, ownerID, p.Purpose)
	switch {
	case err == nil:
		m.recorder.Reused(p.Purpose)
		return t, true, nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, false, fmt.Errorf("lookup %s token: %w", p.Purpose, err)
	}
	t, err = m.Issue(ctx, ownerID, p)
	return t, false, err
}

// FindLive returns the live token for owner/purpose.
func (m *Manager) FindLive(ctx context.Context, ownerID string, purpose domain.Purpose) (*domain.Token, error) {
	return m.store.FindLive(ctx, ownerID, purpose)
}

// FindByValue returns the live token of purpose carrying value.
func (m *Manager) FindByValue(ctx context.Context, purpose domain.Purpose, value string) (*domain.Token, error) {
	return m.store.FindByValue(ctx, purpose, value)
}

// Revoke deletes whatever token owner holds for purpose.
func (m *Manager) Revoke(ctx context.Context, ownerID string, purpose domain.Purpose) error {
	return m.store.Revoke(ctx, ownerID, purpose)
}

// Consume redeems t exactly once. apply runs only for the caller that wins the
// claim; if apply fails the claim is released and the token stays valid.
// Returns domain.ErrNotFound when the claim is lost.
func (m *Manager) Consume(ctx context.Context, t *domain.Token, apply func(ctx context.Context) error) error {
	if err := m.store.Claim(ctx, t); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			m.recorder.Rejected(t.Purpose, "claimed")
		}
		return err
	}
	if err := apply(ctx); err != nil {
		if rerr := m.store.Release(ctx, t); rerr != nil {
			slog.Warn("failed to release token claim", "owner_id", t.OwnerID, "purpose", t.Purpose, "err", rerr)
		}
		return err
	}
	m.retire(ctx, t)
	m.recorder.Redeemed(t.Purpose)
	return nil
}

// retire removes a token whose side effect has been applied. Redeem is tried
// twice; if the row survives it is sealed so no later claim can succeed.
func (m *Manager) retire(ctx context.Context, t *domain.Token) {
	var err error
	for attempt := 0; attempt < redeemAttempts; attempt++ {
		if err = m.store.Redeem(ctx, t); err == nil {
			return
		}
	}
	slog.Warn("failed to delete redeemed token, sealing", "owner_id", t.OwnerID, "purpose", t.Purpose, "err", err)
	if err := m.store.Seal(ctx, t); err != nil {
		slog.Error("redeemed token left claimable until lease expiry", "owner_id", t.OwnerID, "purpose", t.Purpose, "err", err)
	}
}

// Reject records a failed redemption attempt.
func (m *Manager) Reject(p domain.Purpose, reason string) {
	m.recorder.Rejected(p, reason)
}

type nopRecorder struct{}

func (nopRecorder) Issued(domain.Purpose)           {}
func (nopRecorder) Reused(domain.Purpose)           {}
func (nopRecorder) Redeemed(domain.Purpose)         {}
func (nopRecorder) Rejected(domain.Purpose, string) {}
