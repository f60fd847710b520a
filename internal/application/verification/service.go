package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-token-nosql/internal/application/dispatch"
	"github.com/go-token-nosql/internal/application/token"
	"github.com/go-token-nosql/internal/domain"
	tokenvalue "github.com/go-token-nosql/internal/pkg/token"
)

// Service proves that a user controls the email address or phone number on their account.
type Service interface {
	RequestVerification(ctx context.Context, u *domain.User, ch domain.Channel) (dispatch.Expiry, error)
	ResendVerification(ctx context.Context, u *domain.User, ch domain.Channel) (dispatch.Expiry, error)
	ConfirmVerification(ctx context.Context, ch domain.Channel, value string) error
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	Update(ctx context.Context, userID string, patch domain.UserPatch) error
}

type dispatcher interface {
	Dispatch(ctx context.Context, u *domain.User, t *domain.Token) (dispatch.Expiry, error)
}

type ServiceDeps struct {
	Tokens     *token.Manager
	UserRepo   userStore
	Dispatcher dispatcher
	TTL        time.Duration
	// Generate mints token values; defaults to 16 random bytes hex-encoded.
	Generate token.Generator
}

type service struct {
	tokens     *token.Manager
	users      userStore
	dispatcher dispatcher
	ttl        time.Duration
	generate   token.Generator
}

func NewService(deps ServiceDeps) Service {
	if deps.Generate == nil {
		deps.Generate = tokenvalue.NewOpaque
	}
	return &service{
		tokens:     deps.Tokens,
		users:      deps.UserRepo,
		dispatcher: deps.Dispatcher,
		ttl:        deps.TTL,
		generate:   deps.Generate,
	}
}

func (s *service) policy(ch domain.Channel) token.Policy {
	return token.Policy{Purpose: domain.VerifyPurpose(ch), TTL: s.ttl, Generate: s.generate}
}

func (s *service) RequestVerification(ctx context.Context, u *domain.User, ch domain.Channel) (dispatch.Expiry, error) {
	if err := precheck(u, ch); err != nil {
		return dispatch.Expiry{}, err
	}
	t, err := s.tokens.Issue(ctx, u.UserID, s.policy(ch))
	if err != nil {
		return dispatch.Expiry{}, err
	}
	return s.dispatcher.Dispatch(ctx, u, t)
}

func (s *service) ResendVerification(ctx context.Context, u *domain.User, ch domain.Channel) (dispatch.Expiry, error) {
	if err := precheck(u, ch); err != nil {
		return dispatch.Expiry{}, err
	}
	t, _, err := s.tokens.Resend(ctx, u.UserID, s.policy(ch))
	if err != nil {
		return dispatch.Expiry{}, err
	}
	return s.dispatcher.Dispatch(ctx, u, t)
}

func (s *service) ConfirmVerification(ctx context.Context, ch domain.Channel, value string) error {
	if err := validChannel(ch); err != nil {
		return err
	}
	if value == "" {
		return fmt.Errorf("token required: %w", domain.ErrBadRequest)
	}
	purpose := domain.VerifyPurpose(ch)

	t, err := s.tokens.FindByValue(ctx, purpose, value)
	if errors.Is(err, domain.ErrNotFound) {
		s.tokens.Reject(purpose, "unknown")
		return fmt.Errorf("verification link is not valid or has expired: %w", domain.ErrInvalidToken)
	}
	if err != nil {
		return err
	}

	u, err := s.users.Get(ctx, t.OwnerID)
	if errors.Is(err, domain.ErrNotFound) {
		s.revoke(ctx, t)
		return fmt.Errorf("verification link has no owner: %w", domain.ErrInvalidToken)
	}
	if err != nil {
		return err
	}
	if u.Verified(ch) {
		s.revoke(ctx, t)
		return fmt.Errorf("%s already verified: %w", ch, domain.ErrAlreadyVerified)
	}

	err = s.tokens.Consume(ctx, t, func(ctx context.Context) error {
		return s.users.Update(ctx, u.UserID, domain.VerifiedPatch(ch))
	})
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("verification link already used: %w", domain.ErrInvalidToken)
	}
	return err
}

func (s *service) revoke(ctx context.Context, t *domain.Token) {
	if err := s.tokens.Revoke(ctx, t.OwnerID, t.Purpose); err != nil {
		slog.Warn("failed to revoke superseded token", "owner_id", t.OwnerID, "purpose", t.Purpose, "err", err)
	}
}

func precheck(u *domain.User, ch domain.Channel) error {
	if err := validChannel(ch); err != nil {
		return err
	}
	if u.Verified(ch) {
		return fmt.Errorf("%s already verified: %w", ch, domain.ErrAlreadyVerified)
	}
	if ch == domain.ChannelSMS && u.PhoneNumber == "" {
		return fmt.Errorf("no phone number on account: %w", domain.ErrBadRequest)
	}
	return nil
}

func validChannel(ch domain.Channel) error {
	if ch != domain.ChannelEmail && ch != domain.ChannelSMS {
		return fmt.Errorf("unknown channel %q: %w", ch, domain.ErrBadRequest)
	}
	return nil
}
