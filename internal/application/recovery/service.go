// Package recovery resets passwords with numeric one-time codes, or with the
// current password for an authenticated user.
package recovery

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/go-token-nosql/internal/application/dispatch"
	"github.com/go-token-nosql/internal/application/token"
	"github.com/go-token-nosql/internal/domain"
	"github.com/go-token-nosql/internal/pkg/password"
	tokenvalue "github.com/go-token-nosql/internal/pkg/token"
)

// Identifier names the account to recover. Exactly one field must be set;
// it also selects the channel the code travels over.
type Identifier struct {
	Email       string
	PhoneNumber string
}

func (id Identifier) channel() (domain.Channel, error) {
	switch {
	case id.Email != "" && id.PhoneNumber != "":
		return "", fmt.Errorf("provide either email or phone number: %w", domain.ErrBadRequest)
	case id.Email != "":
		return domain.ChannelEmail, nil
	case id.PhoneNumber != "":
		return domain.ChannelSMS, nil
	default:
		return "", fmt.Errorf("email or phone number required: %w", domain.ErrBadRequest)
	}
}

type Service interface {
	RequestOTP(ctx context.Context, id Identifier) (dispatch.Expiry, error)
	ResendOTP(ctx context.Context, id Identifier) (dispatch.Expiry, error)
	RedeemOTPAndSetPassword(ctx context.Context, id Identifier, otp, newPassword string) error
	ChangePassword(ctx context.Context, u *domain.User, current, newPassword string) error
	ChangePasswordViaOTP(ctx context.Context, u *domain.User, otp, newPassword string) error
}

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
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
	Generate   token.Generator
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
		deps.Generate = tokenvalue.NewNumericOTP
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
	return token.Policy{Purpose: domain.ResetPurpose(ch), TTL: s.ttl, Generate: s.generate}
}

func (s *service) RequestOTP(ctx context.Context, id Identifier) (dispatch.Expiry, error) {
	u, ch, err := s.resolve(ctx, id)
	if err != nil {
		return dispatch.Expiry{}, err
	}
	t, err := s.tokens.Issue(ctx, u.UserID, s.policy(ch))
	if err != nil {
		return dispatch.Expiry{}, err
	}
	return s.dispatcher.Dispatch(ctx, u, t)
}

func (s *service) ResendOTP(ctx context.Context, id Identifier) (dispatch.Expiry, error) {
	u, ch, err := s.resolve(ctx, id)
	if err != nil {
		return dispatch.Expiry{}, err
	}
	t, _, err := s.tokens.Resend(ctx, u.UserID, s.policy(ch))
	if err != nil {
		return dispatch.Expiry{}, err
	}
	return s.dispatcher.Dispatch(ctx, u, t)
}

func (s *service) RedeemOTPAndSetPassword(ctx context.Context, id Identifier, otp, newPassword string) error {
	if otp == "" || newPassword == "" {
		return fmt.Errorf("otp and new password required: %w", domain.ErrBadRequest)
	}
	u, ch, err := s.resolve(ctx, id)
	if err != nil {
		return err
	}
	return s.redeem(ctx, u, []domain.Purpose{domain.ResetPurpose(ch)}, otp, newPassword)
}

func (s *service) ChangePassword(ctx context.Context, u *domain.User, current, newPassword string) error {
	if current == "" || newPassword == "" {
		return fmt.Errorf("current and new password required: %w", domain.ErrBadRequest)
	}
	if !password.Matches(u.PasswordHash, current) {
		return fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	hash, err := password.Hash(newPassword)
	if err != nil {
		return err
	}
	return s.users.Update(ctx, u.UserID, domain.UserPatch{PasswordHash: &hash})
}

func (s *service) ChangePasswordViaOTP(ctx context.Context, u *domain.User, otp, newPassword string) error {
	if otp == "" || newPassword == "" {
		return fmt.Errorf("otp and new password required: %w", domain.ErrBadRequest)
	}
	if !u.IsVerifiedEmail || !u.IsVerifiedPhoneNumber {
		return fmt.Errorf("email and phone number must both be verified: %w", domain.ErrNotVerified)
	}
	return s.redeem(ctx, u, []domain.Purpose{domain.PurposePasswordResetEmail, domain.PurposePasswordResetPhone}, otp, newPassword)
}

// redeem consumes the first live token among purposes whose value equals otp
// and stores the new password hash as the side effect.
func (s *service) redeem(ctx context.Context, u *domain.User, purposes []domain.Purpose, otp, newPassword string) error {
	var match *domain.Token
	for _, p := range purposes {
		t, err := s.tokens.FindLive(ctx, u.UserID, p)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if subtle.ConstantTimeCompare([]byte(t.Value), []byte(otp)) == 1 {
			match = t
			break
		}
	}
	if match == nil {
		s.tokens.Reject(purposes[0], "mismatch")
		return fmt.Errorf("otp is not valid or has expired: %w", domain.ErrInvalidOTP)
	}

	hash, err := password.Hash(newPassword)
	if err != nil {
		return err
	}
	err = s.tokens.Consume(ctx, match, func(ctx context.Context) error {
		return s.users.Update(ctx, u.UserID, domain.UserPatch{PasswordHash: &hash})
	})
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("otp already used: %w", domain.ErrInvalidOTP)
	}
	return err
}

// resolve looks up the account behind id and checks that its channel is verified.
func (s *service) resolve(ctx context.Context, id Identifier) (*domain.User, domain.Channel, error) {
	ch, err := id.channel()
	if err != nil {
		return nil, "", err
	}
	var u *domain.User
	if ch == domain.ChannelSMS {
		u, err = s.users.GetByPhone(ctx, id.PhoneNumber)
	} else {
		u, err = s.users.GetByEmail(ctx, id.Email)
	}
	if errors.Is(err, domain.ErrNotFound) {
		return nil, "", fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, "", err
	}
	if !u.Verified(ch) {
		return nil, "", fmt.Errorf("%s is not verified: %w", ch, domain.ErrNotVerified)
	}
	return u, ch, nil
}
