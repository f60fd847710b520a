package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/go-token-nosql/internal/domain"
	"github.com/go-token-nosql/internal/pkg/id"
	"github.com/go-token-nosql/internal/pkg/password"
)

const avatarPrefix = "avatars/"

type Service interface {
	Signup(ctx context.Context, req domain.SignupRequest) (*domain.User, string, error)
	Login(ctx context.Context, req domain.LoginRequest) (*domain.User, string, error)
	Get(ctx context.Context, userID string) (*domain.User, error)
	UpdateName(ctx context.Context, u *domain.User, name string) (*domain.User, error)
	UpdateEmail(ctx context.Context, u *domain.User, email string) (*domain.User, error)
	UpdatePhoneNumber(ctx context.Context, u *domain.User, phone string) (*domain.User, error)
	UpdateAvatar(ctx context.Context, u *domain.User, data string) (*domain.User, error)
	Search(ctx context.Context, caller *domain.User, keyword string) ([]domain.User, error)
}

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	Put(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	Update(ctx context.Context, userID string, patch domain.UserPatch) error
	Search(ctx context.Context, keyword, excludeID string) ([]domain.User, error)
}

type tokenRevoker interface {
	Revoke(ctx context.Context, ownerID string, purpose domain.Purpose) error
}

type blobStore interface {
	UploadBase64(ctx context.Context, key, data string) (string, error)
	Destroy(ctx context.Context, key string) error
}

type jwtSigner interface {
	Sign(userID, email string) (string, error)
}

type service struct {
	repo          userStore
	tokens        tokenRevoker
	blobs         blobStore
	jwtProvider   jwtSigner
	defaultAvatar string
}

type ServiceDeps struct {
	UserRepo         userStore
	Tokens           tokenRevoker
	Blobs            blobStore
	JWTProvider      jwtSigner
	DefaultAvatarURL string
}

func NewService(deps ServiceDeps) Service {
	return &service{
		repo:          deps.UserRepo,
		tokens:        deps.Tokens,
		blobs:         deps.Blobs,
		jwtProvider:   deps.JWTProvider,
		defaultAvatar: deps.DefaultAvatarURL,
	}
}

func (s *service) Signup(ctx context.Context, req domain.SignupRequest) (*domain.User, string, error) {
	if err := s.ensureFree(ctx, s.repo.GetByEmail, req.Email, "email"); err != nil {
		return nil, "", err
	}
	if err := s.ensureFree(ctx, s.repo.GetByPhone, req.PhoneNumber, "phone number"); err != nil {
		return nil, "", err
	}
	hash, err := password.Hash(req.Password)
	if err != nil {
		return nil, "", err
	}
	now := time.Now().UTC()
	u := &domain.User{
		UserID:       id.New(),
		Name:         req.Name,
		Email:        req.Email,
		PhoneNumber:  req.PhoneNumber,
		PasswordHash: hash,
		Avatar:       domain.Avatar{URL: s.defaultAvatar},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.Avatar != nil && *req.Avatar != "" {
		avatar, err := s.upload(ctx, u.UserID, *req.Avatar)
		if err != nil {
			return nil, "", err
		}
		u.Avatar = avatar
	}
	if err := s.repo.Put(ctx, u); err != nil {
		return nil, "", err
	}
	bearer, err := s.jwtProvider.Sign(u.UserID, u.Email)
	if err != nil {
		return nil, "", err
	}
	return u, bearer, nil
}

func (s *service) Login(ctx context.Context, req domain.LoginRequest) (*domain.User, string, error) {
	u, err := s.repo.GetByEmail(ctx, req.Email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, "", fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	if err != nil {
		return nil, "", err
	}
	if !password.Matches(u.PasswordHash, req.Password) {
		return nil, "", fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	bearer, err := s.jwtProvider.Sign(u.UserID, u.Email)
	if err != nil {
		return nil, "", err
	}
	return u, bearer, nil
}

func (s *service) Get(ctx context.Context, userID string) (*domain.User, error) {
	return s.repo.Get(ctx, userID)
}

func (s *service) UpdateName(ctx context.Context, u *domain.User, name string) (*domain.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("name required: %w", domain.ErrBadRequest)
	}
	return s.apply(ctx, u, domain.UserPatch{Name: &name})
}

// UpdateEmail replaces the address, clears its verified flag and revokes any
// token that was delivered to the old address.
func (s *service) UpdateEmail(ctx context.Context, u *domain.User, email string) (*domain.User, error) {
	if email == u.Email {
		return nil, fmt.Errorf("email unchanged: %w", domain.ErrBadRequest)
	}
	if err := s.ensureFree(ctx, s.repo.GetByEmail, email, "email"); err != nil {
		return nil, err
	}
	unverified := false
	updated, err := s.apply(ctx, u, domain.UserPatch{Email: &email, IsVerifiedEmail: &unverified})
	if err != nil {
		return nil, err
	}
	s.revoke(ctx, u.UserID, domain.PurposeEmailVerify, domain.PurposePasswordResetEmail)
	return updated, nil
}

// UpdatePhoneNumber mirrors UpdateEmail for the SMS channel.
func (s *service) UpdatePhoneNumber(ctx context.Context, u *domain.User, phone string) (*domain.User, error) {
	if phone == u.PhoneNumber {
		return nil, fmt.Errorf("phone number unchanged: %w", domain.ErrBadRequest)
	}
	if err := s.ensureFree(ctx, s.repo.GetByPhone, phone, "phone number"); err != nil {
		return nil, err
	}
	unverified := false
	updated, err := s.apply(ctx, u, domain.UserPatch{PhoneNumber: &phone, IsVerifiedPhoneNumber: &unverified})
	if err != nil {
		return nil, err
	}
	s.revoke(ctx, u.UserID, domain.PurposePhoneVerify, domain.PurposePasswordResetPhone)
	return updated, nil
}

// UpdateAvatar uploads the new image before destroying the old one so a failed
// upload leaves the profile intact.
func (s *service) UpdateAvatar(ctx context.Context, u *domain.User, data string) (*domain.User, error) {
	if data == "" {
		return nil, fmt.Errorf("avatar required: %w", domain.ErrBadRequest)
	}
	avatar, err := s.upload(ctx, u.UserID, data)
	if err != nil {
		return nil, err
	}
	updated, err := s.apply(ctx, u, domain.UserPatch{Avatar: &avatar})
	if err != nil {
		return nil, err
	}
	if old := u.Avatar.PublicID; old != "" {
		if err := s.blobs.Destroy(ctx, old); err != nil {
			slog.Warn("failed to destroy previous avatar", "user_id", u.UserID, "key", old, "err", err)
		}
	}
	return updated, nil
}

// Search lists the other users whose name or email contains keyword, oldest
// account first.
func (s *service) Search(ctx context.Context, caller *domain.User, keyword string) ([]domain.User, error) {
	users, err := s.repo.Search(ctx, strings.TrimSpace(keyword), caller.UserID)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(users, func(a, b domain.User) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.UserID, b.UserID)
	})
	return users, nil
}

func (s *service) apply(ctx context.Context, u *domain.User, patch domain.UserPatch) (*domain.User, error) {
	if err := s.repo.Update(ctx, u.UserID, patch); err != nil {
		return nil, err
	}
	updated := *u
	patch.Apply(&updated)
	updated.UpdatedAt = time.Now().UTC()
	return &updated, nil
}

func (s *service) upload(ctx context.Context, userID, data string) (domain.Avatar, error) {
	key := avatarPrefix + userID + "/" + id.New()
	url, err := s.blobs.UploadBase64(ctx, key, data)
	if err != nil {
		return domain.Avatar{}, fmt.Errorf("upload avatar: %w", err)
	}
	return domain.Avatar{PublicID: key, URL: url}, nil
}

func (s *service) revoke(ctx context.Context, userID string, purposes ...domain.Purpose) {
	for _, p := range purposes {
		if err := s.tokens.Revoke(ctx, userID, p); err != nil {
			slog.Warn("failed to revoke token", "user_id", userID, "purpose", p, "err", err)
		}
	}
}

func (s *service) ensureFree(ctx context.Context, lookup func(context.Context, string) (*domain.User, error), value, what string) error {
	_, err := lookup(ctx, value)
	switch {
	case err == nil:
		return fmt.Errorf("%s already registered: %w", what, domain.ErrConflict)
	case errors.Is(err, domain.ErrNotFound):
		return nil
	default:
		return err
	}
}
