package http

import (
	"context"

	"github.com/go-token-nosql/internal/domain"
)

// UserRepository is the minimal interface the router requires from a user store.
type UserRepository interface {
	Put(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	Update(ctx context.Context, userID string, patch domain.UserPatch) error
	Search(ctx context.Context, keyword, excludeID string) ([]domain.User, error)
}

// BlobStore is the minimal interface the router requires from an object storage backend.
type BlobStore interface {
	UploadBase64(ctx context.Context, key, data string) (string, error)
	Destroy(ctx context.Context, key string) error
}
