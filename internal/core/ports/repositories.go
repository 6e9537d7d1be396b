package ports

import (
	"context"

	"relaychat/internal/core/domain"
)

type MessageRepository interface {
	Save(ctx context.Context, msg *domain.Message) error
	// Conversation returns every message exchanged between a and b, oldest first.
	Conversation(ctx context.Context, a, b domain.UserID) ([]*domain.Message, error)
}

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id domain.UserID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
}

// BlobStore keeps uploaded media and returns the URL it is served from.
type BlobStore interface {
	Put(ctx context.Context, data []byte, contentType string) (string, error)
}
