package ports

import (
	"context"

	"relaychat/internal/core/domain"
)

type ChatService interface {
	ListContacts(ctx context.Context, self domain.UserID) ([]*domain.User, error)
	Conversation(ctx context.Context, self, peer domain.UserID) ([]*domain.Message, error)
	SendMessage(ctx context.Context, sender, receiver domain.UserID, text, imageDataURL string) (*domain.Message, error)
}
