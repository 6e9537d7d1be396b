package services

import (
	"context"
	"fmt"

	"relaychat/internal/core/domain"
	"relaychat/internal/core/ports"
	"relaychat/pkg/validation"

	"go.uber.org/zap"
)

type chatService struct {
	users         ports.UserRepository
	messages      ports.MessageRepository
	media         ports.BlobStore
	registry      ports.ConnectionRegistry
	metrics       ports.RelayMetrics
	maxMediaBytes int64
	logger        *zap.SugaredLogger
}

func NewChatService(
	users ports.UserRepository,
	messages ports.MessageRepository,
	media ports.BlobStore,
	registry ports.ConnectionRegistry,
	metrics ports.RelayMetrics,
	maxMediaBytes int64,
	logger *zap.SugaredLogger,
) ports.ChatService {
	return &chatService{
		users:         users,
		messages:      messages,
		media:         media,
		registry:      registry,
		metrics:       metricsOrNop(metrics),
		maxMediaBytes: maxMediaBytes,
		logger:        logger,
	}
}

// ListContacts returns every user except self.
func (s *chatService) ListContacts(ctx context.Context, self domain.UserID) ([]*domain.User, error) {
	all, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	contacts := make([]*domain.User, 0, len(all))
	for _, u := range all {
		if u.ID != self {
			contacts = append(contacts, u)
		}
	}
	return contacts, nil
}

func (s *chatService) Conversation(ctx context.Context, self, peer domain.UserID) ([]*domain.Message, error) {
	if _, err := s.users.GetByID(ctx, peer); err != nil {
		return nil, err
	}
	return s.messages.Conversation(ctx, self, peer)
}

// SendMessage stores a message and pushes it to the receiver if online.
// The push is not retried; an offline receiver reads it from history.
func (s *chatService) SendMessage(ctx context.Context, sender, receiver domain.UserID, text, imageDataURL string) (*domain.Message, error) {
	if err := validation.ValidateMessageText(text); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if _, err := s.users.GetByID(ctx, receiver); err != nil {
		return nil, err
	}

	var imageURL string
	if imageDataURL != "" {
		data, contentType, err := domain.DecodeDataURL(imageDataURL, s.maxMediaBytes)
		if err != nil {
			return nil, err
		}
		imageURL, err = s.media.Put(ctx, data, contentType)
		if err != nil {
			return nil, fmt.Errorf("store image: %w", err)
		}
	}

	msg, err := domain.NewMessage(sender, receiver, text, imageURL)
	if err != nil {
		return nil, err
	}
	if err := s.messages.Save(ctx, msg); err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}

	if conn, ok := s.registry.Lookup(receiver); ok {
		if err := conn.Send(domain.NewMessageEvent(msg)); err != nil {
			s.metrics.SendDropped()
			s.logger.Debugw("new-message push failed",
				"to", receiver,
				"message_id", msg.ID,
				"error", err,
			)
		}
	}

	s.logger.Debugw("message sent",
		"from", sender,
		"to", receiver,
		"message_id", msg.ID,
	)
	return msg, nil
}
