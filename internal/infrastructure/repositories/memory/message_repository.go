package memory

import (
	"context"
	"sort"
	"sync"

	"relaychat/internal/core/domain"
	"relaychat/internal/core/ports"
)

type MemoryMessageRepository struct {
	messages []*domain.Message
	mu       sync.RWMutex
}

func NewMemoryMessageRepository() ports.MessageRepository {
	return &MemoryMessageRepository{}
}

func (r *MemoryMessageRepository) Save(ctx context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *msg
	r.messages = append(r.messages, &stored)
	return nil
}

func (r *MemoryMessageRepository) Conversation(ctx context.Context, a, b domain.UserID) ([]*domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Message
	for _, msg := range r.messages {
		if (msg.SenderID == a && msg.ReceiverID == b) || (msg.SenderID == b && msg.ReceiverID == a) {
			copied := *msg
			out = append(out, &copied)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
