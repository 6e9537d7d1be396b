package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"relaychat/internal/core/domain"
	"relaychat/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// RedisMessageRepository appends each message to a per-pair list, so a
// conversation reads back in the order it was written.
type RedisMessageRepository struct {
	client *redis.Client
	keys   keyspace
}

func NewRedisMessageRepository(client *redis.Client, keyPrefix string) ports.MessageRepository {
	return &RedisMessageRepository{
		client: client,
		keys:   newKeyspace(keyPrefix),
	}
}

func (r *RedisMessageRepository) Save(ctx context.Context, msg *domain.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	key := r.keys.conversation(msg.SenderID.String(), msg.ReceiverID.String())
	if err := r.client.RPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("failed to append message in Redis: %w", err)
	}
	return nil
}

func (r *RedisMessageRepository) Conversation(ctx context.Context, a, b domain.UserID) ([]*domain.Message, error) {
	values, err := r.client.LRange(ctx, r.keys.conversation(a.String(), b.String()), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation from Redis: %w", err)
	}

	messages := make([]*domain.Message, 0, len(values))
	for _, v := range values {
		var msg domain.Message
		if err := json.Unmarshal([]byte(v), &msg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message: %w", err)
		}
		messages = append(messages, &msg)
	}
	return messages, nil
}
