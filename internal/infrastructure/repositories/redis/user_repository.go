package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"relaychat/internal/core/domain"
	"relaychat/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// userRecord is the stored form of a user. Unlike domain.User it keeps the
// password hash.
type userRecord struct {
	ID           string    `json:"id"`
	FullName     string    `json:"full_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	ProfilePic   string    `json:"profile_pic"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toUserRecord(u *domain.User) userRecord {
	return userRecord{
		ID:           u.ID.String(),
		FullName:     u.FullName,
		Email:        strings.ToLower(u.Email),
		PasswordHash: u.PasswordHash,
		ProfilePic:   u.ProfilePic,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (r userRecord) toDomain() *domain.User {
	return &domain.User{
		ID:           domain.UserID(r.ID),
		FullName:     r.FullName,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		ProfilePic:   r.ProfilePic,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

type RedisUserRepository struct {
	client *redis.Client
	keys   keyspace
}

func NewRedisUserRepository(client *redis.Client, keyPrefix string) ports.UserRepository {
	return &RedisUserRepository{
		client: client,
		keys:   newKeyspace(keyPrefix),
	}
}

func (r *RedisUserRepository) Create(ctx context.Context, user *domain.User) error {
	rec := toUserRecord(user)
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	// The email index doubles as the uniqueness lock.
	claimed, err := r.client.SetNX(ctx, r.keys.email(rec.Email), rec.ID, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to reserve email in Redis: %w", err)
	}
	if !claimed {
		return domain.ErrEmailTaken
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.keys.user(rec.ID), data, 0)
	pipe.ZAdd(ctx, r.keys.users(), redis.Z{
		Score:  float64(rec.CreatedAt.UnixMilli()),
		Member: rec.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		r.client.Del(ctx, r.keys.email(rec.Email))
		return fmt.Errorf("failed to store user in Redis: %w", err)
	}
	return nil
}

func (r *RedisUserRepository) GetByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	data, err := r.client.Get(ctx, r.keys.user(id.String())).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user from Redis: %w", err)
	}
	return decodeUser(data)
}

func (r *RedisUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	id, err := r.client.Get(ctx, r.keys.email(strings.ToLower(email))).Result()
	if err == redis.Nil {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up email in Redis: %w", err)
	}
	return r.GetByID(ctx, domain.UserID(id))
}

func (r *RedisUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	ids, err := r.client.ZRange(ctx, r.keys.users(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list users from Redis: %w", err)
	}
	if len(ids) == 0 {
		return []*domain.User{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.keys.user(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load users from Redis: %w", err)
	}

	users := make([]*domain.User, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			// index entry without a record
			continue
		}
		user, err := decodeUser([]byte(s))
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

func (r *RedisUserRepository) Update(ctx context.Context, user *domain.User) error {
	data, err := json.Marshal(toUserRecord(user))
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	updated, err := r.client.SetXX(ctx, r.keys.user(user.ID.String()), data, redis.KeepTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to update user in Redis: %w", err)
	}
	if !updated {
		return domain.ErrUserNotFound
	}
	return nil
}

func decodeUser(data []byte) (*domain.User, error) {
	var rec userRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	return rec.toDomain(), nil
}
