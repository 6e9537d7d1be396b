package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Options struct {
	Address   string
	Password  string
	DB        int
	PoolSize  int
	KeyPrefix string
}

// NewRedisClient connects with pooling, verifies the server answers and
// brings the keyspace up to the current schema version.
func NewRedisClient(ctx context.Context, opts Options, logger *zap.SugaredLogger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Address,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if err := Migrate(ctx, client, newKeyspace(opts.KeyPrefix), logger); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if logger != nil {
		logger.Infow("connected to Redis",
			"address", opts.Address,
			"db", opts.DB,
			"pool_size", opts.PoolSize,
		)
	}

	return client, nil
}

func CloseRedisClient(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}

// keyspace names every key the repositories touch under one prefix.
type keyspace struct {
	prefix string
}

func newKeyspace(prefix string) keyspace {
	if prefix == "" {
		prefix = "relaychat"
	}
	return keyspace{prefix: prefix}
}

func (k keyspace) schemaVersion() string { return k.prefix + ":schema:version" }
func (k keyspace) migrationLock() string { return k.prefix + ":schema:lock" }
func (k keyspace) user(id string) string { return k.prefix + ":user:" + id }
func (k keyspace) userPattern() string   { return k.prefix + ":user:*" }
func (k keyspace) email(e string) string { return k.prefix + ":email:" + e }
func (k keyspace) users() string         { return k.prefix + ":users" }

// conversation keys are symmetric in a and b.
func (k keyspace) conversation(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return k.prefix + ":conversation:" + a + ":" + b
}
