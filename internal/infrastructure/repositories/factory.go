package repositories

import (
	"context"
	"fmt"

	"relaychat/internal/core/ports"
	"relaychat/internal/infrastructure/reliability"
	"relaychat/internal/infrastructure/repositories/memory"
	redisrepo "relaychat/internal/infrastructure/repositories/redis"
	sqliterepo "relaychat/internal/infrastructure/repositories/sqlite"
	"relaychat/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory opens the configured store and hands out its
// repositories. Redis falls back to memory when it cannot be reached.
type RepositoryFactory struct {
	driver      string
	keyPrefix   string
	redisClient *redis.Client
	sqliteDB    *sqliterepo.DB

	policy  reliability.Policy
	metrics reliability.StoreMetrics
	logger  *zap.SugaredLogger
}

func NewRepositoryFactory(ctx context.Context, cfg *config.Config, metrics reliability.StoreMetrics, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		driver:    cfg.Storage.Driver,
		keyPrefix: cfg.Redis.KeyPrefix,
		policy:    reliability.PolicyFromConfig(cfg),
		metrics:   metrics,
		logger:    logger,
	}

	switch cfg.Storage.Driver {
	case config.StorageRedis:
		client, err := redisrepo.NewRedisClient(ctx, redisrepo.Options{
			Address:   cfg.Redis.Address,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			PoolSize:  cfg.Redis.PoolSize,
			KeyPrefix: cfg.Redis.KeyPrefix,
		}, logger)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory repositories",
				"error", err,
			)
			factory.driver = config.StorageMemory
			break
		}
		factory.redisClient = client

	case config.StorageSQLite:
		db, err := sqliterepo.Open(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		factory.sqliteDB = db
	}

	logger.Infow("storage ready", "driver", factory.driver)
	return factory, nil
}

// Driver is the store actually in use, which differs from the configured
// one after a Redis fallback.
func (f *RepositoryFactory) Driver() string {
	return f.driver
}

func (f *RepositoryFactory) CreateUserRepository() ports.UserRepository {
	switch {
	case f.redisClient != nil:
		return reliability.NewUserRepositoryWrapper(
			redisrepo.NewRedisUserRepository(f.redisClient, f.keyPrefix),
			f.driver, f.policy, f.metrics, f.logger,
		)
	case f.sqliteDB != nil:
		return reliability.NewUserRepositoryWrapper(
			sqliterepo.NewSQLiteUserRepository(f.sqliteDB),
			f.driver, f.policy, f.metrics, f.logger,
		)
	default:
		return memory.NewMemoryUserRepository()
	}
}

func (f *RepositoryFactory) CreateMessageRepository() ports.MessageRepository {
	switch {
	case f.redisClient != nil:
		return reliability.NewMessageRepositoryWrapper(
			redisrepo.NewRedisMessageRepository(f.redisClient, f.keyPrefix),
			f.driver, f.policy, f.metrics, f.logger,
		)
	case f.sqliteDB != nil:
		return reliability.NewMessageRepositoryWrapper(
			sqliterepo.NewSQLiteMessageRepository(f.sqliteDB),
			f.driver, f.policy, f.metrics, f.logger,
		)
	default:
		return memory.NewMemoryMessageRepository()
	}
}

// HealthCheck pings the backing store. The memory store is always healthy.
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	switch {
	case f.redisClient != nil:
		return f.redisClient.Ping(ctx).Err()
	case f.sqliteDB != nil:
		return f.sqliteDB.Ping(ctx)
	default:
		return nil
	}
}

func (f *RepositoryFactory) Close() error {
	switch {
	case f.redisClient != nil:
		return redisrepo.CloseRedisClient(f.redisClient)
	case f.sqliteDB != nil:
		return f.sqliteDB.Close()
	default:
		return nil
	}
}
