package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"relaychat/pkg/distributed"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const currentSchemaVersion = 1

type Migration struct {
	Version int
	Up      func(ctx context.Context, client *redis.Client, keys keyspace) error
}

// Migrate runs all pending migrations. Instances starting together serialize
// on a lock so each migration runs once.
func Migrate(ctx context.Context, client *redis.Client, keys keyspace, logger *zap.SugaredLogger) error {
	lock := distributed.NewLock(client, keys.migrationLock(), 30*time.Second)
	if err := lock.Lock(ctx, 30*time.Second); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	defer func() {
		if err := lock.Unlock(context.Background()); err != nil && logger != nil {
			logger.Warnw("failed to release migration lock", "error", err)
		}
	}()

	currentVersion, err := getSchemaVersion(ctx, client, keys)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	if currentVersion >= currentSchemaVersion {
		if logger != nil {
			logger.Infow("schema is up to date",
				"current_version", currentVersion,
				"target_version", currentSchemaVersion,
			)
		}
		return nil
	}

	for _, migration := range getMigrations() {
		if migration.Version <= currentVersion {
			continue
		}
		if logger != nil {
			logger.Infow("running migration", "version", migration.Version)
		}

		if err := migration.Up(ctx, client, keys); err != nil {
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}
		if err := client.Set(ctx, keys.schemaVersion(), migration.Version, 0).Err(); err != nil {
			return fmt.Errorf("failed to update schema version: %w", err)
		}
	}

	if logger != nil {
		logger.Infow("all migrations completed", "final_version", currentSchemaVersion)
	}
	return nil
}

func getSchemaVersion(ctx context.Context, client *redis.Client, keys keyspace) (int, error) {
	val, err := client.Get(ctx, keys.schemaVersion()).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

func getMigrations() []Migration {
	return []Migration{
		{
			// 1: rebuild the email and creation-order indexes from user records.
			Version: 1,
			Up: func(ctx context.Context, client *redis.Client, keys keyspace) error {
				iter := client.Scan(ctx, 0, keys.userPattern(), 100).Iterator()
				for iter.Next(ctx) {
					key := iter.Val()
					data, err := client.Get(ctx, key).Bytes()
					if err != nil {
						return err
					}

					var rec userRecord
					if err := json.Unmarshal(data, &rec); err != nil {
						return fmt.Errorf("decode %s: %w", key, err)
					}

					pipe := client.TxPipeline()
					pipe.SetNX(ctx, keys.email(strings.ToLower(rec.Email)), rec.ID, 0)
					pipe.ZAddNX(ctx, keys.users(), redis.Z{
						Score:  float64(rec.CreatedAt.UnixMilli()),
						Member: rec.ID,
					})
					if _, err := pipe.Exec(ctx); err != nil {
						return err
					}
				}
				return iter.Err()
			},
		},
	}
}
