package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sandeepkv93/learning-portal-client/internal/config"
)

// Open builds the durable token store selected by cfg.TokenStore. The returned cleanup releases
// any connection the store holds and is never nil.
func Open(ctx context.Context, cfg *config.Config) (TokenStore, func(), error) {
	noop := func() {}
	switch cfg.TokenStore {
	case config.TokenStoreMemory:
		return NewInMemoryTokenStore(), noop, nil
	case config.TokenStoreFile:
		return NewFileTokenStore(cfg.TokenFileDir, cfg.TokenStorageKey), noop, nil
	case config.TokenStoreSQLite:
		if dir := filepath.Dir(cfg.TokenSQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, noop, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		db, err := gorm.Open(sqlite.Open(cfg.TokenSQLitePath), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
		if err != nil {
			return nil, noop, fmt.Errorf("open sqlite token store: %w", err)
		}
		closeDB := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		store, err := NewSQLTokenStore(db, cfg.TokenStorageKey)
		if err != nil {
			closeDB()
			return nil, noop, err
		}
		return store, closeDB, nil
	case config.TokenStoreRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("ping redis: %w", err)
		}
		return NewRedisTokenStore(client, cfg.RedisKeyPrefix, cfg.TokenStorageKey), func() { _ = client.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown token store %q", cfg.TokenStore)
	}
}
