package storage

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/sandeepkv93/learning-portal-client/internal/domain"
)

type RedisTokenStore struct {
	client redis.UniversalClient
	key    string
}

func NewRedisTokenStore(client redis.UniversalClient, prefix, key string) *RedisTokenStore {
	if prefix == "" {
		prefix = "portal_session"
	}
	return &RedisTokenStore{
		client: client,
		key:    fmt.Sprintf("%s:%s", prefix, normalizeKey(key)),
	}
}

func (s *RedisTokenStore) Load(ctx context.Context) (domain.TokenPair, bool, error) {
	if s.client == nil {
		return domain.TokenPair{}, false, nil
	}
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if err == redis.Nil {
		return domain.TokenPair{}, false, nil
	}
	if err != nil {
		return domain.TokenPair{}, false, err
	}
	return decodeTokenPair(raw)
}

func (s *RedisTokenStore) Save(ctx context.Context, pair domain.TokenPair) error {
	if s.client == nil {
		return nil
	}
	raw, err := encodeTokenPair(pair)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key, raw, 0).Err()
}

func (s *RedisTokenStore) Clear(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Del(ctx, s.key).Err()
}
