package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sandeepkv93/learning-portal-client/internal/domain"
)

const DefaultTokenKey = "auth_tokens"

var ErrCorruptTokens = errors.New("stored token pair is corrupt")

// TokenStore is the durable slot holding at most one token pair. A missing key means no session.
type TokenStore interface {
	Load(ctx context.Context) (domain.TokenPair, bool, error)
	Save(ctx context.Context, pair domain.TokenPair) error
	Clear(ctx context.Context) error
}

type InMemoryTokenStore struct {
	mu    sync.RWMutex
	raw   []byte
	saves int
}

func NewInMemoryTokenStore() *InMemoryTokenStore {
	return &InMemoryTokenStore{}
}

func (s *InMemoryTokenStore) Load(_ context.Context) (domain.TokenPair, bool, error) {
	s.mu.RLock()
	raw := s.raw
	s.mu.RUnlock()
	if raw == nil {
		return domain.TokenPair{}, false, nil
	}
	return decodeTokenPair(raw)
}

func (s *InMemoryTokenStore) Save(_ context.Context, pair domain.TokenPair) error {
	raw, err := encodeTokenPair(pair)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw = raw
	s.saves++
	return nil
}

func (s *InMemoryTokenStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw = nil
	return nil
}

// Saves returns how many times a pair was written.
func (s *InMemoryTokenStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

func encodeTokenPair(pair domain.TokenPair) ([]byte, error) {
	if pair.IsZero() {
		return nil, fmt.Errorf("encode token pair: empty pair")
	}
	return json.Marshal(pair)
}

func decodeTokenPair(raw []byte) (domain.TokenPair, bool, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return domain.TokenPair{}, false, nil
	}
	var pair domain.TokenPair
	if err := json.Unmarshal(raw, &pair); err != nil {
		return domain.TokenPair{}, false, fmt.Errorf("%w: %v", ErrCorruptTokens, err)
	}
	if pair.IsZero() {
		return domain.TokenPair{}, false, nil
	}
	return pair, true, nil
}

func normalizeKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return DefaultTokenKey
	}
	return key
}
