package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sandeepkv93/learning-portal-client/internal/domain"
)

// FileTokenStore keeps the pair in <dir>/<key>.json with owner-only permissions.
type FileTokenStore struct {
	path string
}

func NewFileTokenStore(dir, key string) *FileTokenStore {
	if dir == "" {
		dir = "."
	}
	return &FileTokenStore{path: filepath.Join(dir, normalizeKey(key)+".json")}
}

func (s *FileTokenStore) Path() string { return s.path }

func (s *FileTokenStore) Load(_ context.Context) (domain.TokenPair, bool, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.TokenPair{}, false, nil
		}
		return domain.TokenPair{}, false, fmt.Errorf("read token file: %w", err)
	}
	return decodeTokenPair(raw)
}

func (s *FileTokenStore) Save(_ context.Context, pair domain.TokenPair) error {
	raw, err := encodeTokenPair(pair)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".tokens-*")
	if err != nil {
		return fmt.Errorf("create token temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write token file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close token file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace token file: %w", err)
	}
	return nil
}

func (s *FileTokenStore) Clear(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}
