package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sandeepkv93/learning-portal-client/internal/domain"
)

// LocalStorageEntry is one key/value row of the sqlite-backed local storage table.
type LocalStorageEntry struct {
	Key   string `gorm:"column:storage_key;primaryKey;size:128"`
	Value string `gorm:"type:text;not null"`
}

func (LocalStorageEntry) TableName() string { return "local_storage" }

type SQLTokenStore struct {
	db  *gorm.DB
	key string
}

func NewSQLTokenStore(db *gorm.DB, key string) (*SQLTokenStore, error) {
	if err := db.AutoMigrate(&LocalStorageEntry{}); err != nil {
		return nil, fmt.Errorf("migrate local storage: %w", err)
	}
	return &SQLTokenStore{db: db, key: normalizeKey(key)}, nil
}

func (s *SQLTokenStore) Load(ctx context.Context) (domain.TokenPair, bool, error) {
	var entry LocalStorageEntry
	err := s.db.WithContext(ctx).Where("storage_key = ?", s.key).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.TokenPair{}, false, nil
		}
		return domain.TokenPair{}, false, err
	}
	return decodeTokenPair([]byte(entry.Value))
}

func (s *SQLTokenStore) Save(ctx context.Context, pair domain.TokenPair) error {
	raw, err := encodeTokenPair(pair)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "storage_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&LocalStorageEntry{Key: s.key, Value: string(raw)}).Error
}

func (s *SQLTokenStore) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).Where("storage_key = ?", s.key).Delete(&LocalStorageEntry{}).Error
}
