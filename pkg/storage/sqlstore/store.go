// Package sqlstore keeps local entries in the local_entries table through GORM.
package sqlstore

import (
	"context"
	"errors"
	"time"

	"github.com/nursingcollective/cartengine/pkg/db"
	"github.com/nursingcollective/cartengine/pkg/storage"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LocalEntry maps a row of local_entries.
type LocalEntry struct {
	Key       string    `gorm:"column:entry_key;primaryKey"`
	Value     string    `gorm:"column:value;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (LocalEntry) TableName() string { return "local_entries" }

type Store struct {
	client *db.Client
	now    func() time.Time
}

var _ storage.Store = (*Store)(nil)

// New expects the local_entries migration to have been applied.
func New(client *db.Client) *Store {
	return &Store{client: client, now: time.Now}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var entry LocalEntry
	err := s.client.DB().WithContext(ctx).
		Where("entry_key = ?", key).
		Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(entry.Value), nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	entry := LocalEntry{
		Key:       key,
		Value:     string(value),
		UpdatedAt: s.now().UTC(),
	}
	return s.client.DB().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "entry_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&entry).Error
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.client.DB().WithContext(ctx).
		Where("entry_key = ?", key).
		Delete(&LocalEntry{}).Error
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}
