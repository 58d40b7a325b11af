package database

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"resale-ledger-go/internal/models"
)

// snapshotKey is the single row under which the whole collection lives.
const snapshotKey = "collection"

// Snapshot is the key-value row holding a serialized record collection.
type Snapshot struct {
	Key       string `gorm:"primaryKey"`
	Value     []byte
	UpdatedAt time.Time
}

// SnapshotStore persists the record collection as one JSON blob, written
// after every mutation and read once at startup.
type SnapshotStore struct {
	db *gorm.DB
}

// NewSnapshotStore opens the database and performs auto-migration.
func NewSnapshotStore(dsn string) (*SnapshotStore, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&Snapshot{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	return &SnapshotStore{db: db}, nil
}

// Save replaces the persisted collection with the given records.
func (s *SnapshotStore) Save(records []models.Record) error {
	value, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to serialize collection: %w", err)
	}

	snap := Snapshot{Key: snapshotKey, Value: value, UpdatedAt: time.Now()}
	if err := s.db.Save(&snap).Error; err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// Load reads the persisted collection. The second return value is false when
// no snapshot has ever been written; the caller starts empty in that case.
func (s *SnapshotStore) Load() ([]models.Record, bool, error) {
	var snap Snapshot
	err := s.db.First(&snap, "key = ?", snapshotKey).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var records []models.Record
	if err := json.Unmarshal(snap.Value, &records); err != nil {
		return nil, false, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return records, true, nil
}
