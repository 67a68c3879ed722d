// Package store persists session snapshots to postgres via gorm. It is a
// thin durability collaborator: the session actors stay authoritative and
// only push their latest snapshot here.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"uno/internal/session"
)

type GameRecord struct {
	ID        uuid.UUID `gorm:"primaryKey;type:uuid"`
	Phase     string    `gorm:"not null"`
	State     []byte    `gorm:"type:jsonb;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Store struct {
	db *gorm.DB
}

// Open connects and migrates the schema.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&GameRecord{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Save(ctx context.Context, snap session.Snapshot) error {
	rec := GameRecord{ID: snap.ID, Phase: snap.Phase, State: snap.State}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rec).Error
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Delete(&GameRecord{}, "id = ?", id).Error
}

func (s *Store) List(ctx context.Context) ([]session.Snapshot, error) {
	var recs []GameRecord
	if err := s.db.WithContext(ctx).Find(&recs).Error; err != nil {
		return nil, err
	}
	snaps := make([]session.Snapshot, 0, len(recs))
	for _, rec := range recs {
		snaps = append(snaps, session.Snapshot{ID: rec.ID, Phase: rec.Phase, State: rec.State})
	}
	return snaps, nil
}
