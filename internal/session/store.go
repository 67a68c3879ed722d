package session

import (
	"context"

	"github.com/google/uuid"
)

// Snapshot is one persisted session: the full game state as JSON, plus the
// phase so the directory can skip finished games on restore.
type Snapshot struct {
	ID    uuid.UUID
	Phase string
	State []byte
}

// Store is the durability collaborator. The in-memory state stays
// authoritative; implementations only have to keep the latest snapshot.
type Store interface {
	Save(ctx context.Context, snap Snapshot) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]Snapshot, error)
}

// NopStore disables persistence. Sessions then live only in memory.
type NopStore struct{}

func (NopStore) Save(context.Context, Snapshot) error     { return nil }
func (NopStore) Delete(context.Context, uuid.UUID) error  { return nil }
func (NopStore) List(context.Context) ([]Snapshot, error) { return nil, nil }
