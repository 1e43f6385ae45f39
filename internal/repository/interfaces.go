package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/rpattn/aquamind/internal/domain"
)

// ErrSnapshotNotFound is returned when no snapshot has the requested ID.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotFilter narrows a snapshot listing. A zero Endpoint matches all.
type SnapshotFilter struct {
	Endpoint domain.Endpoint
	Limit    int
	Offset   int
}

const defaultListLimit = 50

// SnapshotRepository persists materialised endpoint listings.
type SnapshotRepository interface {
	Create(ctx context.Context, snapshot domain.ListSnapshot) (domain.ListSnapshot, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.ListSnapshot, error)
	// List returns snapshots newest first, without their items.
	List(ctx context.Context, filter SnapshotFilter) ([]domain.ListSnapshot, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

func (f SnapshotFilter) normalized() SnapshotFilter {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
