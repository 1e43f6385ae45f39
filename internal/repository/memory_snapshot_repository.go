package repository

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/rpattn/aquamind/internal/domain"
)

// MemorySnapshotRepository keeps snapshots in process memory. It is used
// when no database is configured.
type MemorySnapshotRepository struct {
	mu        sync.RWMutex
	snapshots map[uuid.UUID]domain.ListSnapshot
}

func NewMemorySnapshotRepository() *MemorySnapshotRepository {
	return &MemorySnapshotRepository{snapshots: make(map[uuid.UUID]domain.ListSnapshot)}
}

func (r *MemorySnapshotRepository) Create(_ context.Context, snapshot domain.ListSnapshot) (domain.ListSnapshot, error) {
	snapshot = prepareSnapshot(snapshot)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots[snapshot.ID] = copySnapshot(snapshot)
	return snapshot, nil
}

func (r *MemorySnapshotRepository) GetByID(_ context.Context, id uuid.UUID) (domain.ListSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snapshot, ok := r.snapshots[id]
	if !ok {
		return domain.ListSnapshot{}, ErrSnapshotNotFound
	}
	return copySnapshot(snapshot), nil
}

func (r *MemorySnapshotRepository) List(_ context.Context, filter SnapshotFilter) ([]domain.ListSnapshot, error) {
	filter = filter.normalized()

	r.mu.RLock()
	matches := make([]domain.ListSnapshot, 0, len(r.snapshots))
	for _, snapshot := range r.snapshots {
		if filter.Endpoint != "" && snapshot.Endpoint != filter.Endpoint {
			continue
		}
		snapshot.Filters = maps.Clone(snapshot.Filters)
		snapshot.Items = nil
		matches = append(matches, snapshot)
	}
	r.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].FetchedAt.Equal(matches[j].FetchedAt) {
			return matches[i].ID.String() < matches[j].ID.String()
		}
		return matches[i].FetchedAt.After(matches[j].FetchedAt)
	})

	if filter.Offset >= len(matches) {
		return []domain.ListSnapshot{}, nil
	}
	end := min(filter.Offset+filter.Limit, len(matches))
	return matches[filter.Offset:end], nil
}

func (r *MemorySnapshotRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.snapshots[id]; !ok {
		return ErrSnapshotNotFound
	}
	delete(r.snapshots, id)
	return nil
}

func copySnapshot(snapshot domain.ListSnapshot) domain.ListSnapshot {
	snapshot.Filters = maps.Clone(snapshot.Filters)
	snapshot.Items = slices.Clone(snapshot.Items)
	return snapshot
}
