package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/aquamind/internal/domain"
)

// compile-time checks
var (
	_ SnapshotRepository = (*MemorySnapshotRepository)(nil)
	_ SnapshotRepository = (*snapshotRepository)(nil)
)

func TestMemoryCreateFillsDefaults(t *testing.T) {
	repo := NewMemorySnapshotRepository()
	created, err := repo.Create(context.Background(), domain.ListSnapshot{
		Endpoint: domain.EndpointBatches,
		Items:    []domain.Record{{"id": 1}, {"id": 2}},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == uuid.Nil {
		t.Fatal("expected generated ID")
	}
	if created.FetchedAt.IsZero() {
		t.Fatal("expected fetch timestamp")
	}
	if created.ItemCount != 2 {
		t.Fatalf("expected item count 2, got %d", created.ItemCount)
	}
	if created.Filters == nil {
		t.Fatal("expected non-nil filters")
	}

	got, err := repo.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(got.Items) != 2 || got.Endpoint != domain.EndpointBatches {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
}

func TestMemoryListOrdersAndFilters(t *testing.T) {
	repo := NewMemorySnapshotRepository()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	endpoints := []domain.Endpoint{domain.EndpointHalls, domain.EndpointBatches, domain.EndpointHalls}
	var ids []uuid.UUID
	for i, endpoint := range endpoints {
		created, err := repo.Create(context.Background(), domain.ListSnapshot{
			Endpoint:  endpoint,
			Filters:   map[string]string{"hall__in": "1"},
			Items:     []domain.Record{{"id": i}},
			FetchedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		ids = append(ids, created.ID)
	}

	all, err := repo.List(context.Background(), SnapshotFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].ID != ids[2] || all[2].ID != ids[0] {
		t.Fatalf("expected newest first, got %+v", all)
	}
	for _, s := range all {
		if s.Items != nil {
			t.Fatal("expected listing without items")
		}
	}

	halls, err := repo.List(context.Background(), SnapshotFilter{Endpoint: domain.EndpointHalls, Limit: 1})
	if err != nil {
		t.Fatalf("List halls: %v", err)
	}
	if len(halls) != 1 || halls[0].ID != ids[2] {
		t.Fatalf("unexpected hall listing: %+v", halls)
	}

	page, err := repo.List(context.Background(), SnapshotFilter{Offset: 5})
	if err != nil || len(page) != 0 {
		t.Fatalf("expected empty page past the end, got %v %v", page, err)
	}
}

func TestMemoryDelete(t *testing.T) {
	repo := NewMemorySnapshotRepository()
	created, _ := repo.Create(context.Background(), domain.ListSnapshot{Endpoint: domain.EndpointAreas})

	if err := repo.Delete(context.Background(), created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.GetByID(context.Background(), created.ID); !errors.Is(err, ErrSnapshotNotFound) {
		t.Fatalf("expected ErrSnapshotNotFound, got %v", err)
	}
	if err := repo.Delete(context.Background(), created.ID); !errors.Is(err, ErrSnapshotNotFound) {
		t.Fatalf("expected ErrSnapshotNotFound on second delete, got %v", err)
	}
}

func TestMemoryReturnsCopies(t *testing.T) {
	repo := NewMemorySnapshotRepository()
	created, _ := repo.Create(context.Background(), domain.ListSnapshot{
		Endpoint: domain.EndpointHalls,
		Filters:  map[string]string{"area__in": "1"},
	})

	got, _ := repo.GetByID(context.Background(), created.ID)
	got.Filters["area__in"] = "changed"

	again, _ := repo.GetByID(context.Background(), created.ID)
	if again.Filters["area__in"] != "1" {
		t.Fatalf("stored snapshot was mutated: %v", again.Filters)
	}
}

func TestUninitializedPostgresRepository(t *testing.T) {
	repo := NewSnapshotRepository(nil)
	if _, err := repo.GetByID(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected error from uninitialized repository")
	}
	if _, err := repo.List(context.Background(), SnapshotFilter{}); err == nil {
		t.Fatal("expected error from uninitialized repository")
	}
}

func TestDecodeItemsKeepsNumbers(t *testing.T) {
	items, err := decodeItems([]byte(`[{"id": 9007199254740993, "weight": 1.5}]`))
	if err != nil {
		t.Fatalf("decodeItems: %v", err)
	}
	id, ok := items[0].ID()
	if !ok || id != 9007199254740993 {
		t.Fatalf("expected exact id, got %v %v", id, ok)
	}

	empty, err := decodeItems(nil)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v %v", empty, err)
	}
}
