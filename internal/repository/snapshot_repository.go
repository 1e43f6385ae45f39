package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/aquamind/internal/domain"
)

type snapshotRepository struct {
	pool *pgxpool.Pool
}

// NewSnapshotRepository wires a repository backed by pgxpool.
func NewSnapshotRepository(pool *pgxpool.Pool) SnapshotRepository {
	return &snapshotRepository{pool: pool}
}

func (r *snapshotRepository) Create(ctx context.Context, snapshot domain.ListSnapshot) (domain.ListSnapshot, error) {
	if r.pool == nil {
		return domain.ListSnapshot{}, fmt.Errorf("snapshot repository not initialized")
	}

	snapshot = prepareSnapshot(snapshot)
	filters, err := json.Marshal(snapshot.Filters)
	if err != nil {
		return domain.ListSnapshot{}, fmt.Errorf("failed to encode snapshot filters: %w", err)
	}
	items, err := json.Marshal(snapshot.Items)
	if err != nil {
		return domain.ListSnapshot{}, fmt.Errorf("failed to encode snapshot items: %w", err)
	}

	_, err = r.pool.Exec(
		ctx,
		`INSERT INTO list_snapshots (id, endpoint, filters, filter_summary, item_count, items, fetched_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		snapshot.ID,
		string(snapshot.Endpoint),
		filters,
		snapshot.FilterSummary,
		snapshot.ItemCount,
		items,
		snapshot.FetchedAt,
	)
	if err != nil {
		return domain.ListSnapshot{}, fmt.Errorf("failed to create snapshot: %w", err)
	}

	return snapshot, nil
}

func (r *snapshotRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.ListSnapshot, error) {
	if r.pool == nil {
		return domain.ListSnapshot{}, fmt.Errorf("snapshot repository not initialized")
	}

	row := r.pool.QueryRow(
		ctx,
		`SELECT id, endpoint, filters, filter_summary, item_count, items, fetched_at
		 FROM list_snapshots
		 WHERE id = $1`,
		id,
	)

	var (
		snapshot  domain.ListSnapshot
		endpoint  string
		filters   []byte
		items     []byte
		fetchedAt pgtype.Timestamptz
	)
	if err := row.Scan(&snapshot.ID, &endpoint, &filters, &snapshot.FilterSummary, &snapshot.ItemCount, &items, &fetchedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ListSnapshot{}, ErrSnapshotNotFound
		}
		return domain.ListSnapshot{}, fmt.Errorf("failed to get snapshot: %w", err)
	}

	snapshot.Endpoint = domain.Endpoint(endpoint)
	if fetchedAt.Valid {
		snapshot.FetchedAt = fetchedAt.Time
	}
	if err := json.Unmarshal(filters, &snapshot.Filters); err != nil {
		return domain.ListSnapshot{}, fmt.Errorf("failed to decode snapshot filters: %w", err)
	}
	decoded, err := decodeItems(items)
	if err != nil {
		return domain.ListSnapshot{}, err
	}
	snapshot.Items = decoded

	return snapshot, nil
}

func (r *snapshotRepository) List(ctx context.Context, filter SnapshotFilter) ([]domain.ListSnapshot, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("snapshot repository not initialized")
	}

	filter = filter.normalized()
	rows, err := r.pool.Query(
		ctx,
		`SELECT id, endpoint, filters, filter_summary, item_count, fetched_at
		 FROM list_snapshots
		 WHERE ($1::text = '' OR endpoint = $1)
		 ORDER BY fetched_at DESC
		 LIMIT $2 OFFSET $3`,
		string(filter.Endpoint),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := []domain.ListSnapshot{}
	for rows.Next() {
		var (
			snapshot  domain.ListSnapshot
			endpoint  string
			filters   []byte
			fetchedAt pgtype.Timestamptz
		)
		if scanErr := rows.Scan(
			&snapshot.ID,
			&endpoint,
			&filters,
			&snapshot.FilterSummary,
			&snapshot.ItemCount,
			&fetchedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", scanErr)
		}

		snapshot.Endpoint = domain.Endpoint(endpoint)
		if fetchedAt.Valid {
			snapshot.FetchedAt = fetchedAt.Time
		}
		if err := json.Unmarshal(filters, &snapshot.Filters); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot filters: %w", err)
		}

		snapshots = append(snapshots, snapshot)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate snapshots: %w", rowsErr)
	}

	return snapshots, nil
}

func (r *snapshotRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if r.pool == nil {
		return fmt.Errorf("snapshot repository not initialized")
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM list_snapshots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSnapshotNotFound
	}
	return nil
}

// prepareSnapshot fills the ID, timestamp and count a stored snapshot must
// carry.
func prepareSnapshot(snapshot domain.ListSnapshot) domain.ListSnapshot {
	if snapshot.ID == uuid.Nil {
		snapshot.ID = uuid.New()
	}
	if snapshot.FetchedAt.IsZero() {
		snapshot.FetchedAt = time.Now().UTC()
	}
	if snapshot.Filters == nil {
		snapshot.Filters = map[string]string{}
	}
	if snapshot.Items == nil {
		snapshot.Items = []domain.Record{}
	}
	snapshot.ItemCount = len(snapshot.Items)
	return snapshot
}

func decodeItems(raw []byte) ([]domain.Record, error) {
	items := []domain.Record{}
	if len(raw) == 0 {
		return items, nil
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&items); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot items: %w", err)
	}
	return items, nil
}
