package entityloader

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/graph-gophers/dataloader"
	"go.uber.org/zap"

	"github.com/rpattn/aquamind/internal/domain"
	"github.com/rpattn/aquamind/pkg/filter"
	"github.com/rpattn/aquamind/pkg/pagination"
)

// ErrNotFound is returned by Load when the API has no object with the ID.
var ErrNotFound = errors.New("entity not found")

// Lister is the part of the API client the loader needs.
type Lister interface {
	ListAll(ctx context.Context, endpoint domain.Endpoint, filters *filter.Map[int64], maxPages int, onProgress pagination.ProgressFunc) ([]domain.Record, error)
}

// EntityLoader batches by-ID lookups against one endpoint into a single
// `id__in` listing.
type EntityLoader struct {
	Loader   *dataloader.Loader
	endpoint domain.Endpoint
}

func NewEntityLoader(lister Lister, endpoint domain.Endpoint, logger *zap.Logger) *EntityLoader {
	if logger == nil {
		logger = zap.NewNop()
	}

	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		results := make([]*dataloader.Result, len(keys))

		// Parse keys; bad ones fail on their own
		ids := make([]int64, 0, len(keys))
		for i, k := range keys {
			id, err := strconv.ParseInt(k.String(), 10, 64)
			if err != nil || id <= 0 {
				results[i] = &dataloader.Result{Error: &filter.InvalidIDError{Value: k.String()}}
				continue
			}
			ids = append(ids, id)
		}
		if len(ids) == 0 {
			return results
		}

		filters := filter.NewMap[int64]()
		filters.Set("id__in", ids)
		records, err := lister.ListAll(ctx, endpoint, filters, pagination.DefaultMaxPages, nil)
		if err != nil {
			logger.Error("batch load failed",
				zap.String("endpoint", endpoint.String()),
				zap.Int("keys", len(ids)),
				zap.Error(err),
			)
			for i := range results {
				if results[i] == nil {
					results[i] = &dataloader.Result{Error: err}
				}
			}
			return results
		}

		byID := make(map[string]domain.Record, len(records))
		for _, rec := range records {
			if id, ok := rec.ID(); ok {
				byID[strconv.FormatInt(id, 10)] = rec
			}
		}

		// Results must line up with keys
		for i, k := range keys {
			if results[i] != nil {
				continue
			}
			if rec, ok := byID[canonical(k.String())]; ok {
				results[i] = &dataloader.Result{Data: rec}
			} else {
				results[i] = &dataloader.Result{Data: nil}
			}
		}
		logger.Debug("batch loaded",
			zap.String("endpoint", endpoint.String()),
			zap.Int("keys", len(keys)),
			zap.Int("found", len(byID)),
		)
		return results
	}

	loader := dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(5*time.Millisecond))

	return &EntityLoader{Loader: loader, endpoint: endpoint}
}

// Load resolves one record. Concurrent calls within the batch window share
// a request.
func (l *EntityLoader) Load(ctx context.Context, id int64) (domain.Record, error) {
	data, err := l.Loader.Load(ctx, dataloader.StringKey(strconv.FormatInt(id, 10)))()
	if err != nil {
		return nil, err
	}
	rec, ok := data.(domain.Record)
	if !ok || rec == nil {
		return nil, ErrNotFound
	}
	return rec, nil
}

// LoadMany resolves ids in order. Missing records are nil in the result;
// per-key failures are joined into the returned error.
func (l *EntityLoader) LoadMany(ctx context.Context, ids []int64) ([]domain.Record, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = strconv.FormatInt(id, 10)
	}
	data, errs := l.Loader.LoadMany(ctx, dataloader.NewKeysFromStrings(keys))()

	out := make([]domain.Record, len(ids))
	for i, d := range data {
		if rec, ok := d.(domain.Record); ok {
			out[i] = rec
		}
	}
	return out, errors.Join(errs...)
}

// canonical strips leading zeros so "007" matches record 7.
func canonical(key string) string {
	id, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return key
	}
	return strconv.FormatInt(id, 10)
}

// Loaders holds one EntityLoader per endpoint, created on first use. A
// Loaders value is meant to live for a single request or command so its
// caches do not go stale.
type Loaders struct {
	lister Lister
	logger *zap.Logger

	mu      sync.Mutex
	loaders map[domain.Endpoint]*EntityLoader
}

func NewLoaders(lister Lister, logger *zap.Logger) *Loaders {
	return &Loaders{
		lister:  lister,
		logger:  logger,
		loaders: make(map[domain.Endpoint]*EntityLoader),
	}
}

// For returns the loader for endpoint.
func (l *Loaders) For(endpoint domain.Endpoint) *EntityLoader {
	l.mu.Lock()
	defer l.mu.Unlock()
	loader, ok := l.loaders[endpoint]
	if !ok {
		loader = NewEntityLoader(l.lister, endpoint, l.logger)
		l.loaders[endpoint] = loader
	}
	return loader
}

type ctxKey struct{}

// WithLoaders attaches loaders to ctx.
func WithLoaders(ctx context.Context, loaders *Loaders) context.Context {
	return context.WithValue(ctx, ctxKey{}, loaders)
}

// FromContext retrieves the loaders attached by WithLoaders.
func FromContext(ctx context.Context) *Loaders {
	if l, ok := ctx.Value(ctxKey{}).(*Loaders); ok {
		return l
	}
	return nil
}
