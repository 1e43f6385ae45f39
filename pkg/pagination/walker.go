package pagination

import (
	"context"

	"go.uber.org/zap"
)

// Option configures FetchAllPages.
type Option func(*walkConfig)

type walkConfig struct {
	logger *zap.Logger
}

// WithLogger routes walk progress to logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *walkConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Options configures FetchAllPagesWithProgress.
type Options struct {
	// MaxPages defaults to DefaultMaxPages.
	MaxPages int
	// BatchSize is accepted for API compatibility; fetching is always one
	// page at a time.
	BatchSize int
	Logger    *zap.Logger
}

// FetchAllPages fetches pages 1, 2, ... until a page has no next link or
// maxPages pages have been fetched. Hitting the limit is not an error: the
// items gathered so far are returned. maxPages <= 0 selects DefaultMaxPages.
//
// onProgress, when non-nil, is called once per page with a page total
// estimated from the first page's count and size. The estimate is never
// revised.
func FetchAllPages[T any](ctx context.Context, fetch FetchPageFunc[T], maxPages int, onProgress ProgressFunc, opts ...Option) ([]T, error) {
	cfg := walkConfig{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	totalPages := 1
	return walk(ctx, fetch, maxPages, cfg.logger, func(page int, resp *Page[T], _ int) {
		if page == 1 && resp.Count > 0 && len(resp.Results) > 0 {
			totalPages = ceilDiv(resp.Count, len(resp.Results))
			cfg.logger.Debug("estimated page count",
				zap.Int("pages", totalPages),
				zap.Int("items", resp.Count),
			)
		}
		if onProgress != nil {
			onProgress(page, totalPages)
		}
	})
}

// FetchAllPagesWithProgress behaves like FetchAllPages but reports item
// counts as well. The page total is recomputed from every page's size; a
// page with no results reports a total of 0.
func FetchAllPagesWithProgress[T any](ctx context.Context, fetch FetchPageFunc[T], onProgress DetailedProgressFunc, opts Options) ([]T, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	totalItems := 0
	return walk(ctx, fetch, opts.MaxPages, logger, func(page int, resp *Page[T], collected int) {
		if page == 1 {
			totalItems = resp.Count
		}
		totalPages := 0
		if n := len(resp.Results); n > 0 {
			totalPages = ceilDiv(totalItems, n)
		}
		if onProgress != nil {
			onProgress(page, totalPages, collected, totalItems)
		}
	})
}

// walk drives the fetch loop shared by both entry points. afterPage runs
// once per page with the running item count.
func walk[T any](ctx context.Context, fetch FetchPageFunc[T], maxPages int, logger *zap.Logger, afterPage func(page int, resp *Page[T], collected int)) ([]T, error) {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	results := make([]T, 0)
	for page := 1; page <= maxPages; page++ {
		if err := ctx.Err(); err != nil {
			logger.Error("pagination cancelled", zap.Int("page", page), zap.Error(err))
			return nil, err
		}

		logger.Debug("fetching page", zap.Int("page", page))
		resp, err := fetch(ctx, page)
		if err != nil {
			logger.Error("failed to fetch page", zap.Int("page", page), zap.Error(err))
			return nil, err
		}
		if resp == nil {
			resp = &Page[T]{}
		}

		results = append(results, resp.Results...)
		afterPage(page, resp, len(results))

		if !resp.HasNext() {
			logger.Debug("fetched all pages",
				zap.Int("items", len(results)),
				zap.Int("pages", page),
			)
			return results, nil
		}
	}

	logger.Warn("reached maximum page limit, stopping fetch",
		zap.Int("max_pages", maxPages),
		zap.Int("items", len(results)),
	)
	return results, nil
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
