package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/aquamind/internal/domain"
	"github.com/rpattn/aquamind/pkg/filter"
)

func newTestClient(t *testing.T, srv *httptest.Server, mutate func(*Config), opts ...Option) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.RetryDelay = time.Millisecond
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(cfg, opts...)
	require.NoError(t, err)
	return c
}

// batchPages serves three pages of two batches each.
func batchPages(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/batch/batches/", r.URL.Path)
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		next := "null"
		if page < 3 {
			next = fmt.Sprintf(`"http://%s/api/v1/batch/batches/?page=%d"`, r.Host, page+1)
		}
		fmt.Fprintf(w, `{"count":6,"next":%s,"previous":null,"results":[{"id":%d},{"id":%d}]}`,
			next, page*2-1, page*2)
	}
}

func TestListAllWalksPagesWithFilters(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	pages := batchPages(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.URL.Query().Get("hall__in"))
		mu.Unlock()
		assert.Equal(t, "Token secret", r.Header.Get("Authorization"))
		pages(w, r)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, func(cfg *Config) { cfg.Token = "secret" })
	filters := filter.NewMap[int64]()
	filters.Set("hall__in", []int64{3, 1, 3})
	filters.Set("area__in", nil)

	var progress [][2]int
	got, err := c.ListAll(context.Background(), domain.EndpointBatches, filters, 0, func(current, total int) {
		progress = append(progress, [2]int{current, total})
	})
	require.NoError(t, err)
	require.Len(t, got, 6)
	for i, rec := range got {
		id, ok := rec.ID()
		require.True(t, ok)
		assert.Equal(t, int64(i+1), id)
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"3,1", "3,1", "3,1"}, seen)
	assert.Equal(t, [][2]int{{1, 3}, {2, 3}, {3, 3}}, progress)
}

func TestListPageSendsPageSize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "25", r.URL.Query().Get("page_size"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Empty(t, r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"count":0,"next":null,"previous":null,"results":[]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, func(cfg *Config) { cfg.PageSize = 25 })
	page, err := c.ListPage(context.Background(), domain.EndpointHalls, nil, 2)
	require.NoError(t, err)
	assert.False(t, page.HasNext())
	assert.Empty(t, page.Results)
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, `{"detail":"busy"}`, http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"id":7,"name":"Hall A"}`)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	c := newTestClient(t, srv, nil, WithRegisterer(reg))
	rec, err := c.Get(context.Background(), domain.EndpointHalls, 7)
	require.NoError(t, err)
	assert.Equal(t, "Hall A", rec["name"])
	assert.Equal(t, int32(3), calls.Load())

	endpoint := domain.EndpointHalls.String()
	assert.Equal(t, 2.0, testutil.ToFloat64(c.metrics.requests.WithLabelValues(endpoint, "502")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.requests.WithLabelValues(endpoint, "200")))
}

func TestRetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, func(cfg *Config) { cfg.MaxRetries = 2 })
	_, err := c.Get(context.Background(), domain.EndpointHalls, 1)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"detail":"Not found."}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	_, err := c.Get(context.Background(), domain.EndpointBatches, 99)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Not found.", apiErr.Detail)
	assert.Equal(t, "api error 404: Not found.", apiErr.Error())
	assert.False(t, apiErr.Temporary())
	assert.Equal(t, int32(1), calls.Load())
}

func TestWrongShapeBodyIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `[{"id":1},{"id":2}]`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	_, err := c.Get(context.Background(), domain.EndpointHalls, 1)

	var typeErr *json.UnmarshalTypeError
	require.True(t, errors.As(err, &typeErr), "got %v", err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestListAllAbortsOnPageError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fmt.Fprintf(w, `{"count":4,"next":"http://%s/x/?page=2","previous":null,"results":[{"id":1},{"id":2}]}`, r.Host)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	got, err := c.ListAll(context.Background(), domain.EndpointAreas, nil, 0, nil)
	assert.Nil(t, got)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "api error 403: Forbidden", apiErr.Error())
}

func TestCancelledContextStopsRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, func(cfg *Config) { cfg.RetryDelay = time.Hour })
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Get(ctx, domain.EndpointHalls, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAPIVersionRewritesPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/infrastructure/halls/4/", r.URL.Path)
		fmt.Fprint(w, `{"id":4}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, func(cfg *Config) { cfg.APIVersion = "v2" })
	_, err := c.Get(context.Background(), domain.EndpointHalls, 4)
	require.NoError(t, err)
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	for _, base := range []string{"", "   ", "localhost:8000/api", "/relative"} {
		_, err := New(Config{BaseURL: base})
		assert.Error(t, err, base)
	}
}
