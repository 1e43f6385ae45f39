package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/rpattn/aquamind/internal/domain"
	"github.com/rpattn/aquamind/pkg/filter"
	"github.com/rpattn/aquamind/pkg/pagination"
)

// Config holds connection settings for the Django REST API.
type Config struct {
	BaseURL string
	// APIVersion replaces the v1 segment of endpoint paths when set.
	APIVersion string
	Token      string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	// PageSize is sent as page_size when positive.
	PageSize int
}

// DefaultConfig mirrors the web client's defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:    "http://localhost:8000",
		APIVersion: "v1",
		Timeout:    30 * time.Second,
		MaxRetries: 3,
		RetryDelay: time.Second,
	}
}

// Client talks to a Django REST Framework API.
type Client struct {
	cfg     Config
	baseURL *url.URL
	http    *http.Client
	logger  *zap.Logger
	metrics *metrics
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its timeout is left
// untouched.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRegisterer registers request metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Client) {
		c.metrics = newMetrics(reg)
	}
}

// New validates cfg and returns a Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("client: base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("client: invalid base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("client: base URL %q must be absolute", cfg.BaseURL)
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	c := &Client{
		cfg:     cfg,
		baseURL: base,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = newMetrics(nil)
	}
	return c, nil
}

// ListPage fetches one page of endpoint with params applied.
func (c *Client) ListPage(ctx context.Context, endpoint domain.Endpoint, params url.Values, page int) (*pagination.Page[domain.Record], error) {
	query := url.Values{}
	for key, values := range params {
		query[key] = append([]string(nil), values...)
	}
	query.Set("page", strconv.Itoa(page))
	if c.cfg.PageSize > 0 {
		query.Set("page_size", strconv.Itoa(c.cfg.PageSize))
	}

	var out pagination.Page[domain.Record]
	if err := c.get(ctx, endpoint, c.versioned(endpoint.String()), query, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListAll walks every page of endpoint with filters applied as `__in`
// parameters.
func (c *Client) ListAll(ctx context.Context, endpoint domain.Endpoint, filters *filter.Map[int64], maxPages int, onProgress pagination.ProgressFunc) ([]domain.Record, error) {
	params := filter.Values(filters)
	fetch := func(ctx context.Context, page int) (*pagination.Page[domain.Record], error) {
		return c.ListPage(ctx, endpoint, params, page)
	}
	return pagination.FetchAllPages(ctx, fetch, maxPages, onProgress, pagination.WithLogger(c.logger))
}

// Get fetches a single object by ID.
func (c *Client) Get(ctx context.Context, endpoint domain.Endpoint, id int64) (domain.Record, error) {
	var out domain.Record
	if err := c.get(ctx, endpoint, c.versioned(endpoint.Detail(id)), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, endpoint domain.Endpoint, path string, query url.Values, out any) error {
	target := c.resolve(path, query)

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("retrying request",
				zap.String("url", target),
				zap.Int("attempt", attempt),
				zap.Error(lastErr),
			)
			if err := sleep(ctx, c.cfg.RetryDelay); err != nil {
				return err
			}
		}

		err := c.do(ctx, endpoint, target, out)
		if err == nil {
			return nil
		}
		if !retryable(ctx, err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("GET %s failed after %d attempts: %w", target, c.cfg.MaxRetries+1, lastErr)
}

func (c *Client) do(ctx context.Context, endpoint domain.Endpoint, target string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Token "+c.cfg.Token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	c.metrics.observe(endpoint, resp, err, time.Since(start))
	if err != nil {
		return fmt.Errorf("GET %s: %w", target, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("api response",
		zap.String("url", target),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp)
	}

	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", target, err)
	}
	return nil
}

func (c *Client) versioned(path string) string {
	if c.cfg.APIVersion == "" || c.cfg.APIVersion == "v1" {
		return path
	}
	return strings.Replace(path, "/api/v1/", "/api/"+c.cfg.APIVersion+"/", 1)
}

// resolve joins path onto the base URL. Absolute URLs, such as a page's
// next link, are used as-is.
func (c *Client) resolve(path string, query url.Values) string {
	var u url.URL
	if parsed, err := url.Parse(path); err == nil && parsed.IsAbs() {
		u = *parsed
	} else {
		u = *c.baseURL
		u.Path = strings.TrimRight(c.baseURL.Path, "/") + "/" + strings.TrimLeft(path, "/")
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return false
	}
	return true
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
