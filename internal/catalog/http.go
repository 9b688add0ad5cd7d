package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"github.com/leapstack-labs/leapaudit/pkg/core"
)

// HTTPConfig configures the catalog service client.
type HTTPConfig struct {
	// BaseURL is the catalog service root, e.g. https://catalog.example.org/api.
	BaseURL string

	// Token is sent as a bearer token when set.
	Token string

	// Timeout for individual requests (default: 30s).
	Timeout time.Duration

	// MaxRetries for throttled or failed requests (default: 3).
	MaxRetries int

	// RateLimit requests per second (default: 10).
	RateLimit float64

	// RateBurst maximum burst size (default: 5).
	RateBurst int

	// Backoff is the first retry delay, doubled per attempt (default: 100ms).
	Backoff time.Duration

	// Transport allows injecting a custom HTTP transport.
	Transport http.RoundTripper
}

// HTTPCatalog resolves columns from a catalog service:
//
//	GET {base}/datasets/{dataset}/tables/{table}/columns
//
// which answers {"columns": [{"name", "bigquery_type", "directory_column"}]}.
// Unknown identifiers answer 404 with {"error": "dataset_not_found"} or
// {"error": "table_not_found"}.
type HTTPCatalog struct {
	config      *HTTPConfig
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	logger      *slog.Logger
}

// NewHTTP creates a catalog service client. Zero config fields take defaults.
func NewHTTP(config *HTTPConfig, logger *slog.Logger) *HTTPCatalog {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cfg := *config
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 10.0
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = 5
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 100 * time.Millisecond
	}

	return &HTTPCatalog{
		config: &cfg,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		logger:      logger,
	}
}

type columnsResponse struct {
	Columns []columnDoc `json:"columns"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// statusError is a non-2xx catalog response.
type statusError struct {
	StatusCode int
	Body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

func (e *statusError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Columns fetches the declared columns of a table.
func (c *HTTPCatalog) Columns(ctx context.Context, datasetID, tableID string) ([]core.ColumnDescriptor, error) {
	ref := core.TableRef{Dataset: datasetID, Table: tableID}
	path := "datasets/" + url.PathEscape(datasetID) + "/tables/" + url.PathEscape(tableID) + "/columns"

	body, err := c.get(ctx, path)
	if err != nil {
		return nil, c.classify(ctx, err).WithTable(ref)
	}

	var resp columnsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, core.NewError(core.CatalogUnavailable, "catalog", fmt.Errorf("decode columns: %w", err)).WithTable(ref)
	}
	return descriptors(resp.Columns), nil
}

// get performs a GET with rate limiting and retry. Transport failures, 429
// and 5xx answers are retried with exponential backoff.
func (c *HTTPCatalog) get(ctx context.Context, path string) ([]byte, error) {
	retries := uint64(max(c.config.MaxRetries, 0)) //nolint:gosec // clamped above zero
	backoff := retry.WithMaxRetries(retries, retry.NewExponential(c.config.Backoff))

	attempt := 0
	return retry.DoValue(ctx, backoff, func(ctx context.Context) ([]byte, error) {
		attempt++
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		body, err := c.doOnce(ctx, path)
		if err == nil {
			return body, nil
		}

		var se *statusError
		if (errors.As(err, &se) && !se.retryable()) || ctx.Err() != nil {
			return nil, err
		}
		c.logger.Debug("retrying catalog request",
			slog.String("path", path),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))
		return nil, retry.RetryableError(err)
	})
}

func (c *HTTPCatalog) doOnce(ctx context.Context, path string) ([]byte, error) {
	fullURL := strings.TrimSuffix(c.config.BaseURL, "/") + "/" + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "leapaudit")
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, &statusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// classify maps a failed request to an audit error kind.
func (c *HTTPCatalog) classify(ctx context.Context, err error) *core.AuditError {
	if ctx.Err() != nil {
		return core.NewError(core.Cancelled, "catalog", err)
	}

	var se *statusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		var er errorResponse
		_ = json.Unmarshal([]byte(se.Body), &er)
		if er.Error == "dataset_not_found" {
			return core.NewError(core.DatasetNotFound, "catalog", err)
		}
		return core.NewError(core.TableNotFound, "catalog", err)
	}
	return core.NewError(core.CatalogUnavailable, "catalog", err)
}

var _ core.Catalog = (*HTTPCatalog)(nil)
