// Package architecture loads architecture resources: the spreadsheets that
// declare each column of a table and its BigQuery type.
//
// A resource is a CSV or XLSX sheet with at least a "name" and a
// "bigquery_type" header. Locators may be local paths, file://, s3:// or
// http(s):// URLs. Google Sheets edit links are fetched as CSV exports.
package architecture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/leapstack-labs/leapaudit/pkg/core"
)

const (
	nameHeader = "name"
	typeHeader = "bigquery_type"
)

// Loader reads architecture resources.
type Loader struct {
	cfg        core.ArchitectureConfig
	logger     *slog.Logger
	httpClient *http.Client

	s3Once   sync.Once
	s3Client *s3.Client
	s3Err    error
}

// NewLoader creates a loader. A nil cfg uses defaults.
func NewLoader(cfg *core.ArchitectureConfig, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	l := &Loader{logger: logger}
	if cfg != nil {
		l.cfg = *cfg
	}
	timeout := l.cfg.HTTPTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	l.httpClient = &http.Client{Timeout: timeout}
	return l
}

// WithS3Client sets the client used for s3:// locators.
func (l *Loader) WithS3Client(c *s3.Client) *Loader {
	l.s3Once.Do(func() {})
	l.s3Client = c
	return l
}

// Load reads the resource at locator and returns its entries in file order,
// normalized. Any failure is an ArchitectureResourceInvalid error, except
// cancellation.
func (l *Loader) Load(ctx context.Context, locator string) ([]core.ArchitectureEntry, error) {
	data, format, err := l.fetch(ctx, locator)
	if err != nil {
		return nil, l.invalid(ctx, locator, err)
	}

	var rows [][]string
	switch format {
	case formatXLSX:
		rows, err = readXLSX(data, l.cfg.Sheet)
	default:
		rows, err = readCSV(data)
	}
	if err != nil {
		return nil, l.invalid(ctx, locator, err)
	}

	entries, err := parseRows(rows)
	if err != nil {
		return nil, l.invalid(ctx, locator, err)
	}

	l.logger.Debug("architecture loaded",
		slog.String("locator", locator),
		slog.Int("entries", len(entries)))
	return entries, nil
}

func (l *Loader) invalid(ctx context.Context, locator string, err error) error {
	kind := core.ArchitectureResourceInvalid
	if ctx.Err() != nil {
		kind = core.Cancelled
	}
	e := core.NewError(kind, "architecture", err)
	e.Locator = locator
	return e
}

type format int

const (
	formatCSV format = iota
	formatXLSX
)

func formatOf(p string) format {
	if strings.EqualFold(path.Ext(p), ".xlsx") {
		return formatXLSX
	}
	return formatCSV
}

// fetch reads the raw resource bytes and detects the sheet format.
func (l *Loader) fetch(ctx context.Context, locator string) ([]byte, format, error) {
	if strings.TrimSpace(locator) == "" {
		return nil, formatCSV, errors.New("no architecture locator given")
	}

	u, err := url.Parse(locator)
	if err != nil || len(u.Scheme) <= 1 {
		// Plain path (a one-letter scheme is a Windows drive).
		data, err := os.ReadFile(locator) //nolint:gosec // user supplied path
		return data, formatOf(locator), err
	}

	switch u.Scheme {
	case "file":
		data, err := os.ReadFile(u.Path)
		return data, formatOf(u.Path), err
	case "s3":
		data, err := l.fetchS3(ctx, u.Host, strings.TrimPrefix(u.Path, "/"))
		return data, formatOf(u.Path), err
	case "http", "https":
		target := googleSheetsExport(u)
		data, err := l.fetchHTTP(ctx, target)
		return data, formatOf(u.Path), err
	default:
		return nil, formatCSV, fmt.Errorf("unsupported locator scheme %q", u.Scheme)
	}
}

func (l *Loader) fetchHTTP(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d fetching %s", resp.StatusCode, target)
	}
	return io.ReadAll(resp.Body)
}

// googleSheetsExport rewrites a Google Sheets edit link to its CSV export.
func googleSheetsExport(u *url.URL) string {
	if u.Host != "docs.google.com" || !strings.HasPrefix(u.Path, "/spreadsheets/d/") {
		return u.String()
	}
	parts := strings.Split(strings.TrimPrefix(u.Path, "/spreadsheets/d/"), "/")
	if len(parts) == 0 || parts[0] == "" || (len(parts) > 1 && parts[1] == "export") {
		return u.String()
	}

	q := url.Values{"format": {"csv"}}
	gid := u.Query().Get("gid")
	if gid == "" && strings.HasPrefix(u.Fragment, "gid=") {
		gid = strings.TrimPrefix(u.Fragment, "gid=")
	}
	if gid != "" {
		q.Set("gid", gid)
	}
	return "https://docs.google.com/spreadsheets/d/" + parts[0] + "/export?" + q.Encode()
}

func (l *Loader) fetchS3(ctx context.Context, bucket, key string) ([]byte, error) {
	if bucket == "" || key == "" {
		return nil, errors.New("s3 locator needs a bucket and a key")
	}
	client, err := l.s3()
	if err != nil {
		return nil, err
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", bucket, key, err)
	}
	defer func() { _ = out.Body.Close() }()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, out.Body); err != nil {
		return nil, fmt.Errorf("failed to read s3 object: %w", err)
	}
	return buf.Bytes(), nil
}

// s3 builds the S3 client from the default credential chain on first use.
func (l *Loader) s3() (*s3.Client, error) {
	l.s3Once.Do(func() {
		var opts []func(*config.LoadOptions) error
		if l.cfg.S3Region != "" {
			opts = append(opts, config.WithRegion(l.cfg.S3Region))
		}
		awsCfg, err := config.LoadDefaultConfig(context.Background(), opts...)
		if err != nil {
			l.s3Err = fmt.Errorf("failed to load AWS config: %w", err)
			return
		}
		l.s3Client = NewS3Client(awsCfg, l.cfg)
	})
	return l.s3Client, l.s3Err
}

// NewS3Client creates an S3 client honoring the endpoint and path-style settings.
func NewS3Client(awsCfg aws.Config, cfg core.ArchitectureConfig) *s3.Client {
	var s3Opts []func(*s3.Options)
	if cfg.S3Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		})
	}
	if cfg.S3UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(awsCfg, s3Opts...)
}
