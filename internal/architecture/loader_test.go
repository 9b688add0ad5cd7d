package architecture

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/xuri/excelize/v2"

	"github.com/leapstack-labs/leapaudit/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = "name,bigquery_type,description\n" +
	"ano,INT64,Ano\n" +
	" ID_Municipio ,String,Municipio\n" +
	",STRING,blank name is skipped\n" +
	"rede,STRING\n"

var sampleEntries = []core.ArchitectureEntry{
	{Name: "ano", DeclaredType: "int64"},
	{Name: "id_municipio", DeclaredType: "string"},
	{Name: "rede", DeclaredType: "string"},
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, data, 0o600))
	return p
}

func xlsxBytes(t *testing.T, sheet string, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if sheet != "Sheet1" {
		_, err := f.NewSheet(sheet)
		require.NoError(t, err)
	}
	for i, row := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cellName, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestLoader_LocalFiles(t *testing.T) {
	csvPath := writeFile(t, "arch.csv", []byte(sampleCSV))
	bomPath := writeFile(t, "bom.csv", append([]byte("\xef\xbb\xbf"), sampleCSV...))
	xlsxPath := writeFile(t, "arch.xlsx", xlsxBytes(t, "Sheet1", [][]any{
		{"name", "bigquery_type"},
		{"ano", "INT64"},
		{"ID_Municipio", "STRING"},
		{"rede", "STRING"},
	}))

	tests := []struct {
		name    string
		locator string
	}{
		{"csv path", csvPath},
		{"csv with bom", bomPath},
		{"file url", "file://" + csvPath},
		{"xlsx path", xlsxPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := NewLoader(nil, nil).Load(context.Background(), tt.locator)
			require.NoError(t, err)
			assert.Equal(t, sampleEntries, entries)
		})
	}
}

func TestLoader_XLSXNamedSheet(t *testing.T) {
	p := writeFile(t, "arch.xlsx", xlsxBytes(t, "arquitetura", [][]any{
		{"bigquery_type", "name"},
		{"DATE", "data"},
	}))

	entries, err := NewLoader(&core.ArchitectureConfig{Sheet: "arquitetura"}, nil).Load(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, []core.ArchitectureEntry{{Name: "data", DeclaredType: "date"}}, entries)
}

func TestLoader_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		locator func(t *testing.T) string
		wantMsg string
	}{
		{
			name:    "missing file",
			locator: func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.csv") },
		},
		{
			name:    "missing type column",
			locator: func(t *testing.T) string { return writeFile(t, "a.csv", []byte("name,type\nano,INT64\n")) },
			wantMsg: "bigquery_type",
		},
		{
			name:    "missing both columns",
			locator: func(t *testing.T) string { return writeFile(t, "a.csv", []byte("col\nano\n")) },
			wantMsg: "name, bigquery_type",
		},
		{
			name:    "empty file",
			locator: func(t *testing.T) string { return writeFile(t, "a.csv", nil) },
			wantMsg: "empty",
		},
		{
			name:    "broken xlsx",
			locator: func(t *testing.T) string { return writeFile(t, "a.xlsx", []byte("not a zip")) },
			wantMsg: "xlsx",
		},
		{
			name:    "empty locator",
			locator: func(*testing.T) string { return "" },
		},
		{
			name:    "unsupported scheme",
			locator: func(*testing.T) string { return "ftp://host/arch.csv" },
			wantMsg: "unsupported",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			locator := tt.locator(t)
			_, err := NewLoader(nil, nil).Load(context.Background(), locator)
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrArchitectureResourceInvalid)

			var ae *core.AuditError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, locator, ae.Locator)
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestLoader_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/arch.csv":
			_, _ = w.Write([]byte(sampleCSV))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	l := NewLoader(nil, nil)
	entries, err := l.Load(context.Background(), srv.URL+"/arch.csv")
	require.NoError(t, err)
	assert.Equal(t, sampleEntries, entries)

	_, err = l.Load(context.Background(), srv.URL+"/missing.csv")
	require.Error(t, err)
	assert.Equal(t, core.ArchitectureResourceInvalid, core.KindOf(err))
	assert.Contains(t, err.Error(), "HTTP 404")
}

func TestLoader_HTTPCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(sampleCSV))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLoader(nil, nil).Load(ctx, srv.URL+"/arch.csv")
	require.Error(t, err)
	assert.Equal(t, core.Cancelled, core.KindOf(err))
}

func TestLoader_S3(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.URL.Path != "/metadata/censo/arch.csv" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`))
			return
		}
		_, _ = w.Write([]byte(sampleCSV))
	}))
	defer srv.Close()

	cfg := core.ArchitectureConfig{S3Endpoint: srv.URL, S3UsePathStyle: true}
	awsCfg := aws.Config{
		Region:      "us-east-1",
		Credentials: credentials.NewStaticCredentialsProvider("key", "secret", ""),
	}
	l := NewLoader(&cfg, nil).WithS3Client(NewS3Client(awsCfg, cfg))

	entries, err := l.Load(context.Background(), "s3://metadata/censo/arch.csv")
	require.NoError(t, err)
	assert.Equal(t, sampleEntries, entries)
	assert.Equal(t, "/metadata/censo/arch.csv", gotPath)

	_, err = l.Load(context.Background(), "s3://metadata/censo/other.csv")
	assert.Equal(t, core.ArchitectureResourceInvalid, core.KindOf(err))

	_, err = l.Load(context.Background(), "s3://metadata")
	assert.Contains(t, err.Error(), "bucket and a key")
}

func TestGoogleSheetsExport(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{
			in:   "https://docs.google.com/spreadsheets/d/abc123/edit#gid=42",
			want: "https://docs.google.com/spreadsheets/d/abc123/export?format=csv&gid=42",
		},
		{
			in:   "https://docs.google.com/spreadsheets/d/abc123/edit?usp=sharing",
			want: "https://docs.google.com/spreadsheets/d/abc123/export?format=csv",
		},
		{
			in:   "https://docs.google.com/spreadsheets/d/abc123/export?format=csv",
			want: "https://docs.google.com/spreadsheets/d/abc123/export?format=csv",
		},
		{
			in:   "https://example.org/arch.csv",
			want: "https://example.org/arch.csv",
		},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			u, err := url.Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, googleSheetsExport(u))
		})
	}
}

func TestParseRows_ShortRecords(t *testing.T) {
	entries, err := parseRows([][]string{{"bigquery_type", "x", "name"}, {"INT64", "", "ano"}, {"STRING"}})
	require.NoError(t, err)
	assert.Equal(t, []core.ArchitectureEntry{{Name: "ano", DeclaredType: "int64"}}, entries)

	rows, err := readCSV([]byte("a,\"b\n"))
	assert.Error(t, err)
	assert.Nil(t, rows)
}
