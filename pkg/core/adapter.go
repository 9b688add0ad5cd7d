package core

import (
	"fmt"
	"strings"
)

// AdapterConfig holds configuration for connecting to a warehouse.
type AdapterConfig struct {
	Type     string
	Path     string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Schema   string

	// Project is the warehouse project that hosts the audited datasets
	// (BigQuery). Billing is attributed per request, not here.
	Project string
	// Location pins query jobs to a region (BigQuery).
	Location string
	// CredentialsFile points to a service account key (BigQuery).
	CredentialsFile string

	Options map[string]string
	Params  map[string]any
}

// TableRef identifies a warehouse table.
// Project is optional; adapters fall back to their configured project.
type TableRef struct {
	Project string
	Dataset string
	Table   string
}

// String returns the dotted form of the reference.
func (r TableRef) String() string {
	parts := make([]string, 0, 3)
	if r.Project != "" {
		parts = append(parts, r.Project)
	}
	parts = append(parts, r.Dataset, r.Table)
	return strings.Join(parts, ".")
}

// Validate checks that dataset and table are set.
func (r TableRef) Validate() error {
	if strings.TrimSpace(r.Dataset) == "" {
		return fmt.Errorf("dataset id is required")
	}
	if strings.TrimSpace(r.Table) == "" {
		return fmt.Errorf("table id is required")
	}
	return nil
}

// ParseTableRef parses "dataset.table" or "project.dataset.table".
func ParseTableRef(s string) (TableRef, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	var ref TableRef
	switch len(parts) {
	case 2:
		ref = TableRef{Dataset: parts[0], Table: parts[1]}
	case 3:
		ref = TableRef{Project: parts[0], Dataset: parts[1], Table: parts[2]}
	default:
		return TableRef{}, fmt.Errorf("invalid table reference %q: expected dataset.table or project.dataset.table", s)
	}
	if err := ref.Validate(); err != nil {
		return TableRef{}, fmt.Errorf("invalid table reference %q: %w", s, err)
	}
	return ref, nil
}

// Table is a fully materialized query result.
// Aggregate audit queries return a handful of rows, so results are
// collected eagerly and the driver cursor is closed before returning.
type Table struct {
	Columns []string
	Rows    [][]any
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Scalar returns the single value of a one-row, one-column result.
func (t *Table) Scalar() (any, error) {
	if t == nil || len(t.Rows) != 1 || len(t.Rows[0]) != 1 {
		rows := 0
		if t != nil {
			rows = len(t.Rows)
		}
		return nil, fmt.Errorf("expected a scalar result, got %d rows", rows)
	}
	return t.Rows[0][0], nil
}

// ScalarInt returns the single value of a scalar result as int64.
func (t *Table) ScalarInt() (int64, error) {
	v, err := t.Scalar()
	if err != nil {
		return 0, err
	}
	return ToInt64(v)
}

// ToInt64 converts a driver value holding a count to int64.
// Census counts come from COUNT(*) - COUNT(col), which is never NULL;
// a NULL still reads as zero.
func ToInt64(v any) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case uint64:
		return int64(n), nil //nolint:gosec // counts never exceed int64
	case uint32:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case float32:
		return int64(n), nil
	case []byte:
		return ToInt64(string(n))
	case string:
		var out int64
		if _, err := fmt.Sscan(n, &out); err != nil {
			return 0, fmt.Errorf("cannot convert %q to integer", n)
		}
		return out, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to integer", v)
	}
}
