package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies audit failures.
type ErrorKind int

const (
	// KindUnknown is an unclassified failure.
	KindUnknown ErrorKind = iota
	// EngineUnavailable means the warehouse is unreachable or rejected the credentials.
	EngineUnavailable
	// QueryRejected means the warehouse refused a query (unknown column, bad SQL).
	QueryRejected
	// TableNotFound means the table is unknown to the catalog or warehouse.
	TableNotFound
	// DatasetNotFound means the dataset is unknown to the catalog or warehouse.
	DatasetNotFound
	// ArchitectureResourceInvalid means the architecture resource is missing,
	// unreadable or lacks the required columns.
	ArchitectureResourceInvalid
	// CatalogUnavailable means the catalog service could not be reached.
	CatalogUnavailable
	// Cancelled means the caller cancelled the operation or its deadline passed.
	Cancelled
)

// Sentinel errors for use with errors.Is.
var (
	ErrEngineUnavailable           = errors.New("engine unavailable")
	ErrQueryRejected               = errors.New("query rejected")
	ErrTableNotFound               = errors.New("table not found")
	ErrDatasetNotFound             = errors.New("dataset not found")
	ErrArchitectureResourceInvalid = errors.New("architecture resource invalid")
	ErrCatalogUnavailable          = errors.New("catalog unavailable")
	ErrCancelled                   = errors.New("cancelled")
)

// String returns the string representation of ErrorKind.
func (k ErrorKind) String() string {
	switch k {
	case EngineUnavailable:
		return "engine_unavailable"
	case QueryRejected:
		return "query_rejected"
	case TableNotFound:
		return "table_not_found"
	case DatasetNotFound:
		return "dataset_not_found"
	case ArchitectureResourceInvalid:
		return "architecture_resource_invalid"
	case CatalogUnavailable:
		return "catalog_unavailable"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case EngineUnavailable:
		return ErrEngineUnavailable
	case QueryRejected:
		return ErrQueryRejected
	case TableNotFound:
		return ErrTableNotFound
	case DatasetNotFound:
		return ErrDatasetNotFound
	case ArchitectureResourceInvalid:
		return ErrArchitectureResourceInvalid
	case CatalogUnavailable:
		return ErrCatalogUnavailable
	case Cancelled:
		return ErrCancelled
	default:
		return nil
	}
}

// AuditError is the typed failure returned by every audit operation.
// It carries the identifiers involved so callers can report them.
type AuditError struct {
	Kind    ErrorKind
	Op      string
	Dataset string
	Table   string
	Column  string
	Locator string
	Err     error

	// Permanent marks an EngineUnavailable failure that retrying cannot
	// fix, such as rejected credentials.
	Permanent bool
}

// NewError creates an AuditError of the given kind.
func NewError(kind ErrorKind, op string, err error) *AuditError {
	return &AuditError{Kind: kind, Op: op, Err: err}
}

// Errorf creates an AuditError with a formatted cause.
func Errorf(kind ErrorKind, op string, format string, args ...any) *AuditError {
	return &AuditError{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *AuditError) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(strings.ReplaceAll(e.Kind.String(), "_", " "))
	var ids []string
	if e.Dataset != "" || e.Table != "" {
		ids = append(ids, "table="+strings.Trim(e.Dataset+"."+e.Table, "."))
	}
	if e.Column != "" {
		ids = append(ids, "column="+e.Column)
	}
	if e.Locator != "" {
		ids = append(ids, "locator="+e.Locator)
	}
	if len(ids) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(ids, ", "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *AuditError) Unwrap() error { return e.Err }

// Is matches the sentinel error of the same kind.
func (e *AuditError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// WithTable attaches table identifiers to the error when not already set.
func (e *AuditError) WithTable(ref TableRef) *AuditError {
	if e.Dataset == "" {
		e.Dataset = ref.Dataset
	}
	if e.Table == "" {
		e.Table = ref.Table
	}
	return e
}

// KindOf returns the kind of the first AuditError in err's chain.
// Context errors not yet wrapped are reported as Cancelled.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var ae *AuditError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Cancelled
	}
	return KindUnknown
}

// AsAuditError converts err into an AuditError, keeping an existing
// classification and falling back to the given kind otherwise.
func AsAuditError(err error, fallback ErrorKind, op string) *AuditError {
	if err == nil {
		return nil
	}
	var ae *AuditError
	if errors.As(err, &ae) {
		return ae
	}
	kind := fallback
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		kind = Cancelled
	}
	return NewError(kind, op, err)
}

// IsRetryable reports whether err is a transient engine failure.
func IsRetryable(err error) bool {
	var ae *AuditError
	if !errors.As(err, &ae) {
		return false
	}
	return ae.Kind == EngineUnavailable && !ae.Permanent
}
