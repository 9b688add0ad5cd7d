package core

import (
	"context"
	"strings"
)

// DirectoryLink points a column at the reference ("directory") table it joins to.
type DirectoryLink struct {
	DatasetID  string `json:"dataset_id" yaml:"dataset_id"`
	TableID    string `json:"table_id" yaml:"table_id"`
	ColumnName string `json:"column_name" yaml:"column_name"`
}

// IsZero reports whether no linkage field is set.
func (l DirectoryLink) IsZero() bool {
	return l.DatasetID == "" && l.TableID == "" && l.ColumnName == ""
}

// ColumnDescriptor is a column as declared by the catalog service.
type ColumnDescriptor struct {
	Name          string
	CatalogType   string
	DirectoryLink *DirectoryLink
}

// ArchitectureEntry is a column as declared by the architecture resource.
type ArchitectureEntry struct {
	Name         string
	DeclaredType string
}

// InformationSchemaEntry is a column as reported by the warehouse.
type InformationSchemaEntry struct {
	Name     string
	LiveType string
}

// Catalog resolves the declared columns of a table.
// Implementations return an *AuditError of kind TableNotFound or
// DatasetNotFound when the identifiers are unknown.
type Catalog interface {
	Columns(ctx context.Context, datasetID, tableID string) ([]ColumnDescriptor, error)
}

// Normalize trims and lowercases a column name or type.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NewArchitectureEntry builds a normalized architecture entry.
func NewArchitectureEntry(name, declaredType string) ArchitectureEntry {
	return ArchitectureEntry{Name: Normalize(name), DeclaredType: Normalize(declaredType)}
}

// NewInformationSchemaEntry builds a normalized information-schema entry.
func NewInformationSchemaEntry(name, liveType string) InformationSchemaEntry {
	return InformationSchemaEntry{Name: Normalize(name), LiveType: Normalize(liveType)}
}

// Clone returns a copy that shares no memory with d.
func (d ColumnDescriptor) Clone() ColumnDescriptor {
	if d.DirectoryLink != nil {
		link := *d.DirectoryLink
		d.DirectoryLink = &link
	}
	return d
}

// ColumnNames returns the descriptor names in schema order.
func ColumnNames(cols []ColumnDescriptor) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}
