package core

import (
	"fmt"
	"math/big"
	"time"
)

// PartitionValue is the key of one census partition as returned by the engine.
// Null marks the partition of rows whose key is NULL.
type PartitionValue struct {
	Value any
	Null  bool
}

// String renders the key for display.
func (p *PartitionValue) String() string {
	switch {
	case p == nil:
		return ""
	case p.Null:
		return "NULL"
	}
	switch v := p.Value.(type) {
	case time.Time:
		if v.Hour() == 0 && v.Minute() == 0 && v.Second() == 0 && v.Nanosecond() == 0 {
			return v.Format("2006-01-02")
		}
		return v.Format(time.RFC3339)
	case []byte:
		return string(v)
	case *big.Rat:
		return ratString(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ratString renders a decimal without trailing fraction digits.
// Fractions that do not terminate are cut at 18 digits.
func ratString(r *big.Rat) string {
	if r.IsInt() {
		return r.Num().String()
	}
	pow := big.NewInt(1)
	ten := big.NewInt(10)
	rem := new(big.Int)
	for digits := 1; digits <= 18; digits++ {
		pow.Mul(pow, ten)
		if rem.Mod(pow, r.Denom()).Sign() == 0 {
			return r.FloatString(digits)
		}
	}
	return r.FloatString(18)
}

// Partition is one row subset discovered for the census.
// Key is nil for the implicit partition of an unpartitioned table.
type Partition struct {
	Key      *PartitionValue
	RowCount int64
}

// NullCensusRow holds the null counts of one partition.
type NullCensusRow struct {
	Partition  *PartitionValue
	TableSize  int64
	NullCounts map[string]int64
}

// NullCensus is the per-partition null census of a table.
type NullCensus struct {
	Table TableRef
	// PartitionKey is the partitioning column, empty when unpartitioned.
	PartitionKey string
	// Columns lists the counted columns in schema order.
	Columns []string
	Rows    []NullCensusRow
}

// TotalRows sums the table size of every partition.
func (c *NullCensus) TotalRows() int64 {
	var total int64
	for _, r := range c.Rows {
		total += r.TableSize
	}
	return total
}

// ReconciliationRow compares one normalized column name across the
// catalog, the architecture resource and the live information schema.
// Nil type pointers mean the name is absent from that source.
type ReconciliationRow struct {
	NormalizedName   string  `json:"normalized_name"`
	CatalogType      *string `json:"catalog_type"`
	ArchitectureType *string `json:"architecture_type"`
	InfoSchemaType   *string `json:"information_schema_type"`

	InCatalog      bool `json:"in_catalog"`
	InArchitecture bool `json:"in_architecture"`
	InInfoSchema   bool `json:"in_information_schema"`

	// NameMatches and TypeMatches compare information schema against architecture only.
	NameMatches bool `json:"name_matches"`
	TypeMatches bool `json:"type_matches"`

	// CatalogTypeMatchesInfoSchema is nil when either side is absent.
	CatalogTypeMatchesInfoSchema *bool `json:"catalog_type_matches_information_schema"`
}

// DirectoryLinkRow reports the directory linkage of one schema column.
type DirectoryLinkRow struct {
	Name string `json:"name"`
	// Recognized is true when the name belongs to the dimension-key vocabulary.
	Recognized       bool    `json:"recognized"`
	LinkedDatasetID  *string `json:"linked_dataset_id"`
	LinkedTableID    *string `json:"linked_table_id"`
	LinkedColumnName *string `json:"linked_column_name"`
}

// HasLink reports whether the column carries linkage metadata.
func (r DirectoryLinkRow) HasLink() bool {
	return r.LinkedDatasetID != nil || r.LinkedTableID != nil || r.LinkedColumnName != nil
}

// Report bundles the three audit results of one table.
type Report struct {
	Table  TableRef
	Census *NullCensus
	Schema []ReconciliationRow
	Links  []DirectoryLinkRow

	// SchemaErr holds the reconciliation failure when the architecture
	// resource was unusable; census and linkage are unaffected by it.
	SchemaErr error
}

// Mismatches counts reconciliation rows with a false match flag.
func Mismatches(rows []ReconciliationRow) int {
	n := 0
	for _, r := range rows {
		if !r.NameMatches || !r.TypeMatches {
			n++
		}
	}
	return n
}
