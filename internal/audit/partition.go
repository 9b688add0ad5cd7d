package audit

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/leapstack-labs/leapaudit/pkg/core"
)

// partitionColumn returns the descriptor name matching the partition key,
// or "" when the table is not partitioned.
func (a *Auditor) partitionColumn(cols []core.ColumnDescriptor) string {
	if a.partitionKey == "" {
		return ""
	}
	for _, c := range cols {
		if core.Normalize(c.Name) == a.partitionKey {
			return c.Name
		}
	}
	return ""
}

// discoverPartitions lists the partitions of a table in ascending key order.
// With no partition column the whole table is one implicit partition.
func (a *Auditor) discoverPartitions(ctx context.Context, ref core.TableRef, keyColumn string) ([]core.Partition, error) {
	d := a.adapter.Dialect()
	table := d.TableReference(ref)

	if keyColumn == "" {
		result, err := a.query(ctx, "SELECT COUNT(*) FROM "+table)
		if err != nil {
			return nil, err
		}
		n, err := result.ScalarInt()
		if err != nil {
			return nil, core.NewError(core.QueryRejected, "partitions", err)
		}
		return []core.Partition{{RowCount: n}}, nil
	}

	key := columnRef(d, keyColumn)
	result, err := a.query(ctx, fmt.Sprintf("SELECT %s, COUNT(*) FROM %s GROUP BY %s", key, table, key))
	if err != nil {
		return nil, err
	}

	partitions := make([]core.Partition, 0, result.Len())
	for i, row := range result.Rows {
		if len(row) != 2 {
			return nil, core.Errorf(core.QueryRejected, "partitions", "row %d has %d columns, want 2", i, len(row))
		}
		n, err := core.ToInt64(row[1])
		if err != nil {
			return nil, core.NewError(core.QueryRejected, "partitions", err)
		}
		partitions = append(partitions, core.Partition{
			Key:      &core.PartitionValue{Value: row[0], Null: row[0] == nil},
			RowCount: n,
		})
	}
	SortPartitions(partitions)
	return partitions, nil
}

// SortPartitions orders partitions by ascending key. The NULL partition
// sorts last; numbers compare numerically and times chronologically.
// Keys of differing kinds compare by their string form.
func SortPartitions(p []core.Partition) {
	sort.SliceStable(p, func(i, j int) bool {
		return comparePartitionValues(p[i].Key, p[j].Key) < 0
	})
}

func comparePartitionValues(a, b *core.PartitionValue) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case a.Null && b.Null:
		return 0
	case a.Null:
		return 1
	case b.Null:
		return -1
	}

	if x, ok := asInt(a.Value); ok {
		if y, ok := asInt(b.Value); ok {
			return cmpOrdered(x, y)
		}
	}
	if x, ok := a.Value.(*big.Rat); ok {
		if y, ok := b.Value.(*big.Rat); ok {
			return x.Cmp(y)
		}
	}
	if x, ok := asFloat(a.Value); ok {
		if y, ok := asFloat(b.Value); ok {
			return cmpOrdered(x, y)
		}
	}
	if x, ok := a.Value.(time.Time); ok {
		if y, ok := b.Value.(time.Time); ok {
			return x.Compare(y)
		}
	}
	return strings.Compare(a.String(), b.String())
}

func cmpOrdered[T int64 | float64](x, y T) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	if n, ok := asInt(v); ok {
		return float64(n), true
	}
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case uint64:
		return float64(n), true
	case *big.Rat:
		f, _ := n.Float64()
		return f, true
	case *big.Int:
		f, _ := new(big.Float).SetInt(n).Float64()
		return f, true
	}
	return 0, false
}
