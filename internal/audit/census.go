package audit

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapaudit/pkg/core"
	"github.com/leapstack-labs/leapaudit/pkg/dialect"
)

// CensusMode selects the query shape of the null census.
type CensusMode string

const (
	// CensusBatched counts every column of a partition in one query.
	CensusBatched CensusMode = "batched"
	// CensusPerColumn runs one scalar query per column and partition.
	CensusPerColumn CensusMode = "per_column"
)

// censusTask is one query of the census. It fills counts[partition][cols].
type censusTask struct {
	partition int
	cols      []int
}

// census builds the null census of a table from its resolved columns.
func (a *Auditor) census(ctx context.Context, ref core.TableRef, cols []core.ColumnDescriptor) (*core.NullCensus, error) {
	names := a.uniqueNames(ref, cols)
	keyColumn := a.partitionColumn(cols)

	partitions, err := a.discoverPartitions(ctx, ref, keyColumn)
	if err != nil {
		return nil, withTable(err, ref)
	}

	a.logger.Debug("census started",
		"table", ref.String(),
		"partition_key", keyColumn,
		"partitions", len(partitions),
		"columns", len(names),
		"mode", string(a.mode))

	counts := make([][]int64, len(partitions))
	for i := range counts {
		counts[i] = make([]int64, len(names))
	}

	tasks := a.censusTasks(len(partitions), len(names))
	progress := a.newProgress(len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for _, task := range tasks {
		g.Go(func() error {
			if err := a.runCensusTask(gctx, ref, keyColumn, names, partitions, task, counts); err != nil {
				return err
			}
			progress.step()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, core.NewError(core.Cancelled, "census", ctx.Err()).WithTable(ref)
		}
		return nil, withTable(err, ref)
	}

	census := &core.NullCensus{
		Table:   ref,
		Columns: names,
		Rows:    make([]core.NullCensusRow, len(partitions)),
	}
	if keyColumn != "" {
		census.PartitionKey = keyColumn
	}
	for p, part := range partitions {
		row := core.NullCensusRow{
			Partition:  part.Key,
			TableSize:  part.RowCount,
			NullCounts: make(map[string]int64, len(names)),
		}
		for c, name := range names {
			n := counts[p][c]
			if n < 0 || n > part.RowCount {
				e := core.Errorf(core.QueryRejected, "census",
					"null count %d outside [0, %d] for partition %s", n, part.RowCount, part.Key.String())
				e.Column = name
				return nil, e.WithTable(ref)
			}
			row.NullCounts[name] = n
		}
		census.Rows[p] = row
	}

	a.logger.Debug("census complete", "table", ref.String(), "rows", census.TotalRows())
	return census, nil
}

// censusTasks splits the work into queries according to the census mode.
func (a *Auditor) censusTasks(partitions, columns int) []censusTask {
	if columns == 0 {
		return nil
	}
	chunk := a.batchColumns
	if a.mode == CensusPerColumn {
		chunk = 1
	}
	var tasks []censusTask
	for p := range partitions {
		for start := 0; start < columns; start += chunk {
			end := min(start+chunk, columns)
			idx := make([]int, 0, end-start)
			for c := start; c < end; c++ {
				idx = append(idx, c)
			}
			tasks = append(tasks, censusTask{partition: p, cols: idx})
		}
	}
	return tasks
}

func (a *Auditor) runCensusTask(ctx context.Context, ref core.TableRef, keyColumn string, names []string,
	partitions []core.Partition, task censusTask, counts [][]int64,
) error {
	part := partitions[task.partition]
	// An empty partition has no nulls to count.
	if part.RowCount == 0 {
		return nil
	}

	sql, args := a.censusQuery(ref, keyColumn, names, part.Key, task.cols)
	result, err := a.query(ctx, sql, args...)
	if err != nil {
		return err
	}
	if result.Len() != 1 || len(result.Rows[0]) != len(task.cols) {
		return core.Errorf(core.QueryRejected, "census", "unexpected census result shape: %d rows", result.Len())
	}
	for i, c := range task.cols {
		n, err := core.ToInt64(result.Rows[0][i])
		if err != nil {
			e := core.NewError(core.QueryRejected, "census", err)
			e.Column = names[c]
			return e
		}
		counts[task.partition][c] = n
	}
	return nil
}

// censusQuery renders the null-count query of some columns of one partition.
// The partition value is bound as a parameter.
func (a *Auditor) censusQuery(ref core.TableRef, keyColumn string, names []string, key *core.PartitionValue, cols []int) (string, []any) {
	d := a.adapter.Dialect()

	var where []string
	var args []any
	if a.mode == CensusPerColumn {
		where = append(where, columnRef(d, names[cols[0]])+" IS NULL")
	}
	if keyColumn != "" && key != nil {
		if key.Null {
			where = append(where, columnRef(d, keyColumn)+" IS NULL")
		} else {
			args = append(args, key.Value)
			where = append(where, columnRef(d, keyColumn)+" = "+d.FormatPlaceholder(len(args)))
		}
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	if a.mode == CensusPerColumn {
		b.WriteString("COUNT(*)")
	} else {
		for i, c := range cols {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "COUNT(*) - COUNT(%s)", columnRef(d, names[c]))
		}
	}
	b.WriteString(" FROM ")
	b.WriteString(d.TableReference(ref))
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	return b.String(), args
}

// columnRef quotes a catalog column by its normalized name. Warehouses
// store unquoted identifiers folded, so the catalog's casing may not match.
func columnRef(d *dialect.Dialect, name string) string {
	return d.QuoteIdentifier(core.Normalize(name))
}

// uniqueNames returns the descriptor names in schema order, keeping the
// first of any names that normalize to the same value.
func (a *Auditor) uniqueNames(ref core.TableRef, cols []core.ColumnDescriptor) []string {
	seen := make(map[string]bool, len(cols))
	names := make([]string, 0, len(cols))
	for _, c := range cols {
		n := core.Normalize(c.Name)
		if seen[n] {
			a.logger.Warn("duplicate catalog column ignored", "table", ref.String(), "column", c.Name)
			continue
		}
		seen[n] = true
		names = append(names, c.Name)
	}
	return names
}

func withTable(err error, ref core.TableRef) error {
	return core.AsAuditError(err, core.QueryRejected, "census").WithTable(ref)
}
