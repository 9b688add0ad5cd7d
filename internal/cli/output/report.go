package output

import (
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/leapstack-labs/leapaudit/pkg/core"
)

// CensusOutput is the JSON form of a null census.
type CensusOutput struct {
	Table        string            `json:"table"`
	PartitionKey string            `json:"partition_key,omitempty"`
	Columns      []string          `json:"columns"`
	TotalRows    int64             `json:"total_rows"`
	Partitions   []CensusPartition `json:"partitions"`
}

// CensusPartition is one partition of CensusOutput. Partition is null for
// the implicit partition of an unpartitioned table.
type CensusPartition struct {
	Partition  *string          `json:"partition"`
	TableSize  int64            `json:"table_size"`
	NullCounts map[string]int64 `json:"null_counts"`
}

// ReconcileOutput is the JSON form of a schema reconciliation.
type ReconcileOutput struct {
	Table      string                   `json:"table"`
	Mismatches int                      `json:"mismatches"`
	Rows       []core.ReconciliationRow `json:"rows"`
}

// LinksOutput is the JSON form of a directory linkage check.
type LinksOutput struct {
	Table   string                  `json:"table"`
	Linked  int                     `json:"linked"`
	Columns []core.DirectoryLinkRow `json:"columns"`
}

// AuditOutput is the JSON form of a full report.
type AuditOutput struct {
	AuditID     string           `json:"audit_id,omitempty"`
	Table       string           `json:"table"`
	Census      *CensusOutput    `json:"census"`
	Schema      *ReconcileOutput `json:"schema,omitempty"`
	SchemaError string           `json:"schema_error,omitempty"`
	Links       *LinksOutput     `json:"links"`
}

// NewCensusOutput converts a census for JSON output.
func NewCensusOutput(c *core.NullCensus) *CensusOutput {
	out := &CensusOutput{
		Table:        c.Table.String(),
		PartitionKey: c.PartitionKey,
		Columns:      c.Columns,
		TotalRows:    c.TotalRows(),
		Partitions:   make([]CensusPartition, 0, len(c.Rows)),
	}
	for _, row := range c.Rows {
		p := CensusPartition{TableSize: row.TableSize, NullCounts: row.NullCounts}
		if row.Partition != nil {
			label := row.Partition.String()
			p.Partition = &label
		}
		out.Partitions = append(out.Partitions, p)
	}
	return out
}

// NewReconcileOutput converts reconciliation rows for JSON output.
func NewReconcileOutput(ref core.TableRef, rows []core.ReconciliationRow) *ReconcileOutput {
	if rows == nil {
		rows = []core.ReconciliationRow{}
	}
	return &ReconcileOutput{Table: ref.String(), Mismatches: core.Mismatches(rows), Rows: rows}
}

// NewLinksOutput converts linkage rows for JSON output.
func NewLinksOutput(ref core.TableRef, rows []core.DirectoryLinkRow) *LinksOutput {
	if rows == nil {
		rows = []core.DirectoryLinkRow{}
	}
	linked := 0
	for _, r := range rows {
		if r.HasLink() {
			linked++
		}
	}
	return &LinksOutput{Table: ref.String(), Linked: linked, Columns: rows}
}

// Census renders a null census with one line per column and one column per partition.
func (r *Renderer) Census(c *core.NullCensus) error {
	if r.EffectiveMode() == ModeJSON {
		return r.JSON(NewCensusOutput(c))
	}

	header := table.Row{"column"}
	sizes := table.Row{r.styles.Muted.Render("(rows)")}
	for _, row := range c.Rows {
		header = append(header, partitionLabel(c, row))
		sizes = append(sizes, row.TableSize)
	}

	t := r.newTable()
	t.AppendHeader(header)
	t.AppendRow(sizes)
	if r.EffectiveMode() == ModeText {
		t.AppendSeparator()
	}
	for _, col := range c.Columns {
		line := table.Row{col}
		for _, row := range c.Rows {
			line = append(line, row.NullCounts[col])
		}
		t.AppendRow(line)
	}

	r.section("null census", c.Table, func() {
		if len(c.Rows) == 0 {
			r.Println("(no partitions)")
			return
		}
		r.render(t)
	})
	return nil
}

// Reconciliation renders the three-way schema comparison.
func (r *Renderer) Reconciliation(ref core.TableRef, rows []core.ReconciliationRow) error {
	if r.EffectiveMode() == ModeJSON {
		return r.JSON(NewReconcileOutput(ref, rows))
	}

	t := r.newTable()
	t.AppendHeader(table.Row{"column", "catalog", "architecture", "information schema", "name", "type", "catalog = live"})
	for _, row := range rows {
		catalogLive := "-"
		if row.CatalogTypeMatchesInfoSchema != nil {
			catalogLive = r.Mark(*row.CatalogTypeMatchesInfoSchema)
		}
		t.AppendRow(table.Row{
			row.NormalizedName,
			optional(row.CatalogType),
			optional(row.ArchitectureType),
			optional(row.InfoSchemaType),
			r.Mark(row.NameMatches),
			r.Mark(row.TypeMatches),
			catalogLive,
		})
	}

	r.section("schema reconciliation", ref, func() {
		r.render(t)
		if r.EffectiveMode() != ModeCSV {
			r.Println("")
			r.Printf("%d of %d columns mismatched\n", core.Mismatches(rows), len(rows))
		}
	})
	return nil
}

// Links renders the directory linkage of a table's columns.
func (r *Renderer) Links(ref core.TableRef, rows []core.DirectoryLinkRow) error {
	if r.EffectiveMode() == ModeJSON {
		return r.JSON(NewLinksOutput(ref, rows))
	}

	t := r.newTable()
	t.AppendHeader(table.Row{"column", "dimension key", "dataset", "table", "directory column"})
	for _, row := range rows {
		t.AppendRow(table.Row{
			row.Name,
			r.Mark(row.Recognized),
			optional(row.LinkedDatasetID),
			optional(row.LinkedTableID),
			optional(row.LinkedColumnName),
		})
	}

	r.section("directory links", ref, func() {
		r.render(t)
	})
	return nil
}

// Report renders all three results of an audit.
func (r *Renderer) Report(auditID string, rep *core.Report) error {
	if r.EffectiveMode() == ModeJSON {
		out := AuditOutput{
			AuditID: auditID,
			Table:   rep.Table.String(),
			Census:  NewCensusOutput(rep.Census),
			Links:   NewLinksOutput(rep.Table, rep.Links),
		}
		if rep.SchemaErr != nil {
			out.SchemaError = rep.SchemaErr.Error()
		} else {
			out.Schema = NewReconcileOutput(rep.Table, rep.Schema)
		}
		return r.JSON(out)
	}

	if err := r.Census(rep.Census); err != nil {
		return err
	}
	r.Println("")
	if rep.SchemaErr != nil {
		r.Error("schema reconciliation skipped: " + rep.SchemaErr.Error())
	} else if err := r.Reconciliation(rep.Table, rep.Schema); err != nil {
		return err
	}
	r.Println("")
	return r.Links(rep.Table, rep.Links)
}

func (r *Renderer) newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)
	return t
}

func (r *Renderer) render(t table.Writer) {
	switch r.EffectiveMode() {
	case ModeMarkdown:
		t.RenderMarkdown()
	case ModeCSV:
		t.RenderCSV()
	default:
		t.Render()
	}
}

// section wraps body with a header naming the table, except in csv mode
// where only the table itself is written.
func (r *Renderer) section(title string, ref core.TableRef, body func()) {
	switch r.EffectiveMode() {
	case ModeCSV:
		body()
		return
	case ModeMarkdown:
		r.Header(2, title)
		r.Println(FormatKeyValue("Table", ref.String()))
		r.Println("")
	default:
		r.Header(2, title)
		r.Println(r.styles.Muted.Render(ref.String()))
	}
	body()
}

func partitionLabel(c *core.NullCensus, row core.NullCensusRow) string {
	if row.Partition == nil {
		return "all"
	}
	if c.PartitionKey == "" {
		return row.Partition.String()
	}
	return c.PartitionKey + "=" + row.Partition.String()
}

func optional(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
