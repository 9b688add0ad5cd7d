package audit

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapaudit/pkg/core"
)

// ArchitectureLoader reads the architecture resource at a locator.
type ArchitectureLoader interface {
	Load(ctx context.Context, locator string) ([]core.ArchitectureEntry, error)
}

// reconcile fetches the architecture and information schema concurrently
// and merges them with the catalog columns.
func (a *Auditor) reconcile(ctx context.Context, req AuditRequest, cols []core.ColumnDescriptor) ([]core.ReconciliationRow, error) {
	var (
		arch []core.ArchitectureEntry
		info []core.InformationSchemaEntry
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if a.architecture == nil {
			e := core.Errorf(core.ArchitectureResourceInvalid, "architecture", "no architecture loader configured")
			e.Locator = req.ArchitectureLocator
			return e
		}
		var err error
		arch, err = a.architecture.Load(gctx, req.ArchitectureLocator)
		return err
	})
	g.Go(func() error {
		var err error
		info, err = a.informationSchema(gctx, req.Table)
		return err
	})
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, core.NewError(core.Cancelled, "reconcile", ctx.Err()).WithTable(req.Table)
		}
		return nil, core.AsAuditError(err, core.QueryRejected, "reconcile").WithTable(req.Table)
	}

	if len(info) == 0 {
		a.logger.Warn("information schema has no columns for table", "table", req.Table.String())
	}

	rows := a.mergeSchemas(req.Table, cols, arch, info)
	a.logger.Debug("reconciliation complete",
		"table", req.Table.String(),
		"rows", len(rows),
		"mismatches", core.Mismatches(rows))
	return rows, nil
}

// informationSchema reads the live columns, retrying transient failures.
func (a *Auditor) informationSchema(ctx context.Context, ref core.TableRef) ([]core.InformationSchemaEntry, error) {
	var out []core.InformationSchemaEntry
	err := a.withRetry(ctx, func(ctx context.Context) error {
		var err error
		out, err = a.adapter.InformationSchema(ctx, ref)
		return err
	})
	return out, err
}

// schemaSide is one source's view of a normalized column name.
type schemaSide struct {
	typ     string
	present bool
}

// mergeSchemas performs the outer union of the three sources on the
// normalized column name. Rows follow catalog order, then architecture-only
// names in file order, then information-schema-only names in ordinal order.
func (a *Auditor) mergeSchemas(ref core.TableRef, cols []core.ColumnDescriptor,
	arch []core.ArchitectureEntry, info []core.InformationSchemaEntry,
) []core.ReconciliationRow {
	var order []string
	seen := make(map[string]bool)
	addName := func(n string) {
		if !seen[n] {
			seen[n] = true
			order = append(order, n)
		}
	}

	catalog := make(map[string]schemaSide, len(cols))
	for _, c := range cols {
		n := core.Normalize(c.Name)
		if _, dup := catalog[n]; dup {
			a.logger.Warn("duplicate column in catalog", "table", ref.String(), "column", n)
			continue
		}
		catalog[n] = schemaSide{typ: c.CatalogType, present: true}
		addName(n)
	}

	architecture := make(map[string]schemaSide, len(arch))
	for _, e := range arch {
		if _, dup := architecture[e.Name]; dup {
			a.logger.Warn("duplicate column in architecture", "table", ref.String(), "column", e.Name)
			continue
		}
		architecture[e.Name] = schemaSide{typ: e.DeclaredType, present: true}
		addName(e.Name)
	}

	live := make(map[string]schemaSide, len(info))
	for _, e := range info {
		if _, dup := live[e.Name]; dup {
			a.logger.Warn("duplicate column in information schema", "table", ref.String(), "column", e.Name)
			continue
		}
		live[e.Name] = schemaSide{typ: e.LiveType, present: true}
		addName(e.Name)
	}

	rows := make([]core.ReconciliationRow, 0, len(order))
	for _, n := range order {
		c, ar, in := catalog[n], architecture[n], live[n]
		row := core.ReconciliationRow{
			NormalizedName:   n,
			CatalogType:      typePtr(c),
			ArchitectureType: typePtr(ar),
			InfoSchemaType:   typePtr(in),
			InCatalog:        c.present,
			InArchitecture:   ar.present,
			InInfoSchema:     in.present,
			NameMatches:      in.present && ar.present,
			TypeMatches:      in.present && ar.present && in.typ == ar.typ,
		}
		if c.present && in.present {
			match := strings.EqualFold(strings.TrimSpace(c.typ), in.typ)
			row.CatalogTypeMatchesInfoSchema = &match
		}
		rows = append(rows, row)
	}
	return rows
}

func typePtr(s schemaSide) *string {
	if !s.present {
		return nil
	}
	t := s.typ
	return &t
}
