package audit

import (
	"slices"

	"github.com/leapstack-labs/leapaudit/pkg/core"
)

// DefaultVocabulary lists the column names recognized as dimension keys
// that should be linked to a directory table.
var DefaultVocabulary = []string{
	"id_escola", "id_municipio", "sigla_uf", "id_municipio_tse", "id_uf",
	"id_natureza_juridica", "id_etnia_indigena", "id_regiao_metropolitana",
	"especialdiade", "cbo_1994", "cbo_2002", "subcategoria", "categoria",
	"cnae_1", "cnae_2", "id_curso", "id_distrito", "id_ies", "id_setor_censitario",
	"nome", "sigla", "ano", "bimestre", "semestre", "data", "dia", "hora", "mes",
	"minuto", "segundo", "tempo", "trimestre",
}

// Vocabulary is a set of normalized dimension-key names.
type Vocabulary map[string]struct{}

// NewVocabulary builds a vocabulary from names. A nil base uses DefaultVocabulary.
func NewVocabulary(base []string, extra ...string) Vocabulary {
	if base == nil {
		base = DefaultVocabulary
	}
	v := make(Vocabulary, len(base)+len(extra))
	for _, n := range base {
		v[core.Normalize(n)] = struct{}{}
	}
	for _, n := range extra {
		v[core.Normalize(n)] = struct{}{}
	}
	return v
}

// Contains reports whether name is a recognized dimension key.
func (v Vocabulary) Contains(name string) bool {
	_, ok := v[core.Normalize(name)]
	return ok
}

// Names returns the vocabulary in sorted order.
func (v Vocabulary) Names() []string {
	names := make([]string, 0, len(v))
	for n := range v {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// directoryLinks reports the linkage of every column, or an empty slice
// when no column is a recognized dimension key.
func (a *Auditor) directoryLinks(cols []core.ColumnDescriptor) []core.DirectoryLinkRow {
	recognized := false
	for _, c := range cols {
		if a.vocabulary.Contains(c.Name) {
			recognized = true
			break
		}
	}
	if !recognized {
		return []core.DirectoryLinkRow{}
	}

	rows := make([]core.DirectoryLinkRow, 0, len(cols))
	for _, c := range cols {
		row := core.DirectoryLinkRow{
			Name:       c.Name,
			Recognized: a.vocabulary.Contains(c.Name),
		}
		if l := c.DirectoryLink; l != nil {
			ds, t, col := l.DatasetID, l.TableID, l.ColumnName
			row.LinkedDatasetID = &ds
			row.LinkedTableID = &t
			row.LinkedColumnName = &col
		}
		rows = append(rows, row)
	}
	return rows
}
