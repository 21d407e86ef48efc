package batch

import (
	"fmt"
	"sort"
	"strings"

	"tablecheck/domain/core"
)

// SourceKind identifies where a batch request's data comes from
type SourceKind string

const (
	SourceInline SourceKind = "inline"
	SourcePath   SourceKind = "path"
	SourceQuery  SourceKind = "query"
)

// Table is column-named, row-major tabular data. A nil cell is a missing value.
type Table struct {
	Columns []string        `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
}

// RowCount returns the number of data rows
func (t Table) RowCount() int {
	return len(t.Rows)
}

// HasColumn checks whether the table declares the named column
func (t Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// ColumnIndex returns the position of the named column, or -1
func (t Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// ColumnValues returns every cell of the named column, including nils
func (t Table) ColumnValues(name string) ([]interface{}, error) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("column %q not present in table", name)
	}
	values := make([]interface{}, 0, len(t.Rows))
	for _, row := range t.Rows {
		if idx >= len(row) {
			values = append(values, nil)
			continue
		}
		values = append(values, row[idx])
	}
	return values, nil
}

// Request specifies which batch(es) to resolve
type Request struct {
	Source           SourceKind        `json:"source"`
	Path             string            `json:"path,omitempty"`
	Query            string            `json:"query,omitempty"`
	Data             *Table            `json:"data,omitempty"`
	BatchIdentifiers map[string]string `json:"batch_identifiers"`
}

// Batch is one immutable, addressable slice of tabular data.
// Created by the resolver, referenced (never mutated) everywhere else.
type Batch struct {
	ID          core.BatchID          `json:"id"`
	Identifiers map[string]string     `json:"identifiers"`
	Table       Table                 `json:"table"`
	Fingerprint core.BatchFingerprint `json:"fingerprint"`
	ResolvedAt  core.Timestamp        `json:"resolved_at"`
}

// New builds a batch and stamps its fingerprint from identifiers and content
func New(identifiers map[string]string, table Table) *Batch {
	return &Batch{
		ID:          core.BatchID(core.NewID()),
		Identifiers: identifiers,
		Table:       table,
		Fingerprint: fingerprint(identifiers, table),
		ResolvedAt:  core.Now(),
	}
}

// IdentifierKey renders identifiers as a deterministic "k=v,k=v" string.
// Used for batch ordering and for skip reports during estimation.
func IdentifierKey(identifiers map[string]string) string {
	keys := make([]string, 0, len(identifiers))
	for k := range identifiers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+identifiers[k])
	}
	return strings.Join(parts, ",")
}

// SortBatches orders batches by their identifier key so resolution
// order is stable across runs.
func SortBatches(batches []*Batch) {
	sort.SliceStable(batches, func(i, j int) bool {
		return IdentifierKey(batches[i].Identifiers) < IdentifierKey(batches[j].Identifiers)
	})
}

func fingerprint(identifiers map[string]string, table Table) core.BatchFingerprint {
	var data strings.Builder
	data.WriteString(IdentifierKey(identifiers))
	data.WriteString("|")
	data.WriteString(strings.Join(table.Columns, ","))
	for _, row := range table.Rows {
		data.WriteString("|")
		for _, cell := range row {
			data.WriteString(fmt.Sprintf("%v;", cell))
		}
	}
	return core.BatchFingerprint(core.NewHash([]byte(data.String())))
}
