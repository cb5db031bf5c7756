package table

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"kpiscout/domain/core"
)

// Column is a named, ordered sequence of cells
type Column struct {
	Name   string
	Values []Value
}

// Table is an in-memory rectangular dataset
type Table struct {
	Name    string
	Columns []*Column
}

// New builds a table from headers and row-major primitive cells. Short rows
// are padded with missing cells; extra cells are ignored.
func New(name string, headers []string, rows [][]interface{}) (*Table, error) {
	if len(headers) == 0 {
		return nil, fmt.Errorf("table %q has no columns", name)
	}

	seen := make(map[string]bool, len(headers))
	cols := make([]*Column, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		if seen[h] {
			return nil, fmt.Errorf("duplicate column name %q", h)
		}
		seen[h] = true
		cols[i] = &Column{Name: h, Values: make([]Value, len(rows))}
	}

	for r, row := range rows {
		for c := range cols {
			if c < len(row) {
				cols[c].Values[r] = FromAny(row[c])
			} else {
				cols[c].Values[r] = NewMissingValue()
			}
		}
	}

	return &Table{Name: name, Columns: cols}, nil
}

// FromRecords builds a table from a slice of key/value records. Column order
// follows the explicit headers when given, otherwise the sorted key set.
func FromRecords(name string, headers []string, records []map[string]interface{}) (*Table, error) {
	if len(headers) == 0 {
		seen := make(map[string]bool)
		for _, rec := range records {
			for k := range rec {
				if !seen[k] {
					seen[k] = true
					headers = append(headers, k)
				}
			}
		}
		sort.Strings(headers)
	}

	rows := make([][]interface{}, len(records))
	for i, rec := range records {
		row := make([]interface{}, len(headers))
		for j, h := range headers {
			row[j] = rec[h]
		}
		rows[i] = row
	}
	return New(name, headers, rows)
}

// RowCount returns the number of rows
func (t *Table) RowCount() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0].Values)
}

// ColumnNames returns the column names in order
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by exact name
func (t *Table) Column(name string) (*Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Has reports whether a column exists
func (t *Table) Has(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// Drop removes the named columns, preserving order of the rest
func (t *Table) Drop(names ...string) {
	if len(names) == 0 {
		return
	}
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	kept := t.Columns[:0]
	for _, c := range t.Columns {
		if !drop[c.Name] {
			kept = append(kept, c)
		}
	}
	t.Columns = kept
}

// Clone returns a deep copy so callers can coerce without touching the source
func (t *Table) Clone() *Table {
	out := &Table{Name: t.Name, Columns: make([]*Column, len(t.Columns))}
	for i, c := range t.Columns {
		vals := make([]Value, len(c.Values))
		copy(vals, c.Values)
		out.Columns[i] = &Column{Name: c.Name, Values: vals}
	}
	return out
}

// Fingerprint hashes the header and every cell's text form
func (t *Table) Fingerprint() core.Hash {
	h := core.NewHasher()
	for _, c := range t.Columns {
		h.Field(c.Name)
	}
	h.EndRecord()
	for r := 0; r < t.RowCount(); r++ {
		for _, c := range t.Columns {
			h.Field(c.Values[r].Text())
		}
		h.EndRecord()
	}
	return h.Sum()
}

// Floats returns the column as float64 with NaN for non-numeric cells
func (c *Column) Floats() []float64 {
	out := make([]float64, len(c.Values))
	for i, v := range c.Values {
		out[i] = v.Float()
	}
	return out
}

// NonMissingFloats returns only the numeric cells
func (c *Column) NonMissingFloats() []float64 {
	out := make([]float64, 0, len(c.Values))
	for _, v := range c.Values {
		if v.IsNumeric() {
			out = append(out, v.Num)
		}
	}
	return out
}

// MissingCount counts missing cells
func (c *Column) MissingCount() int {
	n := 0
	for _, v := range c.Values {
		if v.IsMissing() {
			n++
		}
	}
	return n
}

// AllMissing reports whether every cell is missing
func (c *Column) AllMissing() bool {
	for _, v := range c.Values {
		if !v.IsMissing() {
			return false
		}
	}
	return true
}

// Type returns the single value type shared by all non-missing cells, or
// ValueTypeString when they are mixed
func (c *Column) Type() ValueType {
	var found ValueType
	for _, v := range c.Values {
		if v.IsMissing() {
			continue
		}
		if found == "" {
			found = v.Type
			continue
		}
		if v.Type != found {
			return ValueTypeString
		}
	}
	if found == "" {
		return ValueTypeMissing
	}
	return found
}

// DistinctCount counts distinct non-missing cells by text form
func (c *Column) DistinctCount() int {
	seen := make(map[string]struct{})
	for _, v := range c.Values {
		if v.IsMissing() {
			continue
		}
		seen[v.Text()] = struct{}{}
	}
	return len(seen)
}

// UniqueRatio is distinct non-missing values over non-missing count
func (c *Column) UniqueRatio() float64 {
	nonMissing := len(c.Values) - c.MissingCount()
	if nonMissing == 0 {
		return 0
	}
	return float64(c.DistinctCount()) / float64(nonMissing)
}

// MaxFloat returns the largest numeric cell, or NaN when there are none
func (c *Column) MaxFloat() float64 {
	max := math.NaN()
	for _, v := range c.Values {
		if v.IsNumeric() && (math.IsNaN(max) || v.Num > max) {
			max = v.Num
		}
	}
	return max
}
