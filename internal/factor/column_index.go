package factor

// ColumnIndex maps column names to their position in one canonical ordering.
// Every consumer that pairs loadings with matrix columns goes through it.
type ColumnIndex struct {
	names []string
	pos   map[string]int
}

// NewColumnIndex indexes names in the given order
func NewColumnIndex(names []string) *ColumnIndex {
	idx := &ColumnIndex{
		names: append([]string(nil), names...),
		pos:   make(map[string]int, len(names)),
	}
	for i, n := range names {
		if _, dup := idx.pos[n]; !dup {
			idx.pos[n] = i
		}
	}
	return idx
}

// Position returns the column's position, or false when it is not indexed
func (c *ColumnIndex) Position(name string) (int, bool) {
	i, ok := c.pos[name]
	return i, ok
}

// Names returns the canonical ordering
func (c *ColumnIndex) Names() []string {
	return append([]string(nil), c.names...)
}

// Len returns the number of indexed columns
func (c *ColumnIndex) Len() int {
	return len(c.names)
}
