package factor

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"

	"kpiscout/domain/table"
	"kpiscout/internal/profiling"
)

// selectColumns applies the identifier, sparsity, duplicate and width filters
// to the numeric columns and returns the surviving names in table order
func selectColumns(t *table.Table, cfg Config) []string {
	rows := t.RowCount()
	var kept []*table.Column

	for _, c := range t.Columns {
		if c.Type() != table.ValueTypeNumeric {
			continue
		}
		if profiling.IsIdentifierName(c.Name) {
			continue
		}
		if isSurrogateIdentifier(c, rows, cfg) {
			continue
		}
		if rows == 0 || float64(c.MissingCount())/float64(rows) > cfg.MaxMissingFraction {
			continue
		}
		if c.DistinctCount() <= 1 {
			continue
		}
		if duplicatesAny(c, kept) {
			continue
		}
		kept = append(kept, c)
	}

	if len(kept) > cfg.MaxColumns {
		kept = kept[:cfg.MaxColumns]
	}
	names := make([]string, len(kept))
	for i, c := range kept {
		names[i] = c.Name
	}
	return names
}

// isSurrogateIdentifier detects near-unique whole-number columns whose range
// spans at least the row count, i.e. keys that are not named like keys
func isSurrogateIdentifier(c *table.Column, rows int, cfg Config) bool {
	vals := c.NonMissingFloats()
	if len(vals) < cfg.SurrogateMinRows {
		return false
	}
	for _, v := range vals {
		if v != math.Trunc(v) {
			return false
		}
	}
	if c.UniqueRatio() < cfg.SurrogateUniqueness {
		return false
	}
	lo, _ := stats.Min(vals)
	hi, _ := stats.Max(vals)
	return hi-lo >= float64(rows)
}

func duplicatesAny(c *table.Column, kept []*table.Column) bool {
	for _, k := range kept {
		if sameValues(c, k) {
			return true
		}
	}
	return false
}

func sameValues(a, b *table.Column) bool {
	if len(a.Values) != len(b.Values) {
		return false
	}
	for i := range a.Values {
		va, vb := a.Values[i], b.Values[i]
		if va.IsMissing() != vb.IsMissing() {
			return false
		}
		if !va.IsMissing() && va.Num != vb.Num {
			return false
		}
	}
	return true
}

// filledColumns returns each named column as floats with missing cells
// replaced by the column median
func filledColumns(t *table.Table, names []string) ([][]float64, error) {
	out := make([][]float64, len(names))
	for j, name := range names {
		c, ok := t.Column(name)
		if !ok {
			return nil, fmt.Errorf("column %q not found", name)
		}
		present := c.NonMissingFloats()
		median := 0.0
		if len(present) > 0 {
			median, _ = stats.Median(present)
		}
		vals := c.Floats()
		for i, v := range vals {
			if math.IsNaN(v) {
				vals[i] = median
			}
		}
		out[j] = vals
	}
	return out, nil
}

// dropCollinear removes the later column of every pair whose absolute
// correlation exceeds the threshold
func dropCollinear(names []string, cols [][]float64, threshold float64) ([]string, [][]float64) {
	var keptNames []string
	var keptCols [][]float64
	for j, col := range cols {
		collinear := false
		for _, prev := range keptCols {
			r := stat.Correlation(prev, col, nil)
			if !math.IsNaN(r) && math.Abs(r) > threshold {
				collinear = true
				break
			}
		}
		if !collinear {
			keptNames = append(keptNames, names[j])
			keptCols = append(keptCols, col)
		}
	}
	return keptNames, keptCols
}

// standardize returns a row-major matrix of z-scores using the population
// standard deviation. Constant columns become all zeros.
func standardize(cols [][]float64) [][]float64 {
	if len(cols) == 0 {
		return nil
	}
	rows := len(cols[0])
	out := make([][]float64, rows)
	for i := range out {
		out[i] = make([]float64, len(cols))
	}
	for j, col := range cols {
		mean, std := stat.PopMeanStdDev(col, nil)
		for i, v := range col {
			if std > 0 {
				out[i][j] = (v - mean) / std
			}
		}
	}
	return out
}

// StandardizedMatrix rebuilds the engine's input matrix for the given columns:
// median fill followed by population z-scores, in exactly the given order
func StandardizedMatrix(t *table.Table, names []string) ([][]float64, error) {
	cols, err := filledColumns(t, names)
	if err != nil {
		return nil, err
	}
	return standardize(cols), nil
}
