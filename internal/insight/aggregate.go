package insight

import (
	"math"
	"sort"
	"time"

	"kpiscout/domain/table"
)

// group is one key of a group-by with its running aggregates
type group struct {
	key   string
	order int
	sum   float64
	count int
}

// sumBy groups the measure by the text form of the key column. Rows with a
// missing key are skipped; missing measures contribute nothing to the sum.
func sumBy(keys, measure *table.Column, keyFn func(table.Value) (string, bool)) []*group {
	index := map[string]*group{}
	var groups []*group
	for i, kv := range keys.Values {
		key, ok := keyFn(kv)
		if !ok {
			continue
		}
		g, exists := index[key]
		if !exists {
			g = &group{key: key, order: len(groups)}
			index[key] = g
			groups = append(groups, g)
		}
		if mv := measure.Values[i]; mv.IsNumeric() {
			g.sum += mv.Num
			g.count++
		}
	}
	return groups
}

func textKey(v table.Value) (string, bool) {
	if v.IsMissing() {
		return "", false
	}
	return v.Text(), true
}

func dayKey(v table.Value) (string, bool) {
	if !v.IsTimestamp() {
		return "", false
	}
	return v.Time.Format("2006-01-02"), true
}

func monthKey(v table.Value) (string, bool) {
	if !v.IsTimestamp() {
		return "", false
	}
	return v.Time.Format("2006-01"), true
}

// topBySum sorts groups by descending sum, ties by first appearance, and truncates
func topBySum(groups []*group, limit int) []*group {
	sorted := append([]*group(nil), groups...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].sum != sorted[j].sum {
			return sorted[i].sum > sorted[j].sum
		}
		return sorted[i].order < sorted[j].order
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

// chronological sorts date-keyed groups; ISO keys sort lexically
func chronological(groups []*group) []*group {
	sorted := append([]*group(nil), groups...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].key < sorted[j].key })
	return sorted
}

// pairs returns aligned (x, y) values where both are finite
func pairs(x []float64, y *table.Column) ([]float64, []float64) {
	var xs, ys []float64
	for i, v := range y.Values {
		if i >= len(x) || !v.IsNumeric() || math.IsNaN(x[i]) || math.IsInf(x[i], 0) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, v.Num)
	}
	return xs, ys
}

// timeBounds returns the earliest and latest timestamps in a column
func timeBounds(c *table.Column) (time.Time, time.Time, bool) {
	var lo, hi time.Time
	found := false
	for _, v := range c.Values {
		if !v.IsTimestamp() {
			continue
		}
		if !found || v.Time.Before(lo) {
			lo = v.Time
		}
		if !found || v.Time.After(hi) {
			hi = v.Time
		}
		found = true
	}
	return lo, hi, found
}

// finite replaces NaN and Inf with nil so card payloads always marshal
func finite(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}
