package insight

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	domainInsight "kpiscout/domain/insight"
	"kpiscout/domain/table"
	"kpiscout/internal/factor"
)

// driverFactor is the factor whose scores track the measure most closely
type driverFactor struct {
	name   string
	scores []float64
	r      float64
}

// bestFactor picks the factor with the largest absolute Pearson correlation
// to the measure, requiring a minimum number of paired observations
func (s *Selector) bestFactor(fr domainInsight.FactorResult, measure *table.Column) *driverFactor {
	if len(fr.Scores) != len(measure.Values) {
		return nil
	}
	var best *driverFactor
	for _, f := range fr.Factors {
		scores := fr.FactorScores(f)
		xs, ys := pairs(scores, measure)
		if len(xs) < s.config.MinCorrelationPairs {
			continue
		}
		r := stat.Correlation(xs, ys, nil)
		if math.IsNaN(r) {
			continue
		}
		if best == nil || math.Abs(r) > math.Abs(best.r) {
			best = &driverFactor{name: f, scores: scores, r: r}
		}
	}
	return best
}

func (s *Selector) driverSignal(fr domainInsight.FactorResult, driver *driverFactor, measureName string) domainInsight.Card {
	type entry struct {
		col     string
		loading float64
		pos     int
	}
	index := factor.NewColumnIndex(fr.NumericUsed)
	var entries []entry
	for _, col := range index.Names() {
		l, ok := fr.Loading(col, driver.name)
		if !ok || math.IsNaN(l) {
			continue
		}
		pos, _ := index.Position(col)
		entries = append(entries, entry{col, l, pos})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return math.Abs(entries[i].loading) > math.Abs(entries[j].loading)
	})
	if len(entries) > s.config.DriverColumns {
		entries = entries[:s.config.DriverColumns]
	}

	rows := make([]domainInsight.Row, len(entries))
	for i, e := range entries {
		rows[i] = domainInsight.Row{
			"column":      e.col,
			"loading":     e.loading,
			"abs_loading": math.Abs(e.loading),
		}
	}
	return domainInsight.Card{
		ID:      domainInsight.CardFactorDriver,
		Title:   fmt.Sprintf("Driver signal %s", driver.name),
		Why:     fmt.Sprintf("Latent factor %s moves with %s (r=%.2f); these columns load on it most.", driver.name, measureName, driver.r),
		Chart:   domainInsight.ChartBar,
		Columns: []string{"column", "loading", "abs_loading"},
		Rows:    rows,
	}
}

type segment struct {
	dimension string
	value     string
	mean      float64
	rows      int
	order     int
}

func (s *Selector) topSegments(driver *driverFactor, dims []*table.Column) (domainInsight.Card, bool) {
	var all []segment
	for _, dim := range dims {
		index := map[string]int{}
		var segs []segment
		for i, v := range dim.Values {
			if v.IsMissing() || i >= len(driver.scores) {
				continue
			}
			key := v.Text()
			pos, ok := index[key]
			if !ok {
				pos = len(segs)
				index[key] = pos
				segs = append(segs, segment{dimension: dim.Name, value: key, order: len(all) + pos})
			}
			segs[pos].mean += driver.scores[i]
			segs[pos].rows++
		}
		for i := range segs {
			segs[i].mean /= float64(segs[i].rows)
		}
		sortSegments(segs)
		if len(segs) > s.config.SegmentsPerDimension {
			segs = segs[:s.config.SegmentsPerDimension]
		}
		all = append(all, segs...)
	}
	if len(all) == 0 {
		return domainInsight.Card{}, false
	}
	sortSegments(all)
	if len(all) > s.config.SegmentsOverall {
		all = all[:s.config.SegmentsOverall]
	}

	rows := make([]domainInsight.Row, len(all))
	for i, seg := range all {
		rows[i] = domainInsight.Row{
			"dimension": seg.dimension,
			"segment":   seg.value,
			"avg_score": finite(seg.mean),
			"rows":      seg.rows,
		}
	}
	return domainInsight.Card{
		ID:      domainInsight.CardFactorSegments,
		Title:   fmt.Sprintf("Top segments on %s", driver.name),
		Why:     fmt.Sprintf("Segments with the highest average %s score.", driver.name),
		Chart:   domainInsight.ChartTable,
		Columns: []string{"dimension", "segment", "avg_score", "rows"},
		Rows:    rows,
	}, true
}

func sortSegments(segs []segment) {
	sort.SliceStable(segs, func(i, j int) bool {
		if segs[i].mean != segs[j].mean {
			return segs[i].mean > segs[j].mean
		}
		return segs[i].order < segs[j].order
	})
}

// quantileLift bins rows into equal-count quantiles of the factor score and
// reports the mean measure per bin
func (s *Selector) quantileLift(driver *driverFactor, measure *table.Column) (domainInsight.Card, bool) {
	xs, ys := pairs(driver.scores, measure)
	if len(xs) < s.config.MinQuantilePairs || s.config.QuantileBins < 2 {
		return domainInsight.Card{}, false
	}

	order := make([]int, len(xs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return xs[order[a]] < xs[order[b]] })

	bins := s.config.QuantileBins
	rows := make([]domainInsight.Row, 0, bins)
	means := make([]float64, 0, bins)
	for b := 0; b < bins; b++ {
		lo := b * len(order) / bins
		hi := (b + 1) * len(order) / bins
		if hi <= lo {
			continue
		}
		var sx, sy float64
		for _, idx := range order[lo:hi] {
			sx += xs[idx]
			sy += ys[idx]
		}
		n := float64(hi - lo)
		means = append(means, sy/n)
		rows = append(rows, domainInsight.Row{
			"bin":         fmt.Sprintf("Q%d", b+1),
			"avg_score":   finite(sx / n),
			"avg_measure": finite(sy / n),
			"rows":        hi - lo,
		})
	}

	shape := "non-monotonic"
	switch {
	case isMonotonic(means, 1):
		shape = "monotonically increasing"
	case isMonotonic(means, -1):
		shape = "monotonically decreasing"
	}
	return domainInsight.Card{
		ID:      domainInsight.CardFactorQuantiles,
		Title:   fmt.Sprintf("%s by %s quantile", measure.Name, driver.name),
		Why:     fmt.Sprintf("Average %s across %s score quantiles is %s.", measure.Name, driver.name, shape),
		Chart:   domainInsight.ChartLine,
		Columns: []string{"bin", "avg_score", "avg_measure", "rows"},
		Rows:    rows,
	}, true
}

func isMonotonic(vals []float64, direction float64) bool {
	for i := 1; i < len(vals); i++ {
		if (vals[i]-vals[i-1])*direction < 0 {
			return false
		}
	}
	return len(vals) > 1
}
