package insight

import (
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"

	domainInsight "kpiscout/domain/insight"
	"kpiscout/domain/table"
)

// Build materializes the card menu and KPI tiles for a resolved selection.
// Cards are produced in a fixed order and each is gated by the allow-list.
// Without a measure no cards are built, but tiles still are.
func (s *Selector) Build(t *table.Table, profile *domainInsight.Profile, sem *domainInsight.SemanticProfile, roles domainInsight.RoleMap, fr domainInsight.FactorResult, sel domainInsight.Selection, allow domainInsight.AllowList) domainInsight.Insights {
	out := domainInsight.Insights{
		Selection: sel,
		Cards:     []domainInsight.Card{},
		Tiles:     s.Tiles(t, roles, sel),
	}

	measure, ok := t.Column(sel.Measure)
	if sel.Measure == "" || !ok {
		out.Reason = "no usable numeric measure column found"
		return out
	}

	var dims []*table.Column
	for _, name := range sel.Dimensions {
		if c, ok := t.Column(name); ok {
			dims = append(dims, c)
		}
	}
	var timeCol *table.Column
	if c, ok := t.Column(sel.Time); ok && sel.Time != "" {
		timeCol = c
	}

	add := func(id string, build func() (domainInsight.Card, bool)) {
		if !allow.Allows(id) {
			return
		}
		card, ok := s.safeBuild(id, build)
		if ok {
			out.Cards = append(out.Cards, card)
		}
	}

	add(domainInsight.CardTopDimension, func() (domainInsight.Card, bool) {
		if len(dims) == 0 {
			return domainInsight.Card{}, false
		}
		return s.topDimension(dims[0], measure), true
	})
	add(domainInsight.CardTrendDaily, func() (domainInsight.Card, bool) {
		if timeCol == nil {
			return domainInsight.Card{}, false
		}
		return trend(domainInsight.CardTrendDaily, "daily", timeCol, measure, dayKey), true
	})
	add(domainInsight.CardTrendMonthly, func() (domainInsight.Card, bool) {
		if timeCol == nil {
			return domainInsight.Card{}, false
		}
		return trend(domainInsight.CardTrendMonthly, "monthly", timeCol, measure, monthKey), true
	})
	add(domainInsight.CardDistribution, func() (domainInsight.Card, bool) {
		return distribution(measure)
	})
	add(domainInsight.CardByCategory, func() (domainInsight.Card, bool) {
		if len(dims) == 0 {
			return domainInsight.Card{}, false
		}
		dim := dims[0]
		if len(dims) > 1 {
			dim = dims[1]
		}
		return s.byCategory(dim, measure), true
	})

	if fr.OK {
		driver := s.bestFactor(fr, measure)
		if driver != nil {
			add(domainInsight.CardFactorDriver, func() (domainInsight.Card, bool) {
				return s.driverSignal(fr, driver, measure.Name), true
			})
			add(domainInsight.CardFactorSegments, func() (domainInsight.Card, bool) {
				return s.topSegments(driver, dims)
			})
			add(domainInsight.CardFactorQuantiles, func() (domainInsight.Card, bool) {
				return s.quantileLift(driver, measure)
			})
		}
	}
	return out
}

// safeBuild turns a panicking card builder into a skipped card
func (s *Selector) safeBuild(id string, build func() (domainInsight.Card, bool)) (card domainInsight.Card, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("card builder failed", zap.String("card", id), zap.Any("panic", r))
			card, ok = domainInsight.Card{}, false
		}
	}()
	return build()
}

func groupRows(dim, measure *table.Column, groups []*group) []domainInsight.Row {
	rows := make([]domainInsight.Row, len(groups))
	for i, g := range groups {
		rows[i] = domainInsight.Row{dim.Name: g.key, measure.Name: finite(g.sum)}
	}
	return rows
}

func (s *Selector) topDimension(dim, measure *table.Column) domainInsight.Card {
	groups := topBySum(sumBy(dim, measure, textKey), s.config.TopDimensionLimit)
	return domainInsight.Card{
		ID:      domainInsight.CardTopDimension,
		Title:   fmt.Sprintf("Top %s by %s", dim.Name, measure.Name),
		Why:     fmt.Sprintf("Shows which %s values contribute the most %s.", dim.Name, measure.Name),
		Chart:   domainInsight.ChartBar,
		Columns: []string{dim.Name, measure.Name},
		Rows:    groupRows(dim, measure, groups),
	}
}

func (s *Selector) byCategory(dim, measure *table.Column) domainInsight.Card {
	groups := topBySum(sumBy(dim, measure, textKey), s.config.ByCategoryLimit)
	return domainInsight.Card{
		ID:      domainInsight.CardByCategory,
		Title:   fmt.Sprintf("%s by %s", measure.Name, dim.Name),
		Why:     fmt.Sprintf("Compares total %s across %s.", measure.Name, dim.Name),
		Chart:   domainInsight.ChartBar,
		Columns: []string{dim.Name, measure.Name},
		Rows:    groupRows(dim, measure, groups),
	}
}

func trend(id, grain string, timeCol, measure *table.Column, keyFn func(table.Value) (string, bool)) domainInsight.Card {
	groups := chronological(sumBy(timeCol, measure, keyFn))
	period := "date"
	if grain == "monthly" {
		period = "month"
	}
	rows := make([]domainInsight.Row, len(groups))
	for i, g := range groups {
		rows[i] = domainInsight.Row{period: g.key, measure.Name: finite(g.sum)}
	}
	return domainInsight.Card{
		ID:      id,
		Title:   fmt.Sprintf("%s over time (%s)", measure.Name, grain),
		Why:     fmt.Sprintf("Tracks %s %s to surface trend and seasonality.", measure.Name, grain),
		Chart:   domainInsight.ChartLine,
		Columns: []string{period, measure.Name},
		Rows:    rows,
	}
}

func distribution(measure *table.Column) (domainInsight.Card, bool) {
	vals := measure.NonMissingFloats()
	if len(vals) == 0 {
		return domainInsight.Card{}, false
	}
	data := stats.Float64Data(vals)
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	lo, _ := data.Min()
	p25 := percentile(sorted, 25)
	median, _ := data.Median()
	p75 := percentile(sorted, 75)
	hi, _ := data.Max()
	mean, _ := data.Mean()

	rows := []domainInsight.Row{
		{"stat": "min", "value": finite(lo)},
		{"stat": "p25", "value": finite(p25)},
		{"stat": "median", "value": finite(median)},
		{"stat": "p75", "value": finite(p75)},
		{"stat": "max", "value": finite(hi)},
		{"stat": "mean", "value": finite(mean)},
	}
	return domainInsight.Card{
		ID:      domainInsight.CardDistribution,
		Title:   fmt.Sprintf("Distribution of %s", measure.Name),
		Why:     fmt.Sprintf("Summarizes the spread of %s and flags skew.", measure.Name),
		Chart:   domainInsight.ChartBox,
		Columns: []string{"stat", "value"},
		Rows:    rows,
	}, true
}

// percentile interpolates linearly between the closest ranks at position
// (n-1)*p/100, so p50 equals the median. sorted must be ascending and non-empty.
func percentile(sorted []float64, p float64) float64 {
	pos := float64(len(sorted)-1) * p / 100
	lo := int(math.Floor(pos))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	return sorted[lo] + (pos-float64(lo))*(sorted[lo+1]-sorted[lo])
}
