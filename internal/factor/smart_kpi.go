package factor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"kpiscout/domain/insight"
	"kpiscout/domain/table"
)

// NormalizationSumAbs names the loading normalization used for smart KPIs
const NormalizationSumAbs = "loading / sum(|loading|)"

// Synthesize collapses each factor into one signal: the row mean of the
// sign-preserving normalized weighted sum of its standardized columns.
// Factors without usable loadings are skipped with a warning.
func Synthesize(t *table.Table, fr insight.FactorResult) (map[string]insight.SmartKPI, []string) {
	out := map[string]insight.SmartKPI{}
	if !fr.OK || len(fr.Factors) == 0 {
		return out, nil
	}

	var warnings []string
	index := NewColumnIndex(fr.NumericUsed)
	z, err := StandardizedMatrix(t, index.Names())
	if err != nil {
		return out, []string{fmt.Sprintf("smart KPIs skipped: %v", err)}
	}

	for _, factor := range fr.Factors {
		var cols []string
		var raw []float64
		for _, col := range index.Names() {
			l, ok := fr.Loading(col, factor)
			if !ok || l == 0 || math.IsNaN(l) {
				continue
			}
			cols = append(cols, col)
			raw = append(raw, l)
		}
		if len(cols) == 0 {
			warnings = append(warnings, fmt.Sprintf("smart KPI for %s skipped: no columns with a non-zero loading", factor))
			continue
		}

		sumAbs := 0.0
		for _, l := range raw {
			sumAbs += math.Abs(l)
		}
		if sumAbs == 0 {
			warnings = append(warnings, fmt.Sprintf("smart KPI for %s skipped: loadings sum to zero", factor))
			continue
		}

		weights := make([]float64, len(raw))
		positions := make([]int, len(cols))
		for i, col := range cols {
			weights[i] = raw[i] / sumAbs
			positions[i], _ = index.Position(col)
		}

		signal := make([]float64, len(z))
		for r, row := range z {
			for i, pos := range positions {
				signal[r] += weights[i] * row[pos]
			}
		}

		value, spread := 0.0, 0.0
		if len(signal) > 0 {
			value, spread = stat.PopMeanStdDev(signal, nil)
		}
		out["smart_"+factor] = insight.SmartKPI{
			Factor: factor,
			Value:  value,
			Spread: spread,
			Formula: insight.SmartKPIFormula{
				Columns:       cols,
				RawWeights:    raw,
				Weights:       weights,
				Normalization: NormalizationSumAbs,
			},
		}
	}
	return out, warnings
}
