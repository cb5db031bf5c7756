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

// AuxiliaryRoles resolves dimension roles outside the catalog (channel, location)
type AuxiliaryRoles interface {
	PickAuxiliary(t *table.Table, sem *domainInsight.SemanticProfile, role domainInsight.RoleKey) domainInsight.RolePick
}

// dimensionPriority is walked in order before falling back to cardinality scoring
var dimensionPriority = []domainInsight.RoleKey{
	domainInsight.RoleProduct,
	domainInsight.RoleCategory,
	domainInsight.RoleChannel,
	domainInsight.RolePaymentMethod,
	domainInsight.RoleLocation,
}

// Selector chooses the measure, time and dimension context and builds cards
type Selector struct {
	config Config
	aux    AuxiliaryRoles
	logger *zap.Logger
}

// NewSelector creates a selector. aux may be nil, in which case auxiliary
// dimension roles are never resolved.
func NewSelector(config Config, aux AuxiliaryRoles, logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{config: config, aux: aux, logger: logger}
}

// Select resolves the selection. Overrides naming unusable columns produce
// one warning each and fall back to automatic selection.
func (s *Selector) Select(t *table.Table, profile *domainInsight.Profile, sem *domainInsight.SemanticProfile, roles domainInsight.RoleMap, overrides domainInsight.Overrides) (domainInsight.Selection, []string) {
	var warnings []string
	sel := domainInsight.Selection{Dimensions: []string{}}

	if o := overrides.MeasureCol; o != "" {
		switch {
		case !t.Has(o):
			warnings = append(warnings, fmt.Sprintf("measure_col override %q not found in dataset; using automatic selection", o))
		case !profile.IsNumeric(o):
			warnings = append(warnings, fmt.Sprintf("measure_col override %q is not numeric; using automatic selection", o))
		default:
			sel.Measure, sel.MeasureReason = o, "user override"
		}
	}
	if sel.Measure == "" {
		sel.Measure, sel.MeasureReason = s.autoMeasure(t, profile, sem, roles)
	}

	if o := overrides.TimeCol; o != "" {
		switch {
		case !t.Has(o):
			warnings = append(warnings, fmt.Sprintf("time_col override %q not found in dataset; using automatic selection", o))
		case !profile.IsDatetime(o):
			warnings = append(warnings, fmt.Sprintf("time_col override %q is not a datetime column; using automatic selection", o))
		default:
			sel.Time, sel.TimeReason = o, "user override"
		}
	}
	if sel.Time == "" {
		sel.Time, sel.TimeReason = s.autoTime(profile, sem, roles)
	}

	seen := map[string]bool{}
	for _, o := range overrides.DimensionCols {
		if !t.Has(o) {
			warnings = append(warnings, fmt.Sprintf("dimension_cols override %q not found in dataset; ignoring it", o))
			continue
		}
		if seen[o] || len(sel.Dimensions) >= s.config.MaxDimensions {
			continue
		}
		seen[o] = true
		sel.Dimensions = append(sel.Dimensions, o)
		sel.DimReasons = append(sel.DimReasons, "user override")
	}
	if len(sel.Dimensions) == 0 {
		sel.Dimensions, sel.DimReasons = s.autoDimensions(t, sem, roles, sel.Measure, sel.Time)
	}

	s.logger.Debug("selection resolved",
		zap.String("measure", sel.Measure),
		zap.String("time", sel.Time),
		zap.Strings("dimensions", sel.Dimensions),
		zap.Int("warnings", len(warnings)))
	return sel, warnings
}

func (s *Selector) autoMeasure(t *table.Table, profile *domainInsight.Profile, sem *domainInsight.SemanticProfile, roles domainInsight.RoleMap) (string, string) {
	if col, ok := roles.Column(domainInsight.RoleRevenue); ok && t.Has(col) && profile.IsNumeric(col) {
		return col, "revenue role: " + roles.Pick(domainInsight.RoleRevenue).Reason
	}

	best, bestScore := "", math.Inf(-1)
	for _, name := range profile.NumericCols {
		if sem != nil && sem.Of(name) == domainInsight.SemanticIdentifier {
			continue
		}
		missing := profile.MissingFraction(name)
		if missing > s.config.MaxMeasureMissing {
			continue
		}
		c, ok := t.Column(name)
		if !ok {
			continue
		}
		vals := c.NonMissingFloats()
		if len(vals) == 0 {
			continue
		}
		// sample std (n-1); a single value yields NaN and is skipped
		std, err := stats.StandardDeviationSample(vals)
		if err != nil || math.IsNaN(std) {
			continue
		}
		if score := std * (1 - missing); score > bestScore {
			best, bestScore = name, score
		}
	}
	if best == "" {
		return "", ""
	}
	return best, fmt.Sprintf("highest std x completeness (%.4g)", bestScore)
}

func (s *Selector) autoTime(profile *domainInsight.Profile, sem *domainInsight.SemanticProfile, roles domainInsight.RoleMap) (string, string) {
	if col, ok := roles.Column(domainInsight.RoleDate); ok && profile.IsDatetime(col) {
		return col, "date role"
	}
	if sem != nil && len(sem.Datetime) > 0 {
		return sem.Datetime[0], "first datetime column"
	}
	return "", ""
}

func (s *Selector) autoDimensions(t *table.Table, sem *domainInsight.SemanticProfile, roles domainInsight.RoleMap, measure, timeCol string) ([]string, []string) {
	dims := []string{}
	var reasons []string
	used := map[string]bool{measure: true, timeCol: true}
	add := func(col, reason string) {
		if col == "" || used[col] || !t.Has(col) || len(dims) >= s.config.MaxDimensions {
			return
		}
		used[col] = true
		dims = append(dims, col)
		reasons = append(reasons, reason)
	}

	for _, role := range dimensionPriority {
		var pick domainInsight.RolePick
		if _, ok := roles.Column(role); ok {
			pick = roles.Pick(role)
		} else if s.aux != nil && (role == domainInsight.RoleChannel || role == domainInsight.RoleLocation) {
			pick = s.aux.PickAuxiliary(t, sem, role)
		}
		if pick.Has() {
			add(pick.Column, fmt.Sprintf("%s role", role))
		}
	}

	if len(dims) < s.config.MaxDimensions && sem != nil {
		type scored struct {
			name  string
			score float64
		}
		var candidates []scored
		for _, name := range sem.Categorical {
			if used[name] {
				continue
			}
			c, ok := t.Column(name)
			if !ok {
				continue
			}
			n := c.DistinctCount()
			if n < s.config.MinDimensionCardinality || n > s.config.MaxDimensionCardinality {
				continue
			}
			candidates = append(candidates, scored{name, 1 / (1 + math.Abs(float64(n)-s.config.TargetCardinality))})
		}
		sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
		for _, c := range candidates {
			add(c.name, fmt.Sprintf("categorical cardinality score %.3f", c.score))
		}
	}

	if len(dims) == 0 {
		for _, name := range t.ColumnNames() {
			if name != measure {
				dims = append(dims, name)
				reasons = append(reasons, "first non-measure column")
				break
			}
		}
	}
	return dims, reasons
}
