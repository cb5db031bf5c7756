package insight

// Stable card identifiers. The recommender is trained against these strings,
// so renaming one invalidates existing model artifacts.
const (
	CardTopDimension    = "top_dimension_by_measure"
	CardTrendDaily      = "measure_over_time_daily"
	CardTrendMonthly    = "measure_over_time_monthly"
	CardDistribution    = "measure_distribution"
	CardByCategory      = "measure_by_category"
	CardFactorDriver    = "factor_driver_signal"
	CardFactorSegments  = "factor_top_segments"
	CardFactorQuantiles = "factor_quantile_lift"
)

// AllCardIDs lists every card the selector can produce, in render order
var AllCardIDs = []string{
	CardTopDimension,
	CardTrendDaily,
	CardTrendMonthly,
	CardDistribution,
	CardByCategory,
	CardFactorDriver,
	CardFactorSegments,
	CardFactorQuantiles,
}

// IsKnownCard reports whether id names a card the selector can produce
func IsKnownCard(id string) bool {
	return contains(AllCardIDs, id)
}

// AllowList gates card production. A nil AllowList allows every card.
type AllowList map[string]bool

// NewAllowList builds an allow-list from card IDs; nil input stays nil
func NewAllowList(ids []string) AllowList {
	if ids == nil {
		return nil
	}
	a := make(AllowList, len(ids))
	for _, id := range ids {
		a[id] = true
	}
	return a
}

// Allows reports whether the card may be produced
func (a AllowList) Allows(id string) bool {
	if a == nil {
		return true
	}
	return a[id]
}
