package insight

// Config holds the selection and card-building constants
type Config struct {
	MaxMeasureMissing       float64 `yaml:"max_measure_missing"`
	MaxDimensions           int     `yaml:"max_dimensions"`
	TargetCardinality       float64 `yaml:"target_cardinality"`
	MinDimensionCardinality int     `yaml:"min_dimension_cardinality"`
	MaxDimensionCardinality int     `yaml:"max_dimension_cardinality"`
	TopDimensionLimit       int     `yaml:"top_dimension_limit"`
	ByCategoryLimit         int     `yaml:"by_category_limit"`
	DriverColumns           int     `yaml:"driver_columns"`
	SegmentsPerDimension    int     `yaml:"segments_per_dimension"`
	SegmentsOverall         int     `yaml:"segments_overall"`
	MinCorrelationPairs     int     `yaml:"min_correlation_pairs"`
	MinQuantilePairs        int     `yaml:"min_quantile_pairs"`
	QuantileBins            int     `yaml:"quantile_bins"`
}

// DefaultConfig returns the stock selector constants
func DefaultConfig() Config {
	return Config{
		MaxMeasureMissing:       0.80,
		MaxDimensions:           3,
		TargetCardinality:       25,
		MinDimensionCardinality: 2,
		MaxDimensionCardinality: 2000,
		TopDimensionLimit:       10,
		ByCategoryLimit:         12,
		DriverColumns:           5,
		SegmentsPerDimension:    8,
		SegmentsOverall:         15,
		MinCorrelationPairs:     5,
		MinQuantilePairs:        20,
		QuantileBins:            5,
	}
}
