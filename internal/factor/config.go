package factor

// Config holds column selection and fitting parameters
type Config struct {
	MaxColumns           int     `yaml:"max_columns"`
	MaxMissingFraction   float64 `yaml:"max_missing_fraction"`
	SurrogateMinRows     int     `yaml:"surrogate_min_rows"`
	SurrogateUniqueness  float64 `yaml:"surrogate_uniqueness"`
	DuplicateCorrelation float64 `yaml:"duplicate_correlation"`
	MinColumns           int     `yaml:"min_columns"`
	MaxIterations        int     `yaml:"max_iterations"`
	Tolerance            float64 `yaml:"tolerance"`
}

// DefaultConfig returns the stock engine parameters
func DefaultConfig() Config {
	return Config{
		MaxColumns:           15,
		MaxMissingFraction:   0.30,
		SurrogateMinRows:     50,
		SurrogateUniqueness:  0.98,
		DuplicateCorrelation: 0.999,
		MinColumns:           3,
		MaxIterations:        100,
		Tolerance:            1e-6,
	}
}
