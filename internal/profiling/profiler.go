package profiling

import (
	"fmt"

	"go.uber.org/zap"

	"kpiscout/adapters/datareadiness/coercer"
	"kpiscout/domain/insight"
	"kpiscout/domain/table"
)

// Config holds the profiling thresholds
type Config struct {
	// ParseThreshold is the share of rows that must parse for a column to be coerced
	ParseThreshold float64 `yaml:"parse_threshold"`

	IdentifierNameUniqueRatio float64 `yaml:"identifier_name_unique_ratio"`
	IdentifierUniqueRatio     float64 `yaml:"identifier_unique_ratio"`
	IdentifierMinValues       int     `yaml:"identifier_min_values"`
	IdentifierMaxLength       float64 `yaml:"identifier_max_length"`

	TextMeanLength float64 `yaml:"text_mean_length"`
	TextMeanWords  float64 `yaml:"text_mean_words"`
}

// DefaultConfig returns the stock profiling thresholds
func DefaultConfig() Config {
	return Config{
		ParseThreshold:            0.70,
		IdentifierNameUniqueRatio: 0.5,
		IdentifierUniqueRatio:     0.98,
		IdentifierMinValues:       20,
		IdentifierMaxLength:       40,
		TextMeanLength:            50,
		TextMeanWords:             6,
	}
}

// Profiler coerces raw columns and reports dataset health
type Profiler struct {
	config  Config
	coercer *coercer.TypeCoercer
	logger  *zap.Logger
}

// NewProfiler creates a profiler; a nil logger is replaced with a no-op one
func NewProfiler(config Config, logger *zap.Logger) *Profiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	cc := coercer.DefaultCoercionConfig()
	cc.NumericThreshold = config.ParseThreshold
	cc.TimestampThreshold = config.ParseThreshold
	return &Profiler{
		config:  config,
		coercer: coercer.NewTypeCoercer(cc),
		logger:  logger,
	}
}

// Profile drops all-empty columns, coerces datetime and numeric columns in
// place and returns the structural profile. Datetime parsing is tried first;
// a column is converted only when the parsed share reaches the threshold.
func (p *Profiler) Profile(t *table.Table) (*insight.Profile, error) {
	if t == nil {
		return nil, fmt.Errorf("profile: nil table")
	}

	var dropped []string
	for _, c := range t.Columns {
		if c.AllMissing() {
			dropped = append(dropped, c.Name)
		}
	}
	t.Drop(dropped...)
	if len(dropped) > 0 {
		p.logger.Debug("dropped empty columns", zap.Strings("columns", dropped))
	}

	for _, c := range t.Columns {
		p.coerceColumn(c)
	}

	profile := &insight.Profile{
		Rows:         t.RowCount(),
		Cols:         len(t.Columns),
		Missing:      make(map[string]int, len(t.Columns)),
		NumericCols:  []string{},
		DatetimeCols: []string{},
		DroppedCols:  dropped,
	}
	for _, c := range t.Columns {
		profile.Missing[c.Name] = c.MissingCount()
		switch c.Type() {
		case table.ValueTypeNumeric:
			profile.NumericCols = append(profile.NumericCols, c.Name)
		case table.ValueTypeTimestamp:
			profile.DatetimeCols = append(profile.DatetimeCols, c.Name)
		}
	}

	p.logger.Debug("profiled table",
		zap.String("table", t.Name),
		zap.Int("rows", profile.Rows),
		zap.Int("cols", profile.Cols),
		zap.Int("numeric", len(profile.NumericCols)),
		zap.Int("datetime", len(profile.DatetimeCols)))
	return profile, nil
}

// coerceColumn replaces the column values only after a full successful pass
func (p *Profiler) coerceColumn(c *table.Column) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("column coercion failed, leaving column untouched",
				zap.String("column", c.Name), zap.Any("panic", r))
		}
	}()

	analysis := p.coercer.AnalyzeTypeDistribution(c.Values)
	var coerced []table.Value
	switch {
	case p.coercer.AcceptsTimestamp(analysis):
		coerced = p.coercer.CoerceTimestamp(c.Values)
	case p.coercer.AcceptsNumeric(analysis):
		coerced = p.coercer.CoerceNumeric(c.Values)
	default:
		return
	}
	c.Values = coerced
}
