package coercer

import (
	"math"
	"strconv"
	"strings"
	"time"

	"kpiscout/domain/table"
)

// TypeCoercer parses individual cells into numbers or timestamps
type TypeCoercer struct {
	config CoercionConfig
}

// CoercionConfig defines the coercion thresholds
type CoercionConfig struct {
	NumericThreshold   float64  `json:"numeric_threshold" yaml:"numeric_threshold"`     // share of rows that must parse as numbers
	TimestampThreshold float64  `json:"timestamp_threshold" yaml:"timestamp_threshold"` // share of rows that must parse as timestamps
	TimestampLayouts   []string `json:"timestamp_layouts" yaml:"timestamp_layouts"`
}

// DefaultTimestampLayouts are tried in order for string cells
var DefaultTimestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"2006.01.02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
	"1/2/2006",
	"02-01-2006",
	"02-Jan-2006",
	"2-Jan-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 January 2006",
	"2006-01",
}

// DefaultCoercionConfig returns the 70% acceptance thresholds
func DefaultCoercionConfig() CoercionConfig {
	return CoercionConfig{
		NumericThreshold:   0.70,
		TimestampThreshold: 0.70,
		TimestampLayouts:   DefaultTimestampLayouts,
	}
}

// NewTypeCoercer creates a coercer with the given config
func NewTypeCoercer(config CoercionConfig) *TypeCoercer {
	if len(config.TimestampLayouts) == 0 {
		config.TimestampLayouts = DefaultTimestampLayouts
	}
	return &TypeCoercer{config: config}
}

// Config returns the active thresholds
func (c *TypeCoercer) Config() CoercionConfig {
	return c.config
}

// ParseNumeric converts a cell to a float64. Booleans stay categorical.
// Handles parentheses for negatives, currency symbols, percent signs and
// European decimal commas.
func (c *TypeCoercer) ParseNumeric(v table.Value) (float64, bool) {
	switch v.Type {
	case table.ValueTypeNumeric:
		return v.Num, true
	case table.ValueTypeString:
		return c.parseNumericString(v.Str)
	}
	return 0, false
}

func (c *TypeCoercer) parseNumericString(strVal string) (float64, bool) {
	cleanVal := strings.TrimSpace(strVal)
	if cleanVal == "" {
		return 0, false
	}

	// (123) -> -123
	isNegative := false
	if strings.HasPrefix(cleanVal, "(") && strings.HasSuffix(cleanVal, ")") {
		cleanVal = strings.TrimSuffix(strings.TrimPrefix(cleanVal, "("), ")")
		isNegative = true
	}

	for _, symbol := range []string{"$", "€", "£", "¥", "₹", "USD", "EUR", "GBP", "JPY", "LKR", "Rs."} {
		cleanVal = strings.ReplaceAll(cleanVal, symbol, "")
	}
	cleanVal = strings.TrimSpace(strings.ReplaceAll(cleanVal, "%", ""))
	if cleanVal == "" {
		return 0, false
	}

	hasComma := strings.Contains(cleanVal, ",")
	hasPeriod := strings.Contains(cleanVal, ".")
	hasSpace := strings.Contains(cleanVal, " ")

	if hasComma && (hasPeriod || hasSpace) {
		commaIdx := strings.LastIndex(cleanVal, ",")
		periodIdx := strings.LastIndex(cleanVal, ".")
		if commaIdx > periodIdx {
			// 1.234,56 or 1 234,56
			cleanVal = strings.ReplaceAll(cleanVal, ".", "")
			cleanVal = strings.ReplaceAll(cleanVal, " ", "")
			cleanVal = strings.ReplaceAll(cleanVal, ",", ".")
		} else {
			// 1,234.56
			cleanVal = strings.ReplaceAll(cleanVal, ",", "")
			cleanVal = strings.ReplaceAll(cleanVal, " ", "")
		}
	} else if hasComma {
		afterComma := cleanVal[strings.LastIndex(cleanVal, ",")+1:]
		if strings.Count(cleanVal, ",") == 1 && len(afterComma) != 3 {
			cleanVal = strings.ReplaceAll(cleanVal, ",", ".")
		} else {
			cleanVal = strings.ReplaceAll(cleanVal, ",", "")
		}
	} else {
		cleanVal = strings.ReplaceAll(cleanVal, " ", "")
	}

	if isNegative {
		cleanVal = "-" + cleanVal
	}

	val, err := strconv.ParseFloat(cleanVal, 64)
	if err != nil || math.IsInf(val, 0) || math.IsNaN(val) {
		return 0, false
	}
	return val, true
}

// ParseTimestamp converts a cell to a time. Bare numbers are never read as
// dates; otherwise amount columns would be swallowed as epoch offsets.
func (c *TypeCoercer) ParseTimestamp(v table.Value) (time.Time, bool) {
	switch v.Type {
	case table.ValueTypeTimestamp:
		return v.Time, true
	case table.ValueTypeString:
		return c.parseTimestampString(v.Str)
	}
	return time.Time{}, false
}

func (c *TypeCoercer) parseTimestampString(strVal string) (time.Time, bool) {
	s := strings.TrimSpace(strVal)
	if s == "" {
		return time.Time{}, false
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Time{}, false
	}
	for _, layout := range c.config.TimestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// TypeAnalysis is the parse-rate breakdown of one column
type TypeAnalysis struct {
	TotalCount     int     `json:"total_count"`
	NumericCount   int     `json:"numeric_count"`
	TimestampCount int     `json:"timestamp_count"`
	NumericRatio   float64 `json:"numeric_ratio"`
	TimestampRatio float64 `json:"timestamp_ratio"`
}

// AnalyzeTypeDistribution counts how many cells parse as each type. Ratios
// are taken over all rows, missing cells included.
func (c *TypeCoercer) AnalyzeTypeDistribution(values []table.Value) TypeAnalysis {
	analysis := TypeAnalysis{TotalCount: len(values)}
	if len(values) == 0 {
		return analysis
	}

	for _, v := range values {
		if v.IsMissing() {
			continue
		}
		if _, ok := c.ParseNumeric(v); ok {
			analysis.NumericCount++
		}
		if _, ok := c.ParseTimestamp(v); ok {
			analysis.TimestampCount++
		}
	}

	total := float64(analysis.TotalCount)
	analysis.NumericRatio = float64(analysis.NumericCount) / total
	analysis.TimestampRatio = float64(analysis.TimestampCount) / total
	return analysis
}

// AcceptsTimestamp reports whether the column clears the timestamp threshold
func (c *TypeCoercer) AcceptsTimestamp(a TypeAnalysis) bool {
	return a.TotalCount > 0 && a.TimestampCount > 0 && a.TimestampRatio >= c.config.TimestampThreshold
}

// AcceptsNumeric reports whether the column clears the numeric threshold
func (c *TypeCoercer) AcceptsNumeric(a TypeAnalysis) bool {
	return a.TotalCount > 0 && a.NumericCount > 0 && a.NumericRatio >= c.config.NumericThreshold
}

// CoerceNumeric converts every cell; unparseable cells become missing
func (c *TypeCoercer) CoerceNumeric(values []table.Value) []table.Value {
	out := make([]table.Value, len(values))
	for i, v := range values {
		if f, ok := c.ParseNumeric(v); ok {
			out[i] = table.NewNumericValue(f)
		} else {
			out[i] = table.NewMissingValue()
		}
	}
	return out
}

// CoerceTimestamp converts every cell; unparseable cells become missing
func (c *TypeCoercer) CoerceTimestamp(values []table.Value) []table.Value {
	out := make([]table.Value, len(values))
	for i, v := range values {
		if t, ok := c.ParseTimestamp(v); ok {
			out[i] = table.NewTimestampValue(t)
		} else {
			out[i] = table.NewMissingValue()
		}
	}
	return out
}
