package insight

import (
	"kpiscout/domain/core"
)

// Profile holds the structural health of a dataset after coercion
type Profile struct {
	Rows         int            `json:"rows"`
	Cols         int            `json:"cols"`
	Missing      map[string]int `json:"missing"`
	NumericCols  []string       `json:"numeric_cols"`
	DatetimeCols []string       `json:"datetime_cols"`
	DroppedCols  []string       `json:"dropped_cols,omitempty"`
}

// IsNumeric reports whether the column was coerced to numbers
func (p *Profile) IsNumeric(col string) bool {
	return contains(p.NumericCols, col)
}

// IsDatetime reports whether the column was coerced to timestamps
func (p *Profile) IsDatetime(col string) bool {
	return contains(p.DatetimeCols, col)
}

// MissingFraction returns missing cells over rows for the column
func (p *Profile) MissingFraction(col string) float64 {
	if p.Rows == 0 {
		return 0
	}
	return float64(p.Missing[col]) / float64(p.Rows)
}

// SemanticType classifies a column by its business meaning
type SemanticType string

const (
	SemanticNumeric     SemanticType = "numeric"
	SemanticDatetime    SemanticType = "datetime"
	SemanticCategorical SemanticType = "categorical"
	SemanticIdentifier  SemanticType = "identifier"
	SemanticText        SemanticType = "text"
)

// SemanticProfile is the per-column semantic classification
type SemanticProfile struct {
	Types       map[string]SemanticType `json:"types"`
	Numeric     []string                `json:"numeric"`
	Datetime    []string                `json:"datetime"`
	Categorical []string                `json:"categorical"`
	Identifier  []string                `json:"identifier"`
	Text        []string                `json:"text"`
}

// Of returns the semantic type of a column
func (s *SemanticProfile) Of(col string) SemanticType {
	return s.Types[col]
}

// Count returns how many columns carry the given type
func (s *SemanticProfile) Count(t SemanticType) int {
	switch t {
	case SemanticNumeric:
		return len(s.Numeric)
	case SemanticDatetime:
		return len(s.Datetime)
	case SemanticCategorical:
		return len(s.Categorical)
	case SemanticIdentifier:
		return len(s.Identifier)
	case SemanticText:
		return len(s.Text)
	}
	return 0
}

// FactorVariance is the explained-variance breakdown per factor
type FactorVariance struct {
	SSLoadings []float64 `json:"ss_loadings"`
	Proportion []float64 `json:"proportion"`
	Cumulative []float64 `json:"cumulative"`
}

// FactorResult is the outcome of latent driver discovery. When OK is false
// every collection is empty and Reason explains why.
type FactorResult struct {
	OK          bool                          `json:"ok"`
	Reason      string                        `json:"reason,omitempty"`
	NumericUsed []string                      `json:"numeric_used"`
	Factors     []string                      `json:"factors"`
	Loadings    map[string]map[string]float64 `json:"loadings"`
	Scores      [][]float64                   `json:"scores"`
	Variance    *FactorVariance               `json:"variance,omitempty"`
}

// FailedFactorResult builds the structured failure shape
func FailedFactorResult(reason string) FactorResult {
	return FactorResult{
		OK:          false,
		Reason:      reason,
		NumericUsed: []string{},
		Factors:     []string{},
		Loadings:    map[string]map[string]float64{},
		Scores:      [][]float64{},
	}
}

// Loading returns the loading of a column on a factor, if present
func (f *FactorResult) Loading(col, factor string) (float64, bool) {
	byFactor, ok := f.Loadings[col]
	if !ok {
		return 0, false
	}
	v, ok := byFactor[factor]
	return v, ok
}

// FactorIndex returns the score column index of a factor
func (f *FactorResult) FactorIndex(factor string) int {
	for i, name := range f.Factors {
		if name == factor {
			return i
		}
	}
	return -1
}

// FactorScores returns one factor's per-row scores
func (f *FactorResult) FactorScores(factor string) []float64 {
	idx := f.FactorIndex(factor)
	if idx < 0 {
		return nil
	}
	out := make([]float64, len(f.Scores))
	for i, row := range f.Scores {
		out[i] = row[idx]
	}
	return out
}

// SmartKPIFormula documents how a smart KPI was computed
type SmartKPIFormula struct {
	Columns       []string  `json:"columns"`
	RawWeights    []float64 `json:"raw_weights"`
	Weights       []float64 `json:"weights"`
	Normalization string    `json:"normalization"`
}

// SmartKPI is a factor collapsed into a single signal
type SmartKPI struct {
	Factor  string          `json:"factor"`
	Value   float64         `json:"value"`
	Spread  float64         `json:"spread"`
	Formula SmartKPIFormula `json:"formula"`
}

// ColumnSummary is the traditional descriptive KPI set for one numeric column
type ColumnSummary struct {
	Column string  `json:"column"`
	Count  int     `json:"count"`
	Sum    float64 `json:"sum"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Overrides are caller-supplied column choices for the selector
type Overrides struct {
	MeasureCol    string   `json:"measure_col,omitempty"`
	TimeCol       string   `json:"time_col,omitempty"`
	DimensionCols []string `json:"dimension_cols,omitempty"`
}

// IsEmpty reports whether no override was supplied
func (o Overrides) IsEmpty() bool {
	return o.MeasureCol == "" && o.TimeCol == "" && len(o.DimensionCols) == 0
}

// Selection is the shared context for every card builder
type Selection struct {
	Measure       string   `json:"measure,omitempty"`
	Time          string   `json:"time,omitempty"`
	Dimensions    []string `json:"dimensions"`
	MeasureReason string   `json:"measure_reason,omitempty"`
	TimeReason    string   `json:"time_reason,omitempty"`
	DimReasons    []string `json:"dimension_reasons,omitempty"`
}

// Chart hints understood by the renderers
const (
	ChartBar       = "bar"
	ChartLine      = "line"
	ChartTable     = "table"
	ChartBox       = "box"
	ChartHistogram = "histogram"
)

// Row is one ordered record of a card payload; key order lives in Card.Columns
type Row map[string]interface{}

// Card is one presentation unit
type Card struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Why     string   `json:"why"`
	Chart   string   `json:"chart"`
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Tile formats
const (
	FormatCurrency  = "currency"
	FormatCount     = "count"
	FormatPercent   = "percent"
	FormatDateRange = "date_range"
)

// KPITile is a single headline number
type KPITile struct {
	ID      string   `json:"id"`
	Label   string   `json:"label"`
	Value   *float64 `json:"value,omitempty"`
	Display string   `json:"display"`
	Format  string   `json:"format"`
	Source  string   `json:"source,omitempty"`
}

// RecommenderStatus records what the card recommender contributed
type RecommenderStatus struct {
	Loaded   bool     `json:"loaded"`
	Applied  bool     `json:"applied"`
	Allowed  []string `json:"allowed,omitempty"`
	Fallback string   `json:"fallback,omitempty"`
}

// Insights is the selector output
type Insights struct {
	Selection   Selection         `json:"selection"`
	Cards       []Card            `json:"cards"`
	Tiles       []KPITile         `json:"kpi_tiles"`
	Reason      string            `json:"reason,omitempty"`
	Recommender RecommenderStatus `json:"recommender"`
}

// Results is the aggregate persisted and exported per analysis run
type Results struct {
	RunID           core.RunID          `json:"run_id"`
	CreatedAt       core.Timestamp      `json:"created_at"`
	DatasetName     string              `json:"dataset_name"`
	Fingerprint     core.Hash           `json:"fingerprint"`
	Columns         []string            `json:"columns"`
	Profile         Profile             `json:"profile"`
	Semantic        SemanticProfile     `json:"semantic_profile"`
	TraditionalKPIs []ColumnSummary     `json:"traditional_kpis"`
	Factors         FactorResult        `json:"factor_result"`
	SmartKPIs       map[string]SmartKPI `json:"smart_kpis"`
	Insights        Insights            `json:"insights"`
	Roles           RoleMap             `json:"role_inference"`
	BusinessNames   map[string]string   `json:"business_names"`
	Overrides       Overrides           `json:"overrides"`
	Warnings        []string            `json:"warnings"`
	RuntimeMs       int64               `json:"runtime_ms"`
}

// RunSummary is the listing view of a stored run
type RunSummary struct {
	RunID       core.RunID     `json:"run_id"`
	DatasetName string         `json:"dataset_name"`
	Fingerprint string         `json:"fingerprint"`
	Rows        int            `json:"rows"`
	Cols        int            `json:"cols"`
	Cards       int            `json:"cards"`
	Warnings    int            `json:"warnings"`
	CreatedAt   core.Timestamp `json:"created_at"`
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
