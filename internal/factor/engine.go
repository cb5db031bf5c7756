package factor

import (
	"fmt"

	"go.uber.org/zap"

	"kpiscout/domain/insight"
	"kpiscout/domain/table"
	"kpiscout/ports"
)

// Engine discovers latent drivers among the numeric columns of a table
type Engine struct {
	config     Config
	capability ports.FactorCapability
	logger     *zap.Logger
}

// NewEngine creates an engine around an injected factor capability
func NewEngine(config Config, capability ports.FactorCapability, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{config: config, capability: capability, logger: logger}
}

// Discover selects a clean numeric subset, standardizes it and fits the factor
// model. Every failure comes back as OK=false with a reason and empty fields.
func (e *Engine) Discover(t *table.Table, nFactors int) (result insight.FactorResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("factor discovery panicked", zap.Any("panic", r))
			result = insight.FailedFactorResult(fmt.Sprintf("factor analysis failed: %v", r))
		}
	}()

	analyzer, ok := e.capability.Analyzer()
	if !ok {
		return insight.FailedFactorResult(e.capability.Reason())
	}
	if t == nil || t.RowCount() < 2 {
		return insight.FailedFactorResult("insufficient rows for factor analysis")
	}

	names := selectColumns(t, e.config)
	cols, err := filledColumns(t, names)
	if err != nil {
		return insight.FailedFactorResult(err.Error())
	}
	names, cols = dropCollinear(names, cols, e.config.DuplicateCorrelation)

	if len(names) < e.config.MinColumns {
		return insight.FailedFactorResult(fmt.Sprintf(
			"insufficient numeric columns for factor analysis: %d usable, need at least %d",
			len(names), e.config.MinColumns))
	}

	k := clampFactors(nFactors, len(names))
	fit, err := analyzer.Fit(standardize(cols), k)
	if err != nil {
		e.logger.Warn("factor fit failed", zap.Error(err))
		return insight.FailedFactorResult(fmt.Sprintf("factor analysis failed: %v", err))
	}

	factors := make([]string, k)
	for f := range factors {
		factors[f] = fmt.Sprintf("F%d", f+1)
	}
	loadings := make(map[string]map[string]float64, len(names))
	for i, name := range names {
		byFactor := make(map[string]float64, k)
		for f, factor := range factors {
			byFactor[factor] = fit.Loadings[i][f]
		}
		loadings[name] = byFactor
	}

	e.logger.Info("factor model fitted",
		zap.Strings("columns", names),
		zap.Int("factors", k),
		zap.Int("rows", len(fit.Scores)))

	return insight.FactorResult{
		OK:          true,
		NumericUsed: names,
		Factors:     factors,
		Loadings:    loadings,
		Scores:      fit.Scores,
		Variance:    fit.Variance,
	}
}

// clampFactors keeps the factor count within [1, columns-1]
func clampFactors(n, columns int) int {
	if n > columns-1 {
		n = columns - 1
	}
	if n < 1 {
		n = 1
	}
	return n
}
