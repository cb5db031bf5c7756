package ports

import (
	"kpiscout/domain/insight"
)

// FactorFit is the raw output of a factor model over a standardized matrix
type FactorFit struct {
	Loadings [][]float64 // columns x factors
	Scores   [][]float64 // rows x factors
	Variance *insight.FactorVariance
}

// FactorAnalyzer fits an exploratory factor model with rotation.
// data is row-major, already standardized to zero mean and unit variance.
type FactorAnalyzer interface {
	Fit(data [][]float64, nFactors int) (*FactorFit, error)
}

// FactorCapability is either a present analyzer or the reason none is available
type FactorCapability struct {
	analyzer FactorAnalyzer
	reason   string
}

// PresentFactorAnalyzer wraps an available analyzer
func PresentFactorAnalyzer(a FactorAnalyzer) FactorCapability {
	if a == nil {
		return AbsentFactorAnalyzer("factor analyzer is nil")
	}
	return FactorCapability{analyzer: a}
}

// AbsentFactorAnalyzer records why factor analysis cannot run
func AbsentFactorAnalyzer(reason string) FactorCapability {
	return FactorCapability{reason: reason}
}

// Analyzer returns the analyzer and whether it is present
func (c FactorCapability) Analyzer() (FactorAnalyzer, bool) {
	return c.analyzer, c.analyzer != nil
}

// Reason explains an absent capability
func (c FactorCapability) Reason() string {
	if c.analyzer == nil && c.reason == "" {
		return "factor analysis capability not configured"
	}
	return c.reason
}
