package ports

import (
	"kpiscout/domain/insight"
)

// CardRecommender predicts which cards are worth surfacing for a dataset
type CardRecommender interface {
	// Loaded reports whether a model artifact is available
	Loaded() bool

	// Recommend returns card IDs to show, or nil when every card should be shown
	Recommend(features insight.FeatureRecord) ([]string, error)
}
