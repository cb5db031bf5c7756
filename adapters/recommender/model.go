package recommender

import (
	"encoding/json"
	"fmt"
	"math"

	"kpiscout/domain/insight"
)

// Artifact is the on-disk form of a trained linear card model: one
// independent logistic output per card
type Artifact struct {
	Version string                 `json:"version"`
	Cards   map[string]CardWeights `json:"cards"`
	// Scaling standardizes numeric features before weighting
	Scaling map[string]Scale `json:"scaling,omitempty"`
	// Threshold and TopN are used only when the runtime config leaves them unset
	Threshold float64 `json:"threshold,omitempty"`
	TopN      int     `json:"top_n,omitempty"`
}

// CardWeights scores one card
type CardWeights struct {
	Bias    float64            `json:"bias"`
	Weights map[string]float64 `json:"weights"`
	// Tokens weights words of the columns_text feature
	Tokens map[string]float64 `json:"tokens,omitempty"`
}

// Scale is a feature's training mean and standard deviation
type Scale struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// ParseArtifact decodes and validates a model artifact
func ParseArtifact(raw []byte) (*Artifact, error) {
	var a Artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("decode recommender artifact: %w", err)
	}
	if len(a.Cards) == 0 {
		return nil, fmt.Errorf("recommender artifact has no cards")
	}
	numeric := insight.FeatureRecord{}.Numeric()
	for card, w := range a.Cards {
		if !insight.IsKnownCard(card) {
			return nil, fmt.Errorf("recommender artifact scores unknown card %q", card)
		}
		for feature := range w.Weights {
			if _, ok := numeric[feature]; !ok {
				return nil, fmt.Errorf("card %q weights unknown feature %q", card, feature)
			}
		}
	}
	return &a, nil
}

// score returns the card probability for a feature vector
func (w CardWeights) score(features map[string]float64, tokens map[string]bool, scaling map[string]Scale) float64 {
	z := w.Bias
	for name, weight := range w.Weights {
		x := features[name]
		if s, ok := scaling[name]; ok && s.Std > 0 {
			x = (x - s.Mean) / s.Std
		}
		z += weight * x
	}
	for tok, weight := range w.Tokens {
		if tokens[tok] {
			z += weight
		}
	}
	return sigmoid(z)
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
