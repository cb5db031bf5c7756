package recommender

import (
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	"kpiscout/domain/insight"
	"kpiscout/internal/errors"
)

// Config holds the decision rule applied to model probabilities
type Config struct {
	Threshold float64
	TopN      int
}

// DefaultConfig returns the stock decision rule
func DefaultConfig() Config {
	return Config{Threshold: 0.35, TopN: 10}
}

// LinearRecommender is a loaded-or-absent handle around a linear card model
type LinearRecommender struct {
	artifact *Artifact
	config   Config
	logger   *zap.Logger
}

// Prediction is one card probability
type Prediction struct {
	Card        string  `json:"card"`
	Probability float64 `json:"probability"`
}

// NewUnloaded returns a handle that recommends nothing
func NewUnloaded(config Config, logger *zap.Logger) *LinearRecommender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LinearRecommender{config: config, logger: logger}
}

// Load reads the artifact at path. An empty path yields an unloaded handle.
// A bad artifact also yields an unloaded handle, together with the error, so
// callers can log and carry on.
func Load(path string, config Config, logger *zap.Logger) (*LinearRecommender, error) {
	r := NewUnloaded(config, logger)
	if path == "" {
		return r, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return r, errors.Wrapf(err, "read recommender model %s", path)
	}
	artifact, err := ParseArtifact(raw)
	if err != nil {
		return r, errors.WithCode(errors.CodeConfigInvalid, err)
	}
	r.use(artifact)
	r.logger.Info("card recommender loaded",
		zap.String("path", path),
		zap.String("version", artifact.Version),
		zap.Int("cards", len(artifact.Cards)),
		zap.Float64("threshold", r.config.Threshold),
		zap.Int("top_n", r.config.TopN))
	return r, nil
}

// FromArtifact wraps an already parsed artifact
func FromArtifact(artifact *Artifact, config Config, logger *zap.Logger) *LinearRecommender {
	r := NewUnloaded(config, logger)
	r.use(artifact)
	return r
}

func (r *LinearRecommender) use(artifact *Artifact) {
	r.artifact = artifact
	if r.config.Threshold <= 0 {
		r.config.Threshold = artifact.Threshold
	}
	if r.config.Threshold <= 0 {
		r.config.Threshold = DefaultConfig().Threshold
	}
	if r.config.TopN <= 0 {
		r.config.TopN = artifact.TopN
	}
	if r.config.TopN <= 0 {
		r.config.TopN = DefaultConfig().TopN
	}
}

// Loaded reports whether a model artifact is available
func (r *LinearRecommender) Loaded() bool {
	return r != nil && r.artifact != nil
}

// Predict scores every card the model knows, highest probability first
func (r *LinearRecommender) Predict(features insight.FeatureRecord) []Prediction {
	if !r.Loaded() {
		return nil
	}
	numeric := features.Numeric()
	tokens := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(features.ColumnsText)) {
		tokens[tok] = true
	}

	out := make([]Prediction, 0, len(r.artifact.Cards))
	for _, card := range insight.AllCardIDs {
		w, ok := r.artifact.Cards[card]
		if !ok {
			continue
		}
		out = append(out, Prediction{Card: card, Probability: w.score(numeric, tokens, r.artifact.Scaling)})
	}
	// stable keeps render order among equal probabilities
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Probability > out[j].Probability
	})
	return out
}

// Recommend returns the cards whose probability reaches the threshold, at
// most TopN of them. An unloaded handle returns nil.
func (r *LinearRecommender) Recommend(features insight.FeatureRecord) ([]string, error) {
	if !r.Loaded() {
		return nil, nil
	}
	var ids []string
	for _, p := range r.Predict(features) {
		if p.Probability < r.config.Threshold {
			break
		}
		ids = append(ids, p.Card)
		if len(ids) == r.config.TopN {
			break
		}
	}
	r.logger.Debug("cards recommended", zap.Strings("cards", ids))
	return ids, nil
}
