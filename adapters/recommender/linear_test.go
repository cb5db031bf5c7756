package recommender

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kpiscout/domain/insight"
	"kpiscout/internal/errors"
)

func salesFeatures() insight.FeatureRecord {
	return insight.FeatureRecord{
		ColumnsText:     "order id order date product name sales amount",
		Rows:            1200,
		Cols:            4,
		NumericCols:     5,
		DatetimeCols:    1,
		CategoricalCols: 2,
		IdentifierCols:  1,
		KwMoney:         1,
		KwTime:          1,
		KwProduct:       1,
	}
}

func TestLoadEmptyPathIsUnloaded(t *testing.T) {
	r, err := Load("", DefaultConfig(), nil)
	require.NoError(t, err)
	assert.False(t, r.Loaded())

	ids, err := r.Recommend(salesFeatures())
	assert.NoError(t, err)
	assert.Nil(t, ids)
}

func TestLoadBadArtifact(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"garbage.json":      "{not json",
		"empty.json":        `{"cards": {}}`,
		"unknown_card.json": `{"cards": {"pie_chart": {"bias": 1}}}`,
		"unknown_feat.json": `{"cards": {"measure_distribution": {"weights": {"n_pixels": 1}}}}`,
	}
	for name, body := range cases {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

		r, err := Load(path, DefaultConfig(), nil)
		assert.Error(t, err, name)
		assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err), name)
		assert.False(t, r.Loaded(), name)
	}

	r, err := Load(filepath.Join(dir, "missing.json"), DefaultConfig(), nil)
	assert.Error(t, err)
	assert.False(t, r.Loaded())
}

func TestRecommendThresholdAndOrder(t *testing.T) {
	r, err := Load(filepath.Join("testdata", "card_model.json"), DefaultConfig(), nil)
	require.NoError(t, err)
	require.True(t, r.Loaded())

	preds := r.Predict(salesFeatures())
	require.Len(t, preds, 5)
	for i := 1; i < len(preds); i++ {
		assert.GreaterOrEqual(t, preds[i-1].Probability, preds[i].Probability)
	}

	// distribution: sigmoid(0.4 + 0.8*0) = 0.599
	// daily: sigmoid(-2 + 2.5 + 0.5) = 0.731
	// monthly: sigmoid(-2.5 + 2) = 0.378, no "month" token
	// top dimension: sigmoid(-1 + 1.2 + 0.5) = 0.668
	// factor driver: sigmoid(-3 + 0) = 0.047
	ids, err := r.Recommend(salesFeatures())
	require.NoError(t, err)
	assert.Equal(t, []string{
		insight.CardTrendDaily,
		insight.CardTopDimension,
		insight.CardDistribution,
		insight.CardTrendMonthly,
	}, ids)
}

func TestRecommendTopNAndTokens(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("testdata", "card_model.json"))
	require.NoError(t, err)
	artifact, err := ParseArtifact(raw)
	require.NoError(t, err)

	features := salesFeatures()
	features.ColumnsText += " month"

	r := FromArtifact(artifact, Config{Threshold: 0.5, TopN: 2}, nil)
	ids, err := r.Recommend(features)
	require.NoError(t, err)
	// monthly jumps to sigmoid(1.0) = 0.731 via the token weight; four cards
	// clear 0.5 but only the top two are kept
	assert.Equal(t, []string{insight.CardTrendDaily, insight.CardTrendMonthly}, ids)
}

func TestConfigFallsBackToArtifactRule(t *testing.T) {
	artifact := &Artifact{
		Cards:     map[string]CardWeights{insight.CardDistribution: {Bias: 0}},
		Threshold: 0.6,
		TopN:      3,
	}
	r := FromArtifact(artifact, Config{}, nil)
	ids, err := r.Recommend(insight.FeatureRecord{})
	require.NoError(t, err)
	assert.Empty(t, ids, "sigmoid(0) = 0.5 is under the artifact threshold")
}
