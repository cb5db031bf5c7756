package app

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	domainInsight "kpiscout/domain/insight"
	"kpiscout/domain/table"
	"kpiscout/internal/config"
	"kpiscout/internal/factor"
	"kpiscout/internal/testkit"
	"kpiscout/ports"
)

type mockRecommender struct {
	mock.Mock
}

func (m *mockRecommender) Loaded() bool {
	return m.Called().Bool(0)
}

func (m *mockRecommender) Recommend(features domainInsight.FeatureRecord) ([]string, error) {
	args := m.Called(features)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

func salesTable(t *testing.T) *table.Table {
	t.Helper()
	tbl, err := testkit.NewSalesGenerator(testkit.DefaultSalesConfig()).Table("sales.csv")
	require.NoError(t, err)
	return tbl
}

func newService(rec ports.CardRecommender) *AnalysisService {
	h := config.DefaultHeuristics()
	return NewAnalysisService(h, factor.NewCapability(h.Factor), rec, 3, nil)
}

func cardIDs(r *domainInsight.Results) []string {
	ids := make([]string, len(r.Insights.Cards))
	for i, c := range r.Insights.Cards {
		ids[i] = c.ID
	}
	return ids
}

func TestAnalyzeSalesDataset(t *testing.T) {
	tbl := salesTable(t)
	results, err := newService(nil).Analyze(context.Background(), tbl, Options{})
	require.NoError(t, err)

	assert.NotEmpty(t, results.RunID)
	assert.False(t, results.Fingerprint.IsEmpty())
	assert.Equal(t, testkit.SalesHeaders, results.Columns)
	assert.Equal(t, 400, results.Profile.Rows)
	assert.Contains(t, results.Profile.DatetimeCols, "order_date")

	revenue, ok := results.Roles.Column(domainInsight.RoleRevenue)
	require.True(t, ok)
	assert.Equal(t, "sales_amount", revenue)
	date, _ := results.Roles.Column(domainInsight.RoleDate)
	assert.Equal(t, "order_date", date)
	txn, _ := results.Roles.Column(domainInsight.RoleTransactionID)
	assert.Equal(t, "order_id", txn)

	require.True(t, results.Factors.OK, results.Factors.Reason)
	assert.Len(t, results.Factors.Factors, 3)
	assert.Contains(t, results.SmartKPIs, "smart_F1")

	assert.Equal(t, "sales_amount", results.Insights.Selection.Measure)
	assert.Equal(t, "order_date", results.Insights.Selection.Time)
	ids := cardIDs(results)
	assert.Contains(t, ids, domainInsight.CardTopDimension)
	assert.Contains(t, ids, domainInsight.CardTrendDaily)
	assert.Contains(t, ids, domainInsight.CardDistribution)
	assert.Contains(t, ids, domainInsight.CardFactorDriver)

	tiles := map[string]bool{}
	for _, tile := range results.Insights.Tiles {
		tiles[tile.ID] = true
	}
	assert.True(t, tiles["total_revenue"])
	assert.True(t, tiles["date_range"])

	assert.NotEmpty(t, results.TraditionalKPIs)
	assert.Equal(t, "Revenue", results.BusinessNames["sales_amount"])
	assert.False(t, results.Insights.Recommender.Loaded)
	assert.NotEmpty(t, results.Insights.Recommender.Fallback)

	// the caller's table is never coerced
	orderDate, _ := tbl.Column("order_date")
	assert.Equal(t, table.ValueTypeString, orderDate.Type())
}

func TestAnalyzeLogsShortFingerprint(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := config.DefaultHeuristics()
	svc := NewAnalysisService(h, factor.NewCapability(h.Factor), nil, 3, zap.New(core))

	results, err := svc.Analyze(context.Background(), salesTable(t), Options{})
	require.NoError(t, err)

	entries := logs.FilterMessage("analysis complete").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, results.Fingerprint.Short(), fields["fingerprint"])
	assert.Len(t, fields["fingerprint"], 12)
	assert.Equal(t, results.RunID.String(), fields["run_id"])
}

func TestAnalyzeNilTable(t *testing.T) {
	_, err := newService(nil).Analyze(context.Background(), nil, Options{})
	assert.Error(t, err)
}

func TestAnalyzeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newService(nil).Analyze(ctx, salesTable(t), Options{})
	assert.Error(t, err)
}

func TestAnalyzeUnknownOverride(t *testing.T) {
	results, err := newService(nil).Analyze(context.Background(), salesTable(t), Options{MeasureCol: "profit"})
	require.NoError(t, err)

	count := 0
	for _, w := range results.Warnings {
		if strings.Contains(w, `"profit"`) {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.Equal(t, "sales_amount", results.Insights.Selection.Measure)
	assert.Equal(t, "profit", results.Overrides.MeasureCol)
}

func TestAnalyzeRecommenderAllowList(t *testing.T) {
	rec := new(mockRecommender)
	rec.On("Loaded").Return(true)
	rec.On("Recommend", mock.AnythingOfType("insight.FeatureRecord")).
		Return([]string{domainInsight.CardDistribution, "not_a_card"}, nil)

	results, err := newService(rec).Analyze(context.Background(), salesTable(t), Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{domainInsight.CardDistribution}, cardIDs(results))
	status := results.Insights.Recommender
	assert.True(t, status.Loaded)
	assert.True(t, status.Applied)
	assert.Equal(t, []string{domainInsight.CardDistribution}, status.Allowed)
	assert.NotEmpty(t, results.Insights.Tiles, "tiles ignore the allow-list")
	rec.AssertExpectations(t)
}

func TestAnalyzeRecommenderFallbacks(t *testing.T) {
	baseline, err := newService(nil).Analyze(context.Background(), salesTable(t), Options{})
	require.NoError(t, err)

	cases := map[string][]interface{}{
		"error": {nil, stderrors.New("model exploded")},
		"empty": {[]string{}, nil},
	}
	for name, ret := range cases {
		t.Run(name, func(t *testing.T) {
			rec := new(mockRecommender)
			rec.On("Loaded").Return(true)
			rec.On("Recommend", mock.Anything).Return(ret...)

			results, err := newService(rec).Analyze(context.Background(), salesTable(t), Options{})
			require.NoError(t, err)
			assert.Equal(t, cardIDs(baseline), cardIDs(results))
			assert.False(t, results.Insights.Recommender.Applied)
			assert.NotEmpty(t, results.Insights.Recommender.Fallback)
		})
	}
}

func TestAnalyzeAbsentFactorCapability(t *testing.T) {
	h := config.DefaultHeuristics()
	svc := NewAnalysisService(h, ports.AbsentFactorAnalyzer("factor analysis disabled"), nil, 3, nil)

	results, err := svc.Analyze(context.Background(), salesTable(t), Options{})
	require.NoError(t, err)

	assert.False(t, results.Factors.OK)
	assert.Equal(t, "factor analysis disabled", results.Factors.Reason)
	assert.Empty(t, results.SmartKPIs)
	ids := cardIDs(results)
	assert.NotContains(t, ids, domainInsight.CardFactorDriver)
	assert.Contains(t, ids, domainInsight.CardDistribution)
}

func TestAnalyzeWithoutMeasure(t *testing.T) {
	tbl, err := table.New("labels", []string{"city", "tier"}, [][]interface{}{
		{"Colombo", "gold"}, {"Kandy", "silver"}, {"Galle", "gold"},
	})
	require.NoError(t, err)

	results, err := newService(nil).Analyze(context.Background(), tbl, Options{})
	require.NoError(t, err)
	assert.Empty(t, results.Insights.Cards)
	assert.NotEmpty(t, results.Insights.Reason)
	assert.False(t, results.Factors.OK)
	assert.Empty(t, results.TraditionalKPIs)
}

func TestStageRunnerRecovers(t *testing.T) {
	var warnings []string
	runner := NewStageRunner(nil)

	ok := runner.Run("exploding", &warnings, func() { panic("boom") })
	assert.False(t, ok)
	require.Len(t, warnings, 1)
	assert.Equal(t, "exploding failed: boom", warnings[0])

	assert.True(t, runner.Run("quiet", &warnings, func() {}))
	assert.Len(t, warnings, 1)
}
