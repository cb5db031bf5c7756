package profiling

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kpiscout/domain/insight"
	"kpiscout/domain/table"
)

func newProfiler() *Profiler {
	return NewProfiler(DefaultConfig(), zap.NewNop())
}

// dateColumnRows builds 100 rows where the first `parsable` cells are dates
func dateColumnRows(parsable int) [][]interface{} {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := make([][]interface{}, 100)
	for i := range rows {
		cell := "unknown"
		if i < parsable {
			cell = start.AddDate(0, 0, i).Format("2006-01-02")
		}
		rows[i] = []interface{}{cell, float64(i)}
	}
	return rows
}

func TestProfile_DatetimeThresholdBoundary(t *testing.T) {
	tests := []struct {
		name     string
		parsable int
		want     bool
	}{
		{"exactly seventy percent", 70, true},
		{"sixty nine percent", 69, false},
		{"all parsable", 100, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := table.New("d", []string{"when", "v"}, dateColumnRows(tt.parsable))
			require.NoError(t, err)

			profile, err := newProfiler().Profile(tbl)
			require.NoError(t, err)
			assert.Equal(t, tt.want, profile.IsDatetime("when"))

			col, _ := tbl.Column("when")
			if tt.want {
				assert.Equal(t, 100-tt.parsable, profile.Missing["when"])
			} else {
				assert.Equal(t, table.ValueTypeString, col.Type(), "below threshold stays text")
				assert.Equal(t, 0, profile.Missing["when"])
			}
		})
	}
}

func TestProfile_DropsEmptyColumns(t *testing.T) {
	rows := [][]interface{}{
		{"1", nil, "a"},
		{"2", "", "b"},
		{"3", nil, "c"},
	}
	tbl, err := table.New("e", []string{"n", "empty", "s"}, rows)
	require.NoError(t, err)

	profile, err := newProfiler().Profile(tbl)
	require.NoError(t, err)

	assert.Equal(t, 2, profile.Cols)
	assert.Equal(t, 3, profile.Rows)
	assert.Equal(t, []string{"empty"}, profile.DroppedCols)
	assert.NotContains(t, profile.Missing, "empty")
	assert.False(t, tbl.Has("empty"))
	assert.Equal(t, []string{"n"}, profile.NumericCols)
}

func TestProfile_MostlyNumericTextBelowThresholdStaysText(t *testing.T) {
	rows := make([][]interface{}, 10)
	for i := range rows {
		cell := fmt.Sprintf("%d", i)
		if i >= 6 {
			cell = "pending"
		}
		rows[i] = []interface{}{cell}
	}
	tbl, err := table.New("m", []string{"amount"}, rows)
	require.NoError(t, err)

	profile, err := newProfiler().Profile(tbl)
	require.NoError(t, err)
	assert.Empty(t, profile.NumericCols)
	assert.Equal(t, "pending", tbl.Columns[0].Values[9].Str)
}

func TestProfile_NilTable(t *testing.T) {
	_, err := newProfiler().Profile(nil)
	assert.Error(t, err)
}

func TestSemantic(t *testing.T) {
	n := 30
	rows := make([][]interface{}, n)
	for i := 0; i < n; i++ {
		rows[i] = []interface{}{
			fmt.Sprintf("ORD-%04d", i),
			float64(100 + i),
			[]string{"Latte", "Mocha", "Tea"}[i%3],
			"The customer said the coffee was lovely and they would come back again soon",
			fmt.Sprintf("2024-02-%02d", i%28+1),
			i + 1,
		}
	}
	tbl, err := table.New("s", []string{"Order_ID", "Sales", "Product", "Review", "Date", "CustomerID"}, rows)
	require.NoError(t, err)

	p := newProfiler()
	profile, err := p.Profile(tbl)
	require.NoError(t, err)
	sem := p.Semantic(tbl, profile)

	assert.Equal(t, insight.SemanticIdentifier, sem.Of("Order_ID"))
	assert.Equal(t, insight.SemanticNumeric, sem.Of("Sales"))
	assert.Equal(t, insight.SemanticCategorical, sem.Of("Product"))
	assert.Equal(t, insight.SemanticText, sem.Of("Review"))
	assert.Equal(t, insight.SemanticDatetime, sem.Of("Date"))
	assert.Equal(t, insight.SemanticIdentifier, sem.Of("CustomerID"))
	assert.Equal(t, 2, sem.Count(insight.SemanticIdentifier))
}

func TestIsIdentifierName(t *testing.T) {
	tests := map[string]bool{
		"order_id":      true,
		"OrderID":       true,
		"customerid":    true,
		"Product Code":  true,
		"uuid":          true,
		"invoice no":    true,
		"amount_paid":   false,
		"is_valid":      false,
		"Sales_Amount":  false,
		"idle_minutes":  false,
		"transactionId": true,
	}
	for name, want := range tests {
		assert.Equal(t, want, IsIdentifierName(name), name)
	}
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "sales amount", NormalizeName("Sales_Amount"))
	assert.Equal(t, "order id", NormalizeName("OrderID"))
	assert.Equal(t, "unit price", NormalizeName("  unit-price "))
}
