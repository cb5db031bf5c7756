package factor

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kpiscout/domain/table"
	"kpiscout/ports"
)

// twoFactorTable has x1..x3 driven by one latent and y1..y3 by another
func twoFactorTable(t *testing.T, n int, extraHeaders []string, extra func(i int) []interface{}) *table.Table {
	t.Helper()
	rng := rand.New(rand.NewSource(7))
	headers := append([]string{"x1", "x2", "x3", "y1", "y2", "y3"}, extraHeaders...)
	rows := make([][]interface{}, n)
	for i := 0; i < n; i++ {
		a, b := rng.NormFloat64(), rng.NormFloat64()
		row := []interface{}{
			a + 0.3*rng.NormFloat64(),
			0.9*a + 0.3*rng.NormFloat64(),
			0.8*a + 0.3*rng.NormFloat64(),
			b + 0.3*rng.NormFloat64(),
			0.9*b + 0.3*rng.NormFloat64(),
			0.8*b + 0.3*rng.NormFloat64(),
		}
		if extra != nil {
			row = append(row, extra(i)...)
		}
		rows[i] = row
	}
	tbl, err := table.New("factors", headers, rows)
	require.NoError(t, err)
	return tbl
}

func newEngine() *Engine {
	cfg := DefaultConfig()
	return NewEngine(cfg, NewCapability(cfg), zap.NewNop())
}

func TestDiscover_RecoversTwoFactorStructure(t *testing.T) {
	tbl := twoFactorTable(t, 400, nil, nil)

	fr := newEngine().Discover(tbl, 2)
	require.True(t, fr.OK, fr.Reason)
	assert.Equal(t, []string{"F1", "F2"}, fr.Factors)
	assert.Len(t, fr.Scores, 400)
	assert.Len(t, fr.Scores[0], 2)
	require.NotNil(t, fr.Variance)
	assert.InDelta(t, fr.Variance.Proportion[0]+fr.Variance.Proportion[1], fr.Variance.Cumulative[1], 1e-9)

	dominant := func(col string) string {
		f1, _ := fr.Loading(col, "F1")
		f2, _ := fr.Loading(col, "F2")
		if math.Abs(f1) > math.Abs(f2) {
			return "F1"
		}
		return "F2"
	}
	xFactor := dominant("x1")
	yFactor := dominant("y1")
	assert.NotEqual(t, xFactor, yFactor)
	for _, col := range []string{"x1", "x2", "x3"} {
		assert.Equal(t, xFactor, dominant(col), col)
		l, _ := fr.Loading(col, xFactor)
		assert.Greater(t, l, 0.6, col)
	}
	for _, col := range []string{"y1", "y2", "y3"} {
		assert.Equal(t, yFactor, dominant(col), col)
		l, _ := fr.Loading(col, xFactor)
		assert.Less(t, math.Abs(l), 0.3, col)
	}
}

func TestDiscover_FewerThanThreeColumnsFails(t *testing.T) {
	rows := make([][]interface{}, 30)
	for i := range rows {
		rows[i] = []interface{}{float64(i), float64(i*i%11), "x"}
	}
	tbl, err := table.New("small", []string{"a", "b", "label"}, rows)
	require.NoError(t, err)

	fr := newEngine().Discover(tbl, 3)
	assert.False(t, fr.OK)
	assert.Contains(t, fr.Reason, "insufficient")
	assert.Empty(t, fr.Loadings)
	assert.Empty(t, fr.Scores)
	assert.Empty(t, fr.Factors)
	assert.Empty(t, fr.NumericUsed)
	assert.NotNil(t, fr.Loadings)
}

func TestDiscover_DropsCollinearDuplicatesAndIdentifiers(t *testing.T) {
	tbl := twoFactorTable(t, 120, []string{"x1_doubled", "x1_copy", "customer_id", "ticket"}, nil)
	x1, _ := tbl.Column("x1")
	for _, name := range []string{"x1_doubled", "x1_copy", "customer_id", "ticket"} {
		c, _ := tbl.Column(name)
		for i := range c.Values {
			switch name {
			case "x1_doubled":
				c.Values[i] = table.NewNumericValue(2*x1.Values[i].Num + 1)
			case "x1_copy":
				c.Values[i] = x1.Values[i]
			case "customer_id":
				c.Values[i] = table.NewNumericValue(float64(i))
			case "ticket":
				c.Values[i] = table.NewNumericValue(float64(10000 + 7*i))
			}
		}
	}

	fr := newEngine().Discover(tbl, 2)
	require.True(t, fr.OK, fr.Reason)
	assert.Equal(t, []string{"x1", "x2", "x3", "y1", "y2", "y3"}, fr.NumericUsed)
}

func TestDiscover_AbsentCapability(t *testing.T) {
	tbl := twoFactorTable(t, 50, nil, nil)
	e := NewEngine(DefaultConfig(), ports.AbsentFactorAnalyzer("factor analysis disabled"), nil)

	fr := e.Discover(tbl, 2)
	assert.False(t, fr.OK)
	assert.Equal(t, "factor analysis disabled", fr.Reason)
	assert.Empty(t, fr.Scores)
}

func TestDiscover_ClampsFactorCount(t *testing.T) {
	tbl := twoFactorTable(t, 80, nil, nil)
	fr := newEngine().Discover(tbl, 50)
	require.True(t, fr.OK, fr.Reason)
	assert.Len(t, fr.Factors, 5)

	fr = newEngine().Discover(tbl, 0)
	require.True(t, fr.OK, fr.Reason)
	assert.Len(t, fr.Factors, 1)
}

func TestDiscover_SparseAndConstantColumnsDropped(t *testing.T) {
	tbl := twoFactorTable(t, 60, []string{"sparse", "flat"}, func(i int) []interface{} {
		var sparse interface{}
		if i%2 == 0 {
			sparse = float64(i)
		}
		return []interface{}{sparse, 4.0}
	})
	fr := newEngine().Discover(tbl, 2)
	require.True(t, fr.OK, fr.Reason)
	assert.NotContains(t, fr.NumericUsed, "sparse")
	assert.NotContains(t, fr.NumericUsed, "flat")
}

func TestClampFactors(t *testing.T) {
	assert.Equal(t, 2, clampFactors(3, 3))
	assert.Equal(t, 1, clampFactors(-1, 5))
	assert.Equal(t, 3, clampFactors(3, 10))
}

func TestColumnIndex(t *testing.T) {
	idx := NewColumnIndex([]string{"b", "a", "c"})
	pos, ok := idx.Position("a")
	assert.True(t, ok)
	assert.Equal(t, 1, pos)
	_, ok = idx.Position("z")
	assert.False(t, ok)
	assert.Equal(t, 3, idx.Len())
}
