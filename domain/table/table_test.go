package table

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_PadsShortRowsAndRejectsDuplicates(t *testing.T) {
	tbl, err := New("t", []string{"a", "b"}, [][]interface{}{{1, "x"}, {2}})
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.RowCount())

	b, ok := tbl.Column("b")
	require.True(t, ok)
	assert.True(t, b.Values[1].IsMissing())

	_, err = New("t", []string{"a", "a"}, nil)
	assert.Error(t, err)
}

func TestFromAny(t *testing.T) {
	assert.True(t, FromAny(nil).IsMissing())
	assert.True(t, FromAny("   ").IsMissing())
	assert.True(t, FromAny(math.NaN()).IsMissing())
	assert.Equal(t, 3.0, FromAny(int64(3)).Num)
	assert.Equal(t, ValueTypeBoolean, FromAny(true).Type)

	ts := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-01-02", FromAny(ts).Text())
}

func TestColumnStats(t *testing.T) {
	tbl, err := New("t", []string{"v"}, [][]interface{}{{1.0}, {2.0}, {2.0}, {nil}})
	require.NoError(t, err)
	c := tbl.Columns[0]

	assert.Equal(t, 1, c.MissingCount())
	assert.Equal(t, 2, c.DistinctCount())
	assert.InDelta(t, 2.0/3.0, c.UniqueRatio(), 1e-9)
	assert.Equal(t, 2.0, c.MaxFloat())
	assert.Equal(t, ValueTypeNumeric, c.Type())
	assert.True(t, math.IsNaN(c.Floats()[3]))
}

func TestFromRecords_SortsKeysWithoutHeaders(t *testing.T) {
	tbl, err := FromRecords("r", nil, []map[string]interface{}{
		{"b": 1, "a": "x"},
		{"c": true},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, tbl.ColumnNames())
	assert.Equal(t, 2, tbl.RowCount())
}

func TestFingerprintStable(t *testing.T) {
	a, _ := New("t", []string{"x"}, [][]interface{}{{"1"}, {"2"}})
	b := a.Clone()
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	b.Drop("x")
	assert.Empty(t, b.Columns)
	assert.Len(t, a.Columns, 1)
}
