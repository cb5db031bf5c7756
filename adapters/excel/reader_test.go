package excel

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"kpiscout/internal/errors"
	"kpiscout/internal/testkit"
)

func TestReadCSV(t *testing.T) {
	src := "\ufeff order_id , amount,amount,\nA1, 10.5 ,11,x\n,,,\nA2,,12\n"
	r := NewDataReader(DefaultReaderConfig(), nil)

	tbl, err := r.Read(context.Background(), "orders.csv", strings.NewReader(src))
	require.NoError(t, err)

	assert.Equal(t, "orders.csv", tbl.Name)
	assert.Equal(t, []string{"order_id", "amount", "amount_2", "column_4"}, tbl.ColumnNames())
	assert.Equal(t, 2, tbl.RowCount(), "blank row skipped")

	amount, _ := tbl.Column("amount")
	assert.Equal(t, "10.5", amount.Values[0].Text())
	assert.True(t, amount.Values[1].IsMissing())

	extra, _ := tbl.Column("column_4")
	assert.True(t, extra.Values[1].IsMissing(), "short rows are padded")
}

func TestReadXLSXFirstSheet(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	_, err := f.NewSheet("Orders")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"product", "sales"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"Latte", 4.5}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]interface{}{"Mocha", 5}))
	require.NoError(t, f.SetSheetRow("Orders", "A1", &[]interface{}{"ignored"}))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	tbl, err := NewDataReader(DefaultReaderConfig(), nil).Read(context.Background(), "menu.xlsx", &buf)
	require.NoError(t, err)
	assert.Equal(t, []string{"product", "sales"}, tbl.ColumnNames())
	assert.Equal(t, 2, tbl.RowCount())

	sales, _ := tbl.Column("sales")
	assert.Equal(t, "4.5", sales.Values[0].Text())
}

func TestReadErrors(t *testing.T) {
	r := NewDataReader(DefaultReaderConfig(), nil)
	ctx := context.Background()

	_, err := r.Read(ctx, "data.parquet", strings.NewReader("x"))
	assert.Equal(t, errors.CodeUnsupportedFormat, errors.GetCode(err))

	_, err = r.Read(ctx, "empty.csv", strings.NewReader("a,b\n"))
	assert.Equal(t, errors.CodeEmptyDataset, errors.GetCode(err))

	_, err = r.Read(ctx, "blank.csv", strings.NewReader("\n\n"))
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))

	_, err = r.ReadFile(ctx, filepath.Join(t.TempDir(), "missing.csv"))
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))

	assert.True(t, r.Supports("a.XLSX"))
	assert.False(t, r.Supports("a.xls"))
}

func TestReadFileMaxRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sales.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, testkit.NewSalesGenerator(testkit.DefaultSalesConfig()).WriteCSV(f))
	require.NoError(t, f.Close())

	cfg := DefaultReaderConfig()
	cfg.MaxRows = 25
	tbl, err := NewDataReader(cfg, nil).ReadFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 25, tbl.RowCount())
	assert.Equal(t, testkit.SalesHeaders, tbl.ColumnNames())
}
