package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"kpiscout/domain/core"
	domainInsight "kpiscout/domain/insight"
	"kpiscout/internal/errors"
)

func sampleResults() *domainInsight.Results {
	total := 1234.5
	return &domainInsight.Results{
		RunID:       core.RunID("run-1"),
		CreatedAt:   core.NewTimestamp(time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)),
		DatasetName: "sales.csv",
		Fingerprint: core.Hash("abc"),
		Columns:     []string{"store_city", "sales_amount"},
		Profile: domainInsight.Profile{
			Rows: 3, Cols: 2,
			Missing:      map[string]int{"store_city": 0, "sales_amount": 0},
			NumericCols:  []string{"sales_amount"},
			DatetimeCols: []string{},
		},
		SmartKPIs: map[string]domainInsight.SmartKPI{
			"smart_F1": {Factor: "F1", Value: 0.5, Spread: 1.2, Formula: domainInsight.SmartKPIFormula{Columns: []string{"sales_amount"}}},
		},
		Factors: domainInsight.FactorResult{OK: true, Factors: []string{"F1"}},
		Insights: domainInsight.Insights{
			Selection: domainInsight.Selection{Measure: "sales_amount", Dimensions: []string{"store_city"}},
			Cards: []domainInsight.Card{{
				ID:      domainInsight.CardTopDimension,
				Title:   "Top store_city by sales_amount",
				Why:     "Ranks | categories",
				Chart:   domainInsight.ChartBar,
				Columns: []string{"store_city", "sales_amount"},
				Rows: []domainInsight.Row{
					{"store_city": "Kandy", "sales_amount": 900.0},
					{"store_city": "Galle", "sales_amount": 334.5},
				},
			}},
			Tiles: []domainInsight.KPITile{{ID: "total_revenue", Label: "Total revenue", Value: &total, Display: "1,234.5", Format: domainInsight.FormatCurrency}},
		},
		BusinessNames: map[string]string{},
		Warnings:      []string{},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" XLSX ")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	_, err = ParseFormat("pdf")
	assert.Equal(t, errors.CodeUnsupportedFormat, errors.GetCode(err))
}

func TestFlatten(t *testing.T) {
	entries, err := Flatten(sampleResults())
	require.NoError(t, err)

	byPath := map[string]string{}
	for _, e := range entries {
		byPath[e.Path] = e.Value
	}
	assert.Equal(t, "sales.csv", byPath["dataset_name"])
	assert.Equal(t, "Kandy", byPath["insights.cards.0.rows.0.store_city"])
	assert.Equal(t, "334.5", byPath["insights.cards.0.rows.1.sales_amount"])
	assert.Equal(t, "0.5", byPath["smart_kpis.smart_F1.value"])
	assert.Equal(t, "[]", byPath["warnings"])
	assert.Equal(t, "store_city", byPath["columns.0"])
}

func TestWriteFlatCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewExporter(nil).Write(&buf, sampleResults(), FormatCSV))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.NotEmpty(t, records)
	assert.Equal(t, []string{"path", "value"}, records[0])
	for _, r := range records {
		assert.Len(t, r, 2)
	}
}

func TestWriteWorkbook(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewExporter(nil).Write(&buf, sampleResults(), FormatXLSX))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Summary", domainInsight.CardTopDimension}, f.GetSheetList())
	dataset, err := f.GetCellValue("Summary", "B1")
	require.NoError(t, err)
	assert.Equal(t, "sales.csv", dataset)

	rows, err := f.GetRows(domainInsight.CardTopDimension)
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, []string{"store_city", "sales_amount"}, rows[3])
	assert.Equal(t, "Kandy", rows[4][0])
}

func TestSheetName(t *testing.T) {
	used := map[string]bool{"summary": true}
	assert.Equal(t, "Summary_2", sheetName("Summary", used))
	assert.Equal(t, "a_b", sheetName("a/b", used))

	long := strings.Repeat("x", 40)
	first := sheetName(long, used)
	second := sheetName(long, used)
	assert.Len(t, first, 31)
	assert.Len(t, second, 31)
	assert.True(t, strings.HasSuffix(second, "_2"))
}

func TestRenderHTML(t *testing.T) {
	page := string(RenderHTML(sampleResults()))

	assert.Contains(t, page, "<html")
	assert.Contains(t, page, "<title>kpiscout: sales.csv</title>")
	assert.Contains(t, page, "<table>")
	assert.Contains(t, page, "Kandy")
	assert.Contains(t, page, "smart_F1")
}

func TestMarkdownWithoutCards(t *testing.T) {
	r := sampleResults()
	r.Insights.Cards = nil
	r.Insights.Reason = "no numeric measure column found"
	r.Factors = domainInsight.FailedFactorResult("fewer than 3 numeric columns")

	md := Markdown(r)
	assert.Contains(t, md, "_no numeric measure column found_")
	assert.Contains(t, md, "Factor analysis skipped: fewer than 3 numeric columns")
}

func TestExportNilResults(t *testing.T) {
	var buf bytes.Buffer
	err := NewExporter(nil).Write(&buf, nil, FormatCSV)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}
