package export

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	domainInsight "kpiscout/domain/insight"
)

const summarySheet = "Summary"

// WriteWorkbook writes a Summary sheet followed by one sheet per card
func WriteWorkbook(w io.Writer, results *domainInsight.Results) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return err
	}
	if err := writeSummary(f, results); err != nil {
		return err
	}

	used := map[string]bool{strings.ToLower(summarySheet): true}
	for _, card := range results.Insights.Cards {
		name := sheetName(card.ID, used)
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
		if err := writeCard(f, name, card); err != nil {
			return fmt.Errorf("card %s: %w", card.ID, err)
		}
	}
	f.SetActiveSheet(0)
	return f.Write(w)
}

func writeSummary(f *excelize.File, results *domainInsight.Results) error {
	rows := [][]interface{}{
		{"Dataset", results.DatasetName},
		{"Run ID", results.RunID.String()},
		{"Created", results.CreatedAt.String()},
		{"Fingerprint", results.Fingerprint.String()},
		{"Rows", results.Profile.Rows},
		{"Columns", results.Profile.Cols},
		{"Measure", results.Insights.Selection.Measure},
		{"Time", results.Insights.Selection.Time},
		{"Dimensions", strings.Join(results.Insights.Selection.Dimensions, ", ")},
		{},
		{"KPI", "Display", "Value"},
	}
	for _, tile := range results.Insights.Tiles {
		var value interface{}
		if tile.Value != nil {
			value = *tile.Value
		}
		rows = append(rows, []interface{}{tile.Label, tile.Display, value})
	}

	if len(results.SmartKPIs) > 0 {
		rows = append(rows, []interface{}{}, []interface{}{"Smart KPI", "Value", "Spread", "Columns"})
		keys := make([]string, 0, len(results.SmartKPIs))
		for k := range results.SmartKPIs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			kpi := results.SmartKPIs[k]
			rows = append(rows, []interface{}{k, kpi.Value, kpi.Spread, strings.Join(kpi.Formula.Columns, ", ")})
		}
	}

	if len(results.Warnings) > 0 {
		rows = append(rows, []interface{}{}, []interface{}{"Warnings"})
		for _, warning := range results.Warnings {
			rows = append(rows, []interface{}{warning})
		}
	}
	return setRows(f, summarySheet, rows)
}

func writeCard(f *excelize.File, sheet string, card domainInsight.Card) error {
	rows := [][]interface{}{{card.Title}, {card.Why}, {}}
	header := make([]interface{}, len(card.Columns))
	for i, c := range card.Columns {
		header[i] = c
	}
	rows = append(rows, header)
	for _, r := range card.Rows {
		values := make([]interface{}, len(card.Columns))
		for i, c := range card.Columns {
			values[i] = r[c]
		}
		rows = append(rows, values)
	}
	return setRows(f, sheet, rows)
}

func setRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := row
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	return nil
}

// sheetName strips characters Excel rejects, caps the length at 31 and
// suffixes repeats. Excel compares sheet names case-insensitively.
func sheetName(id string, used map[string]bool) string {
	base := strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', ':', '*', '?', '/', '\\':
			return '_'
		}
		return r
	}, id)
	if base == "" {
		base = "card"
	}
	name := truncate(base, 31)
	for i := 2; used[strings.ToLower(name)]; i++ {
		suffix := fmt.Sprintf("_%d", i)
		name = truncate(base, 31-len(suffix)) + suffix
	}
	used[strings.ToLower(name)] = true
	return name
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
