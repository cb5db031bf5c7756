package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"kpiscout/domain/table"
	"kpiscout/internal/errors"
)

// DataReader handles reading Excel and CSV files into raw tables
type DataReader struct {
	config ReaderConfig
	logger *zap.Logger
}

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(config ReaderConfig, logger *zap.Logger) *DataReader {
	if config.Comma == 0 {
		config.Comma = ','
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DataReader{config: config, logger: logger}
}

// Supports reports whether the file name has a readable extension
func (r *DataReader) Supports(name string) bool {
	_, ok := DetectFormat(name)
	return ok
}

// ReadFile reads a dataset from disk. The table is named after the file.
func (r *DataReader) ReadFile(ctx context.Context, path string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound(fmt.Sprintf("file %s", path))
		}
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()
	return r.Read(ctx, filepath.Base(path), f)
}

// Read reads a dataset from a stream; name selects the format by extension
func (r *DataReader) Read(ctx context.Context, name string, src io.Reader) (*table.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	format, ok := DetectFormat(name)
	if !ok {
		return nil, errors.UnsupportedFormat(filepath.Ext(name))
	}

	start := time.Now()
	var sheet *rawSheet
	var err error
	switch format {
	case FormatCSV:
		sheet, err = r.readCSV(src)
	case FormatXLSX:
		sheet, err = r.readExcel(src)
	}
	if err != nil {
		return nil, err
	}
	if len(sheet.rows) == 0 {
		return nil, errors.EmptyDataset(name)
	}

	t, err := r.toTable(name, sheet)
	if err != nil {
		return nil, err
	}
	r.logger.Info("dataset read",
		zap.String("name", name),
		zap.String("format", string(format)),
		zap.Int("rows", t.RowCount()),
		zap.Int("cols", len(t.Columns)),
		zap.Duration("elapsed", time.Since(start)))
	return t, nil
}

// readExcel reads the configured sheet, or the first one
func (r *DataReader) readExcel(src io.Reader) (*rawSheet, error) {
	f, err := excelize.OpenReader(src)
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, fmt.Errorf("failed to open Excel file: %w", err))
	}
	defer f.Close()

	sheetName := r.config.Sheet
	if sheetName == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.InvalidInput("Excel file has no sheets")
		}
		sheetName = sheets[0]
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, fmt.Errorf("failed to read sheet %s: %w", sheetName, err))
	}
	return r.processRows(rows)
}

// readCSV reads CSV data; ragged rows are allowed and padded later
func (r *DataReader) readCSV(src io.Reader) (*rawSheet, error) {
	reader := csv.NewReader(src)
	reader.Comma = r.config.Comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, fmt.Errorf("failed to read CSV file: %w", err))
	}
	return r.processRows(rows)
}

// processRows splits the header row from data rows, skipping blank rows
func (r *DataReader) processRows(rows [][]string) (*rawSheet, error) {
	for len(rows) > 0 && blankRow(rows[0]) {
		rows = rows[1:]
	}
	if len(rows) == 0 {
		return nil, errors.InvalidInput("file has no header row")
	}

	headerRow := rows[0]
	if len(headerRow) > 0 {
		headerRow[0] = strings.TrimPrefix(headerRow[0], "\ufeff")
	}
	sheet := &rawSheet{headers: uniqueHeaders(headerRow)}

	for _, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		sheet.rows = append(sheet.rows, row)
		if r.config.MaxRows > 0 && len(sheet.rows) >= r.config.MaxRows {
			r.logger.Warn("row limit reached, truncating dataset", zap.Int("max_rows", r.config.MaxRows))
			break
		}
	}
	return sheet, nil
}

func (r *DataReader) toTable(name string, sheet *rawSheet) (*table.Table, error) {
	cells := make([][]interface{}, len(sheet.rows))
	for i, row := range sheet.rows {
		out := make([]interface{}, len(sheet.headers))
		for j := range sheet.headers {
			if j >= len(row) {
				continue
			}
			if v := strings.TrimSpace(row[j]); v != "" {
				out[j] = v
			}
		}
		cells[i] = out
	}
	t, err := table.New(name, sheet.headers, cells)
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, err)
	}
	return t, nil
}

// uniqueHeaders trims names, fills blanks and suffixes repeats ("sales_2")
func uniqueHeaders(raw []string) []string {
	seen := make(map[string]int, len(raw))
	out := make([]string, len(raw))
	for i, h := range raw {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		base := h
		for seen[h] > 0 {
			seen[base]++
			h = fmt.Sprintf("%s_%d", base, seen[base])
		}
		seen[h]++
		out[i] = h
	}
	return out
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
