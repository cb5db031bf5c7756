package excel

import (
	"path/filepath"
	"strings"
)

// Format is a supported dataset file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// DetectFormat maps a file name to its format by extension
func DetectFormat(name string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return FormatCSV, true
	case ".xlsx", ".xlsm":
		return FormatXLSX, true
	}
	return "", false
}

// rawSheet is the header row plus string data rows of one sheet
type rawSheet struct {
	headers []string
	rows    [][]string
}
