package export

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	domainInsight "kpiscout/domain/insight"
	"kpiscout/internal/errors"
)

// Format names an export encoding
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatHTML Format = "html"
)

// ParseFormat accepts csv, xlsx or html in any case
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX, FormatHTML:
		return f, nil
	}
	return "", errors.UnsupportedFormat(s)
}

// ContentType is the MIME type served for the format
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatHTML:
		return "text/html; charset=utf-8"
	}
	return "application/octet-stream"
}

// FileName builds a download name for a run
func (f Format) FileName(results *domainInsight.Results) string {
	return fmt.Sprintf("kpiscout-%s.%s", results.RunID.String(), f)
}

// Exporter writes stored results in the supported formats
type Exporter struct {
	logger *zap.Logger
}

// NewExporter creates an exporter
func NewExporter(logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{logger: logger}
}

// Write encodes results to w
func (e *Exporter) Write(w io.Writer, results *domainInsight.Results, format Format) error {
	if results == nil {
		return errors.InvalidInput("export: nil results")
	}
	var err error
	switch format {
	case FormatCSV:
		err = WriteFlatCSV(w, results)
	case FormatXLSX:
		err = WriteWorkbook(w, results)
	case FormatHTML:
		_, err = w.Write(RenderHTML(results))
	default:
		return errors.UnsupportedFormat(string(format))
	}
	if err != nil {
		return errors.Wrapf(err, "failed to export run %s as %s", results.RunID, format)
	}
	e.logger.Debug("run exported", zap.String("run_id", results.RunID.String()), zap.String("format", string(format)))
	return nil
}
