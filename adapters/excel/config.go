package excel

// ReaderConfig holds ingest limits
type ReaderConfig struct {
	// Sheet selects an XLSX sheet by name; empty means the first sheet
	Sheet string `json:"sheet"`
	// MaxRows caps data rows read; 0 means no limit
	MaxRows int `json:"max_rows"`
	// Comma is the CSV field delimiter
	Comma rune `json:"comma"`
}

// DefaultReaderConfig returns sensible defaults for dataset ingest
func DefaultReaderConfig() ReaderConfig {
	return ReaderConfig{Comma: ','}
}
