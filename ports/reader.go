package ports

import (
	"context"
	"io"

	"kpiscout/domain/table"
)

// DatasetReader turns an uploaded or on-disk file into a raw table. Cells are
// left as trimmed strings; typing is the profiler's job.
type DatasetReader interface {
	ReadFile(ctx context.Context, path string) (*table.Table, error)
	Read(ctx context.Context, name string, r io.Reader) (*table.Table, error)
	Supports(name string) bool
}
