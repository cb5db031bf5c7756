package ports

import (
	"context"

	"kpiscout/domain/core"
	"kpiscout/domain/insight"
)

// ResultsRepository persists analysis runs
type ResultsRepository interface {
	Save(ctx context.Context, results *insight.Results) error
	Get(ctx context.Context, id core.RunID) (*insight.Results, error)
	List(ctx context.Context, limit, offset int) ([]insight.RunSummary, error)
	Delete(ctx context.Context, id core.RunID) error
}
