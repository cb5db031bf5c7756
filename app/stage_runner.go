package app

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// StageRunner executes pipeline stages, turning a panicking stage into a
// warning so the rest of the pipeline still runs
type StageRunner struct {
	logger *zap.Logger
}

// NewStageRunner creates a new stage runner
func NewStageRunner(logger *zap.Logger) *StageRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StageRunner{logger: logger}
}

// Run executes fn and reports whether it completed. A panic is recovered,
// logged and appended to warnings.
func (r *StageRunner) Run(stage string, warnings *[]string, fn func()) (ok bool) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("stage failed", zap.String("stage", stage), zap.Any("panic", rec))
			*warnings = append(*warnings, fmt.Sprintf("%s failed: %v", stage, rec))
			ok = false
			return
		}
		r.logger.Debug("stage complete", zap.String("stage", stage), zap.Duration("elapsed", time.Since(start)))
	}()
	fn()
	return true
}
