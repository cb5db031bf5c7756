package app

import (
	"context"

	"go.uber.org/zap"

	domainInsight "kpiscout/domain/insight"
	"kpiscout/ports"
)

// WatchService analyzes dataset files as they land in a directory. Files
// are processed one at a time in arrival order.
type WatchService struct {
	runs    *RunService
	watcher ports.FileWatcher
	logger  *zap.Logger
}

// NewWatchService creates a watch service
func NewWatchService(runs *RunService, watcher ports.FileWatcher, logger *zap.Logger) *WatchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WatchService{runs: runs, watcher: watcher, logger: logger}
}

// Run blocks until ctx is done or the watcher stops. onResult, if set, is
// called after each successful analysis. A failing file is logged and
// skipped.
func (s *WatchService) Run(ctx context.Context, dir string, opts Options, onResult func(path string, results *domainInsight.Results)) error {
	events, err := s.watcher.Watch(ctx, dir)
	if err != nil {
		return err
	}
	s.logger.Info("watching directory", zap.String("dir", dir))

	for ev := range events {
		if ev.Type == ports.FileDeleted {
			s.logger.Debug("dataset removed", zap.String("path", ev.Path))
			continue
		}
		if !s.runs.Supports(ev.Path) {
			continue
		}
		results, err := s.runs.RunFile(ctx, ev.Path, opts)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			s.logger.Warn("watched dataset failed",
				zap.String("path", ev.Path),
				zap.String("event", ev.Type.String()),
				zap.Error(err))
			continue
		}
		s.logger.Info("watched dataset analyzed",
			zap.String("path", ev.Path),
			zap.String("run_id", results.RunID.String()),
			zap.Int("cards", len(results.Insights.Cards)))
		if onResult != nil {
			onResult(ev.Path, results)
		}
	}
	return nil
}
