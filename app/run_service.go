package app

import (
	"context"
	"io"

	"go.uber.org/zap"

	"kpiscout/domain/core"
	domainInsight "kpiscout/domain/insight"
	"kpiscout/domain/table"
	"kpiscout/internal/errors"
	"kpiscout/ports"
)

// RunService analyzes datasets and keeps the resulting runs
type RunService struct {
	analysis *AnalysisService
	reader   ports.DatasetReader
	repo     ports.ResultsRepository
	logger   *zap.Logger
}

// NewRunService creates a run service. repo may be nil, in which case runs
// are analyzed but never stored.
func NewRunService(analysis *AnalysisService, reader ports.DatasetReader, repo ports.ResultsRepository, logger *zap.Logger) *RunService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunService{analysis: analysis, reader: reader, repo: repo, logger: logger}
}

// Run analyzes a table and stores the results
func (s *RunService) Run(ctx context.Context, t *table.Table, opts Options) (*domainInsight.Results, error) {
	results, err := s.analysis.Analyze(ctx, t, opts)
	if err != nil {
		return nil, err
	}
	if s.repo != nil {
		if err := s.repo.Save(ctx, results); err != nil {
			return nil, errors.Wrap(err, "failed to save analysis run")
		}
	}
	return results, nil
}

// RunFile reads a dataset from disk, then runs it
func (s *RunService) RunFile(ctx context.Context, path string, opts Options) (*domainInsight.Results, error) {
	t, err := s.reader.ReadFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx, t, opts)
}

// RunUpload reads an uploaded dataset stream, then runs it
func (s *RunService) RunUpload(ctx context.Context, name string, r io.Reader, opts Options) (*domainInsight.Results, error) {
	t, err := s.reader.Read(ctx, name, r)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx, t, opts)
}

// RunRecords analyzes JSON-style records; headers fix the column order
func (s *RunService) RunRecords(ctx context.Context, name string, headers []string, records []map[string]interface{}, opts Options) (*domainInsight.Results, error) {
	if len(records) == 0 {
		return nil, errors.EmptyDataset(name)
	}
	t, err := table.FromRecords(name, headers, records)
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, err)
	}
	return s.Run(ctx, t, opts)
}

// Supports reports whether a file name can be ingested
func (s *RunService) Supports(name string) bool {
	return s.reader != nil && s.reader.Supports(name)
}

// Get loads a stored run
func (s *RunService) Get(ctx context.Context, id string) (*domainInsight.Results, error) {
	repo, err := s.repository()
	if err != nil {
		return nil, err
	}
	runID, err := core.ParseRunID(id)
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, err)
	}
	return repo.Get(ctx, runID)
}

// List returns stored run summaries, newest first
func (s *RunService) List(ctx context.Context, limit, offset int) ([]domainInsight.RunSummary, error) {
	repo, err := s.repository()
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return repo.List(ctx, limit, offset)
}

// Delete removes a stored run
func (s *RunService) Delete(ctx context.Context, id string) error {
	repo, err := s.repository()
	if err != nil {
		return err
	}
	runID, err := core.ParseRunID(id)
	if err != nil {
		return errors.WithCode(errors.CodeInvalidInput, err)
	}
	return repo.Delete(ctx, runID)
}

func (s *RunService) repository() (ports.ResultsRepository, error) {
	if s.repo == nil {
		return nil, errors.InternalError("no results repository configured")
	}
	return s.repo, nil
}
