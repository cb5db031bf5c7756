package app

import (
	"context"
	"time"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"

	"kpiscout/domain/core"
	domainInsight "kpiscout/domain/insight"
	"kpiscout/domain/table"
	"kpiscout/internal/analysis"
	"kpiscout/internal/config"
	"kpiscout/internal/errors"
	"kpiscout/internal/factor"
	"kpiscout/internal/insight"
	"kpiscout/internal/profiling"
	"kpiscout/internal/roles"
	"kpiscout/ports"
)

// Options are the per-run caller choices
type Options struct {
	Factors       int      `json:"factors"`
	MeasureCol    string   `json:"measure_col,omitempty"`
	TimeCol       string   `json:"time_col,omitempty"`
	DimensionCols []string `json:"dimension_cols,omitempty"`
}

// Overrides converts the column choices into selector overrides
func (o Options) Overrides() domainInsight.Overrides {
	return domainInsight.Overrides{
		MeasureCol:    o.MeasureCol,
		TimeCol:       o.TimeCol,
		DimensionCols: o.DimensionCols,
	}
}

// AnalysisService runs the full discovery pipeline over one table
type AnalysisService struct {
	stageRunner    *StageRunner
	profiler       *profiling.Profiler
	mapper         *roles.Mapper
	engine         *factor.Engine
	selector       *insight.Selector
	names          *analysis.BusinessNameMapper
	recommender    ports.CardRecommender
	defaultFactors int
	logger         *zap.Logger
}

// NewAnalysisService wires the pipeline stages. recommender may be nil.
func NewAnalysisService(heuristics config.HeuristicsConfig, capability ports.FactorCapability, recommender ports.CardRecommender, defaultFactors int, logger *zap.Logger) *AnalysisService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultFactors < 1 {
		defaultFactors = 3
	}
	mapper := roles.NewMapper(heuristics.Roles, logger.Named("roles"))
	return &AnalysisService{
		stageRunner:    NewStageRunner(logger.Named("stage")),
		profiler:       profiling.NewProfiler(heuristics.Profiler, logger.Named("profiling")),
		mapper:         mapper,
		engine:         factor.NewEngine(heuristics.Factor, capability, logger.Named("factor")),
		selector:       insight.NewSelector(heuristics.Selector, mapper, logger.Named("insight")),
		names:          analysis.NewBusinessNameMapper(),
		recommender:    recommender,
		defaultFactors: defaultFactors,
		logger:         logger,
	}
}

// Analyze runs every stage over a copy of t. It fails only for a nil table
// or a cancelled context; data problems surface as warnings and omitted
// sections of the result.
func (s *AnalysisService) Analyze(ctx context.Context, t *table.Table, opts Options) (*domainInsight.Results, error) {
	if t == nil {
		return nil, errors.InvalidInput("analyze: nil table")
	}
	start := time.Now()
	if opts.Factors < 1 {
		opts.Factors = s.defaultFactors
	}

	results := &domainInsight.Results{
		RunID:         core.NewRunID(),
		CreatedAt:     core.Now(),
		DatasetName:   t.Name,
		Fingerprint:   t.Fingerprint(),
		Columns:       t.ColumnNames(),
		SmartKPIs:     map[string]domainInsight.SmartKPI{},
		BusinessNames: map[string]string{},
		Overrides:     opts.Overrides(),
		Warnings:      []string{},
	}
	warnings := &results.Warnings
	work := t.Clone()

	var profile *domainInsight.Profile
	s.stageRunner.Run("profiling", warnings, func() {
		p, err := s.profiler.Profile(work)
		if err != nil {
			*warnings = append(*warnings, err.Error())
			return
		}
		profile = p
	})
	if profile == nil {
		profile = bareProfile(work)
	}
	results.Profile = *profile

	sem := &domainInsight.SemanticProfile{Types: map[string]domainInsight.SemanticType{}}
	s.stageRunner.Run("semantic profiling", warnings, func() {
		sem = s.profiler.Semantic(work, profile)
	})
	results.Semantic = *sem

	roleMap := emptyRoleMap("role mapping unavailable")
	s.stageRunner.Run("role mapping", warnings, func() {
		roleMap = s.mapper.Map(work, profile, sem)
	})
	results.Roles = roleMap

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "analysis cancelled")
	}

	s.stageRunner.Run("traditional kpis", warnings, func() {
		results.TraditionalKPIs = traditionalKPIs(work, profile)
	})

	results.Factors = s.engine.Discover(work, opts.Factors)
	s.stageRunner.Run("smart kpis", warnings, func() {
		smart, smartWarnings := factor.Synthesize(work, results.Factors)
		results.SmartKPIs = smart
		*warnings = append(*warnings, smartWarnings...)
	})

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "analysis cancelled")
	}

	sel := domainInsight.Selection{Dimensions: []string{}}
	s.stageRunner.Run("selection", warnings, func() {
		var selWarnings []string
		sel, selWarnings = s.selector.Select(work, profile, sem, roleMap, results.Overrides)
		*warnings = append(*warnings, selWarnings...)
	})

	allow, status := s.allowList(work, profile, sem, warnings)
	results.Insights = domainInsight.Insights{Selection: sel, Cards: []domainInsight.Card{}, Tiles: []domainInsight.KPITile{}}
	s.stageRunner.Run("insights", warnings, func() {
		results.Insights = s.selector.Build(work, profile, sem, roleMap, results.Factors, sel, allow)
	})
	results.Insights.Recommender = status

	s.stageRunner.Run("business names", warnings, func() {
		results.BusinessNames = s.names.Labels(work, roleMap)
	})

	results.RuntimeMs = time.Since(start).Milliseconds()
	s.logger.Info("analysis complete",
		zap.String("run_id", results.RunID.String()),
		zap.String("dataset", results.DatasetName),
		zap.String("fingerprint", results.Fingerprint.Short()),
		zap.Int("rows", profile.Rows),
		zap.Int("cols", profile.Cols),
		zap.Bool("factors_ok", results.Factors.OK),
		zap.Int("cards", len(results.Insights.Cards)),
		zap.Int("warnings", len(results.Warnings)),
		zap.Int64("runtime_ms", results.RuntimeMs))
	return results, nil
}

// allowList asks the recommender which cards to surface. Any failure, an
// unloaded model or an empty prediction yields a nil list, which allows all.
func (s *AnalysisService) allowList(t *table.Table, profile *domainInsight.Profile, sem *domainInsight.SemanticProfile, warnings *[]string) (domainInsight.AllowList, domainInsight.RecommenderStatus) {
	status := domainInsight.RecommenderStatus{}
	if s.recommender == nil || !s.recommender.Loaded() {
		status.Fallback = "recommender not loaded; showing all cards"
		return nil, status
	}
	status.Loaded = true

	var ids []string
	var err error
	ok := s.stageRunner.Run("card recommender", warnings, func() {
		ids, err = s.recommender.Recommend(insight.Features(t, profile, sem))
	})
	if !ok || err != nil {
		if err != nil {
			s.logger.Warn("card recommender failed", zap.Error(err))
		}
		status.Fallback = "recommender failed; showing all cards"
		return nil, status
	}

	known := make([]string, 0, len(ids))
	for _, id := range ids {
		if domainInsight.IsKnownCard(id) {
			known = append(known, id)
		}
	}
	if len(known) == 0 {
		status.Fallback = "recommender returned no cards; showing all cards"
		return nil, status
	}
	status.Applied = true
	status.Allowed = known
	return domainInsight.NewAllowList(known), status
}

func traditionalKPIs(t *table.Table, profile *domainInsight.Profile) []domainInsight.ColumnSummary {
	out := []domainInsight.ColumnSummary{}
	for _, name := range profile.NumericCols {
		c, ok := t.Column(name)
		if !ok {
			continue
		}
		data := stats.Float64Data(c.NonMissingFloats())
		if data.Len() == 0 {
			continue
		}
		sum, _ := data.Sum()
		mean, _ := data.Mean()
		std, _ := data.StandardDeviationPopulation()
		lo, _ := data.Min()
		hi, _ := data.Max()
		out = append(out, domainInsight.ColumnSummary{
			Column: name,
			Count:  data.Len(),
			Sum:    sum,
			Mean:   mean,
			StdDev: std,
			Min:    lo,
			Max:    hi,
		})
	}
	return out
}

func bareProfile(t *table.Table) *domainInsight.Profile {
	p := &domainInsight.Profile{
		Rows:         t.RowCount(),
		Cols:         len(t.Columns),
		Missing:      make(map[string]int, len(t.Columns)),
		NumericCols:  []string{},
		DatetimeCols: []string{},
	}
	for _, c := range t.Columns {
		p.Missing[c.Name] = c.MissingCount()
	}
	return p
}

func emptyRoleMap(reason string) domainInsight.RoleMap {
	m := make(domainInsight.RoleMap, len(domainInsight.CatalogRoles))
	for _, role := range domainInsight.CatalogRoles {
		m[role] = domainInsight.EmptyPick(role, reason)
	}
	return m
}
