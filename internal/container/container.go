package container

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"kpiscout/adapters/excel"
	"kpiscout/adapters/export"
	"kpiscout/adapters/postgres"
	"kpiscout/adapters/recommender"
	"kpiscout/app"
	"kpiscout/internal/config"
	"kpiscout/internal/factor"
	"kpiscout/internal/migration"
	"kpiscout/ports"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	// Infrastructure
	DB *sqlx.DB

	// Adapters
	Results     ports.ResultsRepository
	Reader      *excel.DataReader
	Recommender *recommender.LinearRecommender
	Exporter    *export.Exporter

	// Services
	Analysis *app.AnalysisService
	Runs     *app.RunService
}

// New builds every component that does not need the database. Runs works
// without persistence until InitWithDatabase is called.
func New(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Container{Config: cfg, Logger: logger}

	rec, err := recommender.Load(cfg.Recommender.ModelPath, recommender.Config{
		Threshold: cfg.Recommender.Threshold,
		TopN:      cfg.Recommender.TopN,
	}, logger.Named("recommender"))
	if err != nil {
		// an unusable model degrades to showing every card
		logger.Warn("card recommender unavailable", zap.Error(err))
	}
	c.Recommender = rec

	h := cfg.Analysis.Heuristics
	c.Reader = excel.NewDataReader(excel.DefaultReaderConfig(), logger.Named("reader"))
	c.Exporter = export.NewExporter(logger.Named("export"))
	c.Analysis = app.NewAnalysisService(h, factor.NewCapability(h.Factor), c.Recommender, cfg.Analysis.DefaultFactors, logger.Named("analysis"))
	c.Runs = app.NewRunService(c.Analysis, c.Reader, nil, logger.Named("runs"))
	return c, nil
}

// InitWithDatabase opens the configured store, applies migrations and
// switches Runs to persisting results
func (c *Container) InitWithDatabase(ctx context.Context) error {
	db, err := postgres.Open(ctx, c.Config.Database.Driver(), c.Config.Database.DSN())
	if err != nil {
		return fmt.Errorf("failed to open %s database: %w", c.Config.Database.Driver(), err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("database connection test failed: %w", err)
	}
	if err := migration.NewRunner(c.Logger.Named("migration")).Run(ctx, db); err != nil {
		db.Close()
		return fmt.Errorf("database migration failed: %w", err)
	}

	c.DB = db
	c.Results = postgres.NewResultsRepository(db)
	c.Runs = app.NewRunService(c.Analysis, c.Reader, c.Results, c.Logger.Named("runs"))

	c.Logger.Info("container initialized with database", zap.String("driver", c.Config.Database.Driver()))
	return nil
}

// Shutdown releases the database connection
func (c *Container) Shutdown(ctx context.Context) error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
