package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"kpiscout/app"
	domainInsight "kpiscout/domain/insight"
	"kpiscout/domain/table"
	"kpiscout/internal/config"
	"kpiscout/internal/container"
	"kpiscout/internal/factor"
	"kpiscout/internal/logging"
	"kpiscout/internal/migration"
	"kpiscout/internal/testkit"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "kpiscout-dev",
		Short: "kpiscout development tools",
	}

	rootCmd.AddCommand(
		newSeedCmd(),
		newSmokeTestCmd(),
		newDeterminismTestCmd(),
		newMigrateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newSeedCmd() *cobra.Command {
	var count int
	var orders int

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Store a few analyzed demo datasets for development",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openContainer(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())
			return generateSeedData(cmd.Context(), c.Runs, count, orders)
		},
	}
	cmd.Flags().IntVar(&count, "count", 3, "Number of demo runs to store")
	cmd.Flags().IntVar(&orders, "orders", 400, "Orders per demo dataset")
	return cmd
}

func newSmokeTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "smoke",
		Short: "Run smoke tests against the analysis pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSmokeTests(cmd.Context(), newAnalysis())
		},
	}
}

func newDeterminismTestCmd() *cobra.Command {
	var seed int64

	cmd := &cobra.Command{
		Use:   "determinism",
		Short: "Analyze the same generated dataset twice and compare the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			return testDeterminism(cmd.Context(), newAnalysis(), seed)
		},
	}
	cmd.Flags().Int64Var(&seed, "seed", 42, "Generator seed")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate [up|status]",
		Short: "Run or inspect database migrations",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			action := "up"
			if len(args) == 1 {
				action = args[0]
			}
			return runMigrations(cmd.Context(), action)
		},
	}
}

func newAnalysis() *app.AnalysisService {
	h := config.DefaultHeuristics()
	return app.NewAnalysisService(h, factor.NewCapability(h.Factor), nil, 3, nil)
}

func openContainer(ctx context.Context) (*container.Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging.Level, "console")
	if err != nil {
		return nil, err
	}
	c, err := container.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := c.InitWithDatabase(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func generateSeedData(ctx context.Context, runs *app.RunService, count, orders int) error {
	fmt.Println("Generating seed data...")
	for i := 0; i < count; i++ {
		cfg := testkit.DefaultSalesConfig()
		cfg.Seed = int64(42 + i)
		cfg.Orders = orders
		t, err := testkit.NewSalesGenerator(cfg).Table(fmt.Sprintf("demo_sales_%d.csv", i+1))
		if err != nil {
			return fmt.Errorf("failed to generate dataset: %w", err)
		}
		results, err := runs.Run(ctx, t, app.Options{})
		if err != nil {
			return fmt.Errorf("failed to analyze %s: %w", t.Name, err)
		}
		fmt.Printf("  stored %s as run %s\n", t.Name, results.RunID)
	}
	fmt.Println("Seed data generation completed successfully")
	return nil
}

type smokeTest struct {
	name string
	fn   func(context.Context) error
}

func smokeTests(analysis *app.AnalysisService) []smokeTest {
	return []smokeTest{
		{"sales_dataset", func(ctx context.Context) error {
			t, err := testkit.NewSalesGenerator(testkit.DefaultSalesConfig()).Table("smoke_sales.csv")
			if err != nil {
				return err
			}
			r, err := analysis.Analyze(ctx, t, app.Options{})
			if err != nil {
				return err
			}
			if r.Insights.Selection.Measure != "sales_amount" {
				return fmt.Errorf("measure is %q, want sales_amount", r.Insights.Selection.Measure)
			}
			if !r.Factors.OK {
				return fmt.Errorf("factor analysis failed: %s", r.Factors.Reason)
			}
			if len(r.Insights.Cards) == 0 {
				return fmt.Errorf("no cards produced")
			}
			return nil
		}},
		{"no_numeric_columns", func(ctx context.Context) error {
			t, err := table.New("labels", []string{"city", "tier"}, [][]interface{}{
				{"Colombo", "gold"}, {"Kandy", "silver"},
			})
			if err != nil {
				return err
			}
			r, err := analysis.Analyze(ctx, t, app.Options{})
			if err != nil {
				return err
			}
			if len(r.Insights.Cards) != 0 || r.Factors.OK {
				return fmt.Errorf("expected no cards and no factors")
			}
			return nil
		}},
		{"unknown_override", func(ctx context.Context) error {
			t, err := testkit.NewSalesGenerator(testkit.DefaultSalesConfig()).Table("smoke_override.csv")
			if err != nil {
				return err
			}
			r, err := analysis.Analyze(ctx, t, app.Options{MeasureCol: "does_not_exist"})
			if err != nil {
				return err
			}
			if len(r.Warnings) == 0 {
				return fmt.Errorf("expected a warning for the unknown override")
			}
			return nil
		}},
	}
}

func runSmokeTests(ctx context.Context, analysis *app.AnalysisService) error {
	fmt.Println("Running smoke tests...")

	tests := smokeTests(analysis)
	passed := 0
	for _, test := range tests {
		fmt.Printf("  Running %s...", test.name)
		if err := test.fn(ctx); err != nil {
			fmt.Printf(" FAILED: %v\n", err)
		} else {
			fmt.Println(" PASSED")
			passed++
		}
	}

	fmt.Printf("\nSmoke tests: %d/%d passed\n", passed, len(tests))
	if passed < len(tests) {
		return fmt.Errorf("some smoke tests failed")
	}
	return nil
}

func testDeterminism(ctx context.Context, analysis *app.AnalysisService, seed int64) error {
	fmt.Printf("Testing determinism for seed %d...\n", seed)

	cfg := testkit.DefaultSalesConfig()
	cfg.Seed = seed
	var docs [2][]byte
	for i := range docs {
		t, err := testkit.NewSalesGenerator(cfg).Table("determinism.csv")
		if err != nil {
			return err
		}
		r, err := analysis.Analyze(ctx, t, app.Options{})
		if err != nil {
			return err
		}
		if docs[i], err = normalized(r); err != nil {
			return err
		}
	}

	if !bytes.Equal(docs[0], docs[1]) {
		return fmt.Errorf("determinism test failed: results differ")
	}
	fmt.Println("Determinism test passed - results identical")
	return nil
}

// normalized marshals results without the fields that differ per run
func normalized(r *domainInsight.Results) ([]byte, error) {
	n := *r
	n.RunID = ""
	n.CreatedAt = domainInsight.Results{}.CreatedAt
	n.RuntimeMs = 0
	return json.Marshal(n)
}

func runMigrations(ctx context.Context, action string) error {
	c, err := openContainer(ctx)
	if err != nil {
		return err
	}
	defer c.Shutdown(context.Background())

	runner := migration.NewRunner(c.Logger.Named("migration"))
	switch action {
	case "up":
		// opening the container already applied pending steps
		fmt.Printf("Schema at version %s\n", runner.Version())
		return nil
	case "status":
		applied, err := runner.Applied(ctx, c.DB)
		if err != nil {
			return err
		}
		versions := make([]string, 0, len(applied))
		for v := range applied {
			versions = append(versions, v)
		}
		sort.Strings(versions)
		fmt.Printf("Applied migrations: %v (latest %s)\n", versions, runner.Version())
		return nil
	}
	return fmt.Errorf("unknown migrate action %q", action)
}
