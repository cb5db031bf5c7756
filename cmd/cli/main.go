package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	jsonsource "kpiscout/adapters/api"
	"kpiscout/adapters/export"
	"kpiscout/adapters/filewatcher"
	"kpiscout/app"
	domainInsight "kpiscout/domain/insight"
	"kpiscout/internal/config"
	"kpiscout/internal/container"
	"kpiscout/internal/logging"
	"kpiscout/internal/testkit"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:           "kpiscout",
		Short:         "Discover KPIs, latent drivers and insight cards in tabular datasets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override LOG_LEVEL (debug|info|warn|error)")

	rootCmd.AddCommand(
		newAnalyzeCmd(&logLevel),
		newDemoCmd(&logLevel),
		newWatchCmd(&logLevel),
		newExportCmd(&logLevel),
		newRunsCmd(&logLevel),
	)
	return rootCmd
}

// optionFlags binds the per-run overrides shared by analyze, demo and watch
type optionFlags struct {
	factors    int
	measureCol string
	timeCol    string
	dimensions []string
}

func (f *optionFlags) bind(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.factors, "factors", 0, "Number of latent factors (default from DEFAULT_FACTORS)")
	cmd.Flags().StringVar(&f.measureCol, "measure", "", "Measure column override")
	cmd.Flags().StringVar(&f.timeCol, "time", "", "Time column override")
	cmd.Flags().StringSliceVar(&f.dimensions, "dims", nil, "Dimension column overrides (comma separated)")
}

func (f *optionFlags) options() app.Options {
	return app.Options{
		Factors:       f.factors,
		MeasureCol:    f.measureCol,
		TimeCol:       f.timeCol,
		DimensionCols: f.dimensions,
	}
}

// setup loads configuration and builds the container; withDB opens the
// results store
func setup(ctx context.Context, logLevel string, withDB bool) (*container.Container, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	logger, err := logging.New(cfg.Logging.Level, "console")
	if err != nil {
		return nil, nil, err
	}

	c, err := container.New(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	if withDB {
		if err := c.InitWithDatabase(ctx); err != nil {
			return nil, nil, err
		}
	}
	cleanup := func() {
		c.Shutdown(context.Background())
		logger.Sync()
	}
	return c, cleanup, nil
}

func newAnalyzeCmd(logLevel *string) *cobra.Command {
	var opts optionFlags
	var save, pretty bool
	var url, dataPath string

	cmd := &cobra.Command{
		Use:   "analyze [file]",
		Short: "Analyze a CSV/XLSX file (or a JSON endpoint) and print the results as JSON",
		Long: `Analyze a dataset and print the full results document to stdout.

Examples:
  kpiscout analyze sales.csv --dims store_city,category --save
  kpiscout analyze --url https://example.test/orders --data-path data.items`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 0) == (url == "") {
				return fmt.Errorf("give either a file or --url")
			}
			c, cleanup, err := setup(cmd.Context(), *logLevel, save)
			if err != nil {
				return err
			}
			defer cleanup()

			var results *domainInsight.Results
			if url != "" {
				results, err = analyzeURL(cmd.Context(), c, url, dataPath, opts.options())
			} else {
				results, err = c.Runs.RunFile(cmd.Context(), args[0], opts.options())
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), results, pretty)
		},
	}
	opts.bind(cmd)
	cmd.Flags().BoolVar(&save, "save", false, "Store the run in the results database")
	cmd.Flags().BoolVar(&pretty, "pretty", true, "Indent the JSON output")
	cmd.Flags().StringVar(&url, "url", "", "Fetch JSON records from this endpoint instead of a file")
	cmd.Flags().StringVar(&dataPath, "data-path", "", "gjson path to the records array in the endpoint response")
	return cmd
}

func analyzeURL(ctx context.Context, c *container.Container, url, dataPath string, opts app.Options) (*domainInsight.Results, error) {
	cfg := jsonsource.DefaultSourceConfig(url)
	cfg.DataPath = dataPath
	if token := os.Getenv("KPISCOUT_SOURCE_TOKEN"); token != "" {
		cfg.AuthMethod = "bearer"
		cfg.AuthToken = token
	}
	src, err := jsonsource.NewRecordSource(cfg, c.Logger.Named("source"))
	if err != nil {
		return nil, err
	}
	recs, err := src.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return c.Runs.RunRecords(ctx, url, recs.Headers, recs.Rows, opts)
}

func newDemoCmd(logLevel *string) *cobra.Command {
	var opts optionFlags
	var orders int
	var seed int64
	var csvPath string
	var save bool

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Generate a synthetic sales dataset and analyze it",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cleanup, err := setup(cmd.Context(), *logLevel, save)
			if err != nil {
				return err
			}
			defer cleanup()

			genCfg := testkit.DefaultSalesConfig()
			genCfg.Orders = orders
			genCfg.Seed = seed
			gen := testkit.NewSalesGenerator(genCfg)

			if csvPath != "" {
				f, err := os.Create(csvPath)
				if err != nil {
					return err
				}
				if err := gen.WriteCSV(f); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", csvPath)
			}

			t, err := gen.Table("demo_sales.csv")
			if err != nil {
				return err
			}
			results, err := c.Runs.Run(cmd.Context(), t, opts.options())
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), results)
			return nil
		},
	}
	opts.bind(cmd)
	cmd.Flags().IntVar(&orders, "orders", 400, "Number of orders to generate")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed for deterministic generation")
	cmd.Flags().StringVar(&csvPath, "csv", "", "Also write the generated dataset to this CSV path")
	cmd.Flags().BoolVar(&save, "save", false, "Store the run in the results database")
	return cmd
}

func newWatchCmd(logLevel *string) *cobra.Command {
	var opts optionFlags

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Analyze and store every dataset file written to a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cleanup, err := setup(cmd.Context(), *logLevel, true)
			if err != nil {
				return err
			}
			defer cleanup()

			dir := c.Config.Watch.Dir
			if len(args) == 1 {
				dir = args[0]
			}
			if dir == "" {
				return fmt.Errorf("no directory given and WATCH_DIR is unset")
			}

			watcher, err := filewatcher.NewFSNotifyWatcher(c.Reader.Supports, c.Config.Watch.Debounce, c.Logger.Named("watcher"))
			if err != nil {
				return err
			}
			defer watcher.Close()

			out := cmd.OutOrStdout()
			svc := app.NewWatchService(c.Runs, watcher, c.Logger.Named("watch"))
			return svc.Run(cmd.Context(), dir, opts.options(), func(path string, results *domainInsight.Results) {
				fmt.Fprintf(out, "%s\t%s\t%d cards\t%d warnings\n",
					filepath.Base(path), results.RunID, len(results.Insights.Cards), len(results.Warnings))
			})
		},
	}
	opts.bind(cmd)
	return cmd
}

func newExportCmd(logLevel *string) *cobra.Command {
	var format, outPath string

	cmd := &cobra.Command{
		Use:   "export [run-id]",
		Short: "Export a stored run as csv, xlsx or html",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			c, cleanup, err := setup(cmd.Context(), *logLevel, true)
			if err != nil {
				return err
			}
			defer cleanup()

			results, err := c.Runs.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if outPath == "" {
				outPath = f.FileName(results)
			}
			file, err := os.Create(outPath)
			if err != nil {
				return err
			}
			if err := c.Exporter.Write(file, results, f); err != nil {
				file.Close()
				return err
			}
			if err := file.Close(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "csv", "Export format: csv|xlsx|html")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output path (default kpiscout-<run-id>.<format>)")
	return cmd
}

func newRunsCmd(logLevel *string) *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cleanup, err := setup(cmd.Context(), *logLevel, true)
			if err != nil {
				return err
			}
			defer cleanup()

			runs, err := c.Runs.List(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RUN ID\tDATASET\tROWS\tCOLS\tCARDS\tWARNINGS\tCREATED")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
					r.RunID, r.DatasetName, r.Rows, r.Cols, r.Cards, r.Warnings, r.CreatedAt)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum runs to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "Runs to skip")
	return cmd
}

func writeJSON(w io.Writer, v interface{}, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

func printSummary(w io.Writer, r *domainInsight.Results) {
	fmt.Fprintf(w, "Run %s: %s (%d rows, %d cols) in %d ms\n", r.RunID, r.DatasetName, r.Profile.Rows, r.Profile.Cols, r.RuntimeMs)
	sel := r.Insights.Selection
	fmt.Fprintf(w, "Measure: %s  Time: %s  Dimensions: %v\n", sel.Measure, sel.Time, sel.Dimensions)
	for _, tile := range r.Insights.Tiles {
		fmt.Fprintf(w, "  %-24s %s\n", tile.Label, tile.Display)
	}
	for _, card := range r.Insights.Cards {
		fmt.Fprintf(w, "  [%s] %s\n", card.ID, card.Title)
	}
	if r.Factors.OK {
		fmt.Fprintf(w, "Factors: %v over %v\n", r.Factors.Factors, r.Factors.NumericUsed)
	} else {
		fmt.Fprintf(w, "Factors skipped: %s\n", r.Factors.Reason)
	}
	for _, warning := range r.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warning)
	}
	if r.Insights.Recommender.Fallback != "" {
		fmt.Fprintf(w, "Recommender: %s\n", r.Insights.Recommender.Fallback)
	}
}
