package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"gopattern/adapters/excel"
	"gopattern/adapters/postgres"
	"gopattern/adapters/stats/engine"
	"gopattern/app"
	"gopattern/domain/core"
	"gopattern/domain/discovery"
	"gopattern/internal"
	"gopattern/internal/config"
	"gopattern/internal/report"
	"gopattern/ports"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "gopattern",
		Short:         "Discover validated patterns and interactions in tabular data",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv()
		},
	}

	rootCmd.AddCommand(
		newDiscoverCmd(),
		newSchemaCmd(),
		newRunsCmd(),
		newReportCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type discoverFlags struct {
	schemaFile   string
	outcome      string
	contexts     []string
	optionsFile  string
	seed         int64
	maxResults   int
	folds        int
	noCorrection bool
	format       string
	out          string
	persist      bool
}

func newDiscoverCmd() *cobra.Command {
	var f discoverFlags

	cmd := &cobra.Command{
		Use:   "discover <data.csv|data.xlsx>",
		Short: "Run pattern discovery on a dataset",
		Long: `Run pattern discovery on a CSV or Excel file.

The column schema comes from --schema (YAML) or is inferred from the file when only
--outcome is given.

Example: gopattern discover sales.csv --outcome revenue --context channel --seed 7 --format markdown`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiscover(cmd, args[0], f)
		},
	}

	cmd.Flags().StringVar(&f.schemaFile, "schema", "", "YAML schema file (outcome, features, contexts)")
	cmd.Flags().StringVar(&f.outcome, "outcome", "", "Outcome column, used when no schema file is given")
	cmd.Flags().StringSliceVar(&f.contexts, "context", nil, "Context columns for sign-flip analysis")
	cmd.Flags().StringVar(&f.optionsFile, "options", "", "YAML engine options file")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "Random seed for cross-validation folds (default DISCOVERY_SEED or 42)")
	cmd.Flags().IntVar(&f.maxResults, "max-results", 0, "Maximum patterns to report")
	cmd.Flags().IntVar(&f.folds, "folds", 0, "Cross-validation folds")
	cmd.Flags().BoolVar(&f.noCorrection, "no-correction", false, "Disable multiple-comparison correction")
	cmd.Flags().StringVar(&f.format, "format", "json", "Output format: json, markdown or html")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "Write output to a file instead of stdout")
	cmd.Flags().BoolVar(&f.persist, "persist", false, "Store the run in PostgreSQL (requires DATABASE_URL)")

	return cmd
}

func runDiscover(cmd *cobra.Command, source string, f discoverFlags) error {
	ctx := cmd.Context()
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if f.optionsFile != "" {
		cfg.Discovery.OptionsFile = f.optionsFile
	}
	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("seed") {
		opts = opts.WithSeed(f.seed)
	}
	if f.maxResults > 0 {
		opts.MaxResults = f.maxResults
	}
	if f.folds > 0 {
		opts.CrossValidationFolds = f.folds
	}
	if f.noCorrection {
		opts = opts.WithCorrection(false)
	}

	logger := internal.NewLogger(internal.ParseLogLevel(cfg.Log.Level))
	defer logger.Sync()
	reader := excel.NewDataReader(logger)

	schema, err := resolveSchema(ctx, reader, source, f)
	if err != nil {
		return err
	}

	var runs ports.RunRepository
	if f.persist {
		if err := cfg.RequireDatabase(); err != nil {
			return err
		}
		db, err := postgres.Open(ctx, cfg.Database.URL)
		if err != nil {
			return err
		}
		defer db.Close()
		runs = postgres.NewRunRepository(db)
	}

	service := app.NewDiscoveryService(reader, engine.NewDiscoveryEngine(logger), runs, logger)
	result, err := service.Discover(ctx, app.DiscoveryRequest{
		Source:  source,
		Schema:  schema,
		Options: opts,
		Persist: f.persist,
	})
	if err != nil {
		return err
	}

	return writeOutput(cmd.OutOrStdout(), f.out, func(w io.Writer) error {
		return render(w, result.Run, f.format)
	})
}

func resolveSchema(ctx context.Context, reader *excel.DataReader, source string, f discoverFlags) (discovery.Schema, error) {
	if f.schemaFile != "" {
		return config.LoadSchemaFile(f.schemaFile)
	}
	if f.outcome == "" {
		return discovery.Schema{}, fmt.Errorf("either --schema or --outcome is required")
	}
	schema, err := reader.InferSchema(ctx, source, f.outcome)
	if err != nil {
		return discovery.Schema{}, err
	}
	return withContexts(schema, f.contexts), nil
}

// withContexts moves the named columns from the feature list to the context list.
func withContexts(schema discovery.Schema, contexts []string) discovery.Schema {
	if len(contexts) == 0 {
		return schema
	}
	isContext := make(map[string]bool, len(contexts))
	for _, c := range contexts {
		isContext[c] = true
	}
	features := schema.Features[:0:0]
	for _, feat := range schema.Features {
		if !isContext[feat.Name] {
			features = append(features, feat)
		}
	}
	schema.Features = features
	schema.Contexts = append([]string(nil), contexts...)
	return schema
}

func render(w io.Writer, run *discovery.AnalysisRun, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	case "markdown", "md":
		_, err := io.WriteString(w, report.Markdown(run))
		return err
	case "html":
		_, err := w.Write(report.HTML(run))
		return err
	}
	return fmt.Errorf("unknown format %q (want json, markdown or html)", format)
}

func writeOutput(stdout io.Writer, path string, write func(io.Writer) error) error {
	if path == "" {
		return write(stdout)
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func newSchemaCmd() *cobra.Command {
	var outcome, out string
	var contexts []string

	cmd := &cobra.Command{
		Use:   "schema <data.csv|data.xlsx>",
		Short: "Infer a YAML schema for a dataset",
		Long: `Infer a column schema to review before running discovery.

Example: gopattern schema sales.csv --outcome revenue -o schema.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reader := excel.NewDataReader(internal.NopLogger())
			schema, err := reader.InferSchema(cmd.Context(), args[0], outcome)
			if err != nil {
				return err
			}
			schema = withContexts(schema, contexts)
			if out == "" {
				return config.EncodeSchema(cmd.OutOrStdout(), schema)
			}
			return config.WriteSchemaFile(out, schema)
		},
	}

	cmd.Flags().StringVar(&outcome, "outcome", "", "Outcome column")
	cmd.Flags().StringSliceVar(&contexts, "context", nil, "Context columns")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Schema file to write (default stdout)")
	_ = cmd.MarkFlagRequired("outcome")

	return cmd
}

func openService(ctx context.Context) (*app.DiscoveryService, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.RequireDatabase(); err != nil {
		return nil, nil, err
	}
	db, err := postgres.Open(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}
	logger := internal.NewLogger(internal.ParseLogLevel(cfg.Log.Level))
	service := app.NewDiscoveryService(nil, engine.NewDiscoveryEngine(logger), postgres.NewRunRepository(db), logger)
	return service, func() { db.Close() }, nil
}

func newRunsCmd() *cobra.Command {
	var outcome string
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			service, closeDB, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()

			items, err := service.ListRuns(cmd.Context(), ports.RunFilters{Outcome: outcome, Limit: limit})
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tOUTCOME\tSTATUS\tROWS\tPATTERNS")
			for _, it := range items {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\n", it.ID, it.CreatedAt, it.Outcome, it.Status, it.DatasetSize, it.Patterns)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&outcome, "outcome", "", "Only runs for this outcome")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list")
	return cmd
}

func newReportCmd() *cobra.Command {
	var format, out string

	cmd := &cobra.Command{
		Use:   "report <run-id>",
		Short: "Render a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := core.ParseRunID(args[0])
			if err != nil {
				return err
			}
			service, closeDB, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()

			run, err := service.GetRun(cmd.Context(), id)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), out, func(w io.Writer) error {
				return render(w, run, format)
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", "markdown", "Output format: json, markdown or html")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write output to a file instead of stdout")
	return cmd
}
