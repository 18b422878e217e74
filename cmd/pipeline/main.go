package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"movie-pipeline/internal/aggregate"
	"movie-pipeline/internal/config"
	"movie-pipeline/internal/ledger"
	"movie-pipeline/internal/model"

	"github.com/spf13/cobra"
)

var errLedgerDisabled = errors.New("run ledger is disabled, set LEDGER_PATH")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFiles []string

	root := &cobra.Command{
		Use:          "pipeline",
		Short:        "Load movie records into MongoDB and compute the ranking views",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "env files to load (default ./.env when present)")

	// withApp loads config, builds the app and closes it after fn.
	withApp := func(fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(envFiles...)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return fn(cmd, a, args)
		}
	}

	var limit int
	runs := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List recorded runs, or show one run with its stages and errors",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			l, err := a.runLedger()
			if err != nil {
				return err
			}
			if len(args) == 0 {
				list, err := l.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				printJSON(cmd, list)
				return nil
			}
			detail, err := runDetail(cmd.Context(), l, args[0])
			if err != nil {
				return err
			}
			printJSON(cmd, detail)
			return nil
		}),
	}
	runs.Flags().IntVar(&limit, "limit", 20, "number of runs to list, 0 for all")

	root.AddCommand(
		runs,
		&cobra.Command{
			Use:   "run [files...]",
			Short: "Ingest, clean and store records, then rebuild views and export the report",
			RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
				paths, err := sourcesFrom(args, a.cfg.SourcePaths)
				if err != nil {
					return err
				}
				sources := make([]model.Source, 0, len(paths))
				for _, p := range paths {
					sources = append(sources, model.SourceFromPath(p))
				}
				summary, err := a.runner.Run(cmd.Context(), sources)
				printJSON(cmd, summary)
				return err
			}),
		},
		&cobra.Command{
			Use:   "views",
			Short: "Drop and recreate the aggregation views",
			Args:  cobra.NoArgs,
			RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
				stats, err := a.runner.RebuildViews(cmd.Context())
				printJSON(cmd, stats)
				return err
			}),
		},
		&cobra.Command{
			Use:   "report",
			Short: "Export the current view rows",
			Args:  cobra.NoArgs,
			RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
				results, err := a.runner.Report(cmd.Context())
				printJSON(cmd, results)
				return err
			}),
		},
		&cobra.Command{
			Use:   "describe",
			Short: "Print statistics of the movies collection and the view rows",
			Args:  cobra.NoArgs,
			RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
				stats, err := aggregate.Describe(cmd.Context(), a.store, model.CollectionMovies)
				if err != nil {
					return err
				}
				rows, err := a.runner.ReadViews(cmd.Context())
				if err != nil {
					return err
				}
				printJSON(cmd, map[string]interface{}{"fields": stats, "views": rows})
				return nil
			}),
		},
	)
	return root
}

// runReport is the stored state of one run.
type runReport struct {
	Run    model.RunSummary    `json:"run"`
	Stages []model.StageReport `json:"stages"`
	Errors []ledger.RunError   `json:"errors"`
}

func runDetail(ctx context.Context, l *ledger.Ledger, runID string) (runReport, error) {
	summary, err := l.GetRun(ctx, runID)
	if err != nil {
		return runReport{}, err
	}
	stages, err := l.Stages(ctx, runID)
	if err != nil {
		return runReport{}, err
	}
	errs, err := l.Errors(ctx, runID)
	if err != nil {
		return runReport{}, err
	}
	return runReport{Run: summary, Stages: stages, Errors: errs}, nil
}

func printJSON(cmd *cobra.Command, v interface{}) {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
	}
}
