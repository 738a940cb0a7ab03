package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/specterops/recordcheck/checker"
	"github.com/specterops/recordcheck/config"
	"github.com/specterops/recordcheck/index"
	"github.com/specterops/recordcheck/report"
	"github.com/specterops/recordcheck/store"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// ErrInconsistent is returned by a strict check of an inconsistent store.
var ErrInconsistent = errors.New("store is inconsistent")

func newCheckCommand(app *application) *cobra.Command {
	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Run a full consistency check of a store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), app.config, cmd.OutOrStdout())
		},
	}

	flags := checkCmd.Flags()
	flags.Int("workers", 0, "Number of check workers, zero uses every CPU")
	flags.Int64("chunk-size", checker.DefaultChunkSize, "Number of records in each unit of parallel work")
	flags.String("memory-budget", checker.DefaultMemoryBudget.String(), "Cache memory available to one check round")
	flags.String("failure-policy", config.PolicyAbort, "What a worker failure does to its phase: abort or continue")
	flags.Uint64("small-index-threshold", checker.DefaultSmallIndexThreshold, "Entity count at or below which an index is read unpartitioned")
	flags.Bool("check-graph", true, "Check records and their references")
	flags.Bool("check-indexes", true, "Check index entries against the store")
	flags.Bool("check-index-structure", true, "Check index descriptors")
	flags.Bool("check-counts", true, "Check the counts store")
	flags.Bool("check-property-owners", true, "Check that every property record has one owner")
	flags.String("report-file", "", "Write every finding to this file")
	flags.String("postgres-url", "", "Copy every finding into a Postgres table at this connection string")
	flags.StringP("output", "o", config.OutputText, "Summary format: text, json or yaml")
	flags.Bool("strict", false, "Exit with status 2 when the store is inconsistent")

	cobra.CheckErr(config.BindFlags(app.viper, flags, map[string]string{
		"check.workers":               "workers",
		"check.chunk_size":            "chunk-size",
		"check.memory_budget":         "memory-budget",
		"check.failure_policy":        "failure-policy",
		"check.small_index_threshold": "small-index-threshold",
		"check.flags.graph":           "check-graph",
		"check.flags.indexes":         "check-indexes",
		"check.flags.index_structure": "check-index-structure",
		"check.flags.counts":          "check-counts",
		"check.flags.property_owners": "check-property-owners",
		"report.file":                 "report-file",
		"report.postgres_url":         "postgres-url",
		"report.output":               "output",
		"report.strict":               "strict",
	}))

	return checkCmd
}

func openSinks(ctx context.Context, cfg config.Config) ([]report.Sink, error) {
	sinks := []report.Sink{
		report.NewLogSink(slog.Default()),
	}

	if cfg.Report.File != "" {
		fileSink, err := report.NewFileSink(cfg.Report.File)
		if err != nil {
			return nil, err
		}

		sinks = append(sinks, fileSink)
	}

	if cfg.Report.PostgresURL != "" {
		runID := uuid.New()

		postgresSink, err := report.OpenPostgresSink(ctx, cfg.Report.PostgresURL, runID, report.PostgresOptions{
			Table: cfg.Report.PostgresTable,
		})

		if err != nil {
			closeSinks(ctx, sinks)
			return nil, err
		}

		slog.InfoContext(ctx, "Copying findings to Postgres", slog.String("run_id", runID.String()))
		sinks = append(sinks, postgresSink)
	}

	return sinks, nil
}

func closeSinks(ctx context.Context, sinks []report.Sink) {
	for _, sink := range sinks {
		if err := sink.Close(ctx); err != nil {
			slog.WarnContext(ctx, "Closing report sink", slog.String("err", err.Error()))
		}
	}
}

func runCheck(ctx context.Context, cfg config.Config, output io.Writer) error {
	if cfg.Store.Path == "" {
		return fmt.Errorf("%w: store.path is required", config.ErrInvalid)
	}

	options, err := cfg.CheckerOptions()
	if err != nil {
		return err
	}

	backend, err := store.OpenBadger(store.BadgerOptions{
		Path:                cfg.Store.Path,
		ReadOnly:            true,
		RecordCacheCapacity: cfg.Store.CacheRecords,
	})

	if err != nil {
		return err
	}

	stores, err := store.Open(backend)
	if err != nil {
		backend.Close()
		return err
	}

	defer stores.Close()

	indexes, err := index.LoadBadger(backend.DB())
	if err != nil {
		return err
	}

	sinks, err := openSinks(ctx, cfg)
	if err != nil {
		return err
	}

	// Check closes every sink once all findings are written
	summary, checkErr := checker.New(stores, indexes, options).Check(ctx, sinks...)
	if summary == nil {
		return checkErr
	}

	snapshot := summary.Snapshot()
	snapshot.ReportFile = cfg.Report.File

	if err := writeSnapshot(output, cfg.Report.Output, summary, snapshot); err != nil {
		return errors.Join(checkErr, err)
	}

	if checkErr != nil {
		return checkErr
	}

	if cfg.Report.Strict && !snapshot.Consistent {
		return ErrInconsistent
	}

	return nil
}

func writeSnapshot(output io.Writer, format string, summary *report.Summary, snapshot report.Snapshot) error {
	switch format {
	case config.OutputJSON:
		encoder := json.NewEncoder(output)
		encoder.SetIndent("", "  ")

		return encoder.Encode(snapshot)

	case config.OutputYAML:
		encoder := yaml.NewEncoder(output)

		if err := encoder.Encode(snapshot); err != nil {
			return err
		}

		return encoder.Close()

	default:
		if _, err := fmt.Fprintln(output, summary.String()); err != nil {
			return err
		}

		if snapshot.ReportFile != "" {
			_, err := fmt.Fprintf(output, "See '%s' for a detailed consistency report.\n", snapshot.ReportFile)
			return err
		}

		return nil
	}
}
