package main

import (
	"fmt"
	"log/slog"

	"github.com/specterops/recordcheck/config"
	"github.com/specterops/recordcheck/fixture"
	"github.com/specterops/recordcheck/index"
	"github.com/specterops/recordcheck/store"
	"github.com/spf13/cobra"
)

func newGenerateCommand(app *application) *cobra.Command {
	var (
		options  = fixture.DefaultRandomGraphOptions()
		noSchema bool
	)

	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a random consistent graph into a new store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Schema = !noSchema
			return runGenerate(app.config, options)
		},
	}

	flags := generateCmd.Flags()
	flags.Uint64Var(&options.Seed, "seed", options.Seed, "Random seed")
	flags.IntVar(&options.Nodes, "nodes", options.Nodes, "Number of nodes")
	flags.IntVar(&options.Relationships, "relationships", options.Relationships, "Number of relationships")
	flags.IntVar(&options.Labels, "labels", options.Labels, "Number of distinct labels")
	flags.IntVar(&options.RelationshipTypes, "types", options.RelationshipTypes, "Number of distinct relationship types")
	flags.IntVar(&options.DenseThreshold, "dense-threshold", options.DenseThreshold, "Degree at which a node stores relationship groups")
	flags.BoolVar(&noSchema, "no-schema", false, "Skip indexes and constraints")

	return generateCmd
}

func runGenerate(cfg config.Config, options fixture.RandomGraphOptions) error {
	if cfg.Store.Path == "" {
		return fmt.Errorf("%w: store.path is required", config.ErrInvalid)
	}

	backend, err := store.OpenBadger(store.BadgerOptions{
		Path:                cfg.Store.Path,
		SyncWrites:          true,
		RecordCacheCapacity: cfg.Store.CacheRecords,
	})

	if err != nil {
		return err
	}

	stores, err := store.Create(backend, store.DefaultFormat())
	if err != nil {
		backend.Close()
		return err
	}

	var (
		indexes = index.NewMemory()
		builder = fixture.New(stores, indexes)
		nodeIDs = fixture.RandomGraph(builder, options)
	)

	if err := builder.Commit(); err != nil {
		stores.Close()
		return fmt.Errorf("writing generated graph: %w", err)
	}

	if err := index.SaveBadger(backend.DB(), indexes); err != nil {
		stores.Close()
		return fmt.Errorf("writing generated indexes: %w", err)
	}

	slog.Info("Generated graph",
		slog.String("path", cfg.Store.Path),
		slog.Int("nodes", len(nodeIDs)),
		slog.Int64("relationships", stores.Relationships.HighID()))

	return stores.Close()
}
