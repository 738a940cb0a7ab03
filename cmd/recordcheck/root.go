package main

import (
	"log/slog"

	"github.com/specterops/recordcheck/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type application struct {
	viper      *viper.Viper
	configPath string
	config     config.Config
}

func newRootCommand() *cobra.Command {
	app := &application{
		viper: config.New(),
	}

	rootCmd := &cobra.Command{
		Use:   "recordcheck",
		Short: "Check the consistency of a record graph store",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.initialize(cmd)
		},
		// Errors are reported by main so that exit codes stay under its control.
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&app.configPath, "config", "", "Path to a YAML config file")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("log-format", "text", "Log format: text or json")
	flags.String("store", "", "Directory of the badger record store")

	cobra.CheckErr(config.BindFlags(app.viper, flags, map[string]string{
		"log.level":  "log-level",
		"log.format": "log-format",
		"store.path": "store",
	}))

	rootCmd.AddCommand(
		newCheckCommand(app),
		newGenerateCommand(app),
		newVersionCommand(),
	)

	return rootCmd
}

func (s *application) initialize(cmd *cobra.Command) error {
	if err := config.ReadFile(s.viper, s.configPath); err != nil {
		return err
	}

	cfg, err := config.Load(s.viper)
	if err != nil {
		return err
	}

	logger, err := cfg.Log.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	slog.SetDefault(logger)
	s.config = cfg

	return nil
}
