package config_test

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/specterops/recordcheck/checker"
	"github.com/specterops/recordcheck/config"
	"github.com/specterops/recordcheck/util/size"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(config.New())
	require.NoError(t, err)

	options, err := cfg.CheckerOptions()
	require.NoError(t, err)
	require.Equal(t, checker.DefaultOptions(), options)
	require.Equal(t, config.OutputText, cfg.Report.Output)
}

func TestLoad_FileEnvironmentAndFlags(t *testing.T) {
	var (
		path  = filepath.Join(t.TempDir(), "recordcheck.yaml")
		flags = pflag.NewFlagSet("test", pflag.ContinueOnError)
		v     = config.New()
	)

	require.NoError(t, os.WriteFile(path, []byte(`
store:
  path: /data/graph
check:
  workers: 3
  memory_budget: 64MiB
  failure_policy: continue
  flags:
    counts: false
report:
  output: json
`), 0o600))

	t.Setenv("RECORDCHECK_CHECK_CHUNK_SIZE", "250")
	t.Setenv("RECORDCHECK_REPORT_OUTPUT", "yaml")

	flags.Int("workers", 0, "")
	require.NoError(t, config.BindFlags(v, flags, map[string]string{"check.workers": "workers"}))
	require.NoError(t, flags.Parse([]string{"--workers", "9"}))
	require.NoError(t, config.ReadFile(v, path))

	cfg, err := config.Load(v)
	require.NoError(t, err)
	require.Equal(t, "/data/graph", cfg.Store.Path)
	require.Equal(t, "yaml", cfg.Report.Output)

	options, err := cfg.CheckerOptions()
	require.NoError(t, err)
	require.Equal(t, 9, options.Workers)
	require.Equal(t, int64(250), options.ChunkSize)
	require.Equal(t, 64*size.Mebibyte, options.MemoryBudget)
	require.Equal(t, checker.LogAndContinue, options.FailurePolicy)
	require.False(t, options.Flags.CheckCounts)
	require.True(t, options.Flags.CheckGraph)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string][2]string{
		"negative workers": {"check.workers", "-1"},
		"bad budget":       {"check.memory_budget", "lots"},
		"zero budget":      {"check.memory_budget", "0"},
		"bad policy":       {"check.failure_policy", "retry"},
		"bad output":       {"report.output", "xml"},
		"bad log level":    {"log.level", "loud"},
		"bad log format":   {"log.format", "logfmt"},
	}

	for name, setting := range cases {
		t.Run(name, func(t *testing.T) {
			v := config.New()
			v.Set(setting[0], setting[1])

			_, err := config.Load(v)
			require.ErrorIs(t, err, config.ErrInvalid)
		})
	}
}

func TestBindFlags_UnknownFlag(t *testing.T) {
	err := config.BindFlags(config.New(), pflag.NewFlagSet("test", pflag.ContinueOnError), map[string]string{"check.workers": "missing"})
	require.ErrorContains(t, err, "missing")
}

func TestLogConfig_NewLogger(t *testing.T) {
	var (
		output = &bytes.Buffer{}
		cfg    = config.LogConfig{Level: "warn", Format: "json"}
	)

	logger, err := cfg.NewLogger(output)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")

	require.NotContains(t, output.String(), "hidden")
	require.Contains(t, output.String(), `"msg":"shown"`)

	level, err := config.ParseLogLevel("debug")
	require.NoError(t, err)
	require.Equal(t, slog.LevelDebug, level)
}
