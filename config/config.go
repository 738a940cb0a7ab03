// Package config loads recordcheck settings from a YAML file, RECORDCHECK_ prefixed environment variables and
// bound command line flags.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/specterops/recordcheck/checker"
	"github.com/specterops/recordcheck/util/size"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "RECORDCHECK"

const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

const (
	PolicyAbort    = "abort"
	PolicyContinue = "continue"
)

var ErrInvalid = errors.New("invalid configuration")

type StoreConfig struct {
	Path         string `mapstructure:"path" yaml:"path"`
	CacheRecords int    `mapstructure:"cache_records" yaml:"cache_records"`
}

type CheckConfig struct {
	Workers             int           `mapstructure:"workers" yaml:"workers"`
	ChunkSize           int64         `mapstructure:"chunk_size" yaml:"chunk_size"`
	MemoryBudget        string        `mapstructure:"memory_budget" yaml:"memory_budget"`
	FailurePolicy       string        `mapstructure:"failure_policy" yaml:"failure_policy"`
	SmallIndexThreshold uint64        `mapstructure:"small_index_threshold" yaml:"small_index_threshold"`
	Flags               checker.Flags `mapstructure:"flags" yaml:"flags"`
}

type ReportConfig struct {
	File          string `mapstructure:"file" yaml:"file"`
	PostgresURL   string `mapstructure:"postgres_url" yaml:"postgres_url"`
	PostgresTable string `mapstructure:"postgres_table" yaml:"postgres_table"`
	Output        string `mapstructure:"output" yaml:"output"`
	Strict        bool   `mapstructure:"strict" yaml:"strict"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type Config struct {
	Store  StoreConfig  `mapstructure:"store" yaml:"store"`
	Check  CheckConfig  `mapstructure:"check" yaml:"check"`
	Report ReportConfig `mapstructure:"report" yaml:"report"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
}

// SetDefaults registers every default so that environment variables resolve for keys no file or flag sets.
func SetDefaults(v *viper.Viper) {
	defaults := checker.DefaultOptions()

	v.SetDefault("store.path", "")
	v.SetDefault("store.cache_records", 0)
	v.SetDefault("check.workers", 0)
	v.SetDefault("check.chunk_size", defaults.ChunkSize)
	v.SetDefault("check.memory_budget", defaults.MemoryBudget.String())
	v.SetDefault("check.failure_policy", PolicyAbort)
	v.SetDefault("check.small_index_threshold", defaults.SmallIndexThreshold)
	v.SetDefault("check.flags.graph", defaults.Flags.CheckGraph)
	v.SetDefault("check.flags.indexes", defaults.Flags.CheckIndexes)
	v.SetDefault("check.flags.index_structure", defaults.Flags.CheckIndexStructure)
	v.SetDefault("check.flags.counts", defaults.Flags.CheckCounts)
	v.SetDefault("check.flags.property_owners", defaults.Flags.CheckPropertyOwners)
	v.SetDefault("report.file", "")
	v.SetDefault("report.postgres_url", "")
	v.SetDefault("report.postgres_table", "")
	v.SetDefault("report.output", OutputText)
	v.SetDefault("report.strict", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// New returns a viper instance with defaults set and environment lookups enabled.
func New() *viper.Viper {
	v := viper.New()

	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// BindFlags binds each named flag to its configuration key. A flag only overrides the file and environment when
// it is set on the command line.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) error {
	for key, flagName := range keys {
		flag := flags.Lookup(flagName)

		if flag == nil {
			return fmt.Errorf("binding %s: no flag named %q", key, flagName)
		}

		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("binding %s: %w", key, err)
		}
	}

	return nil
}

// ReadFile merges a YAML configuration file into v. An empty path is ignored.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	return nil
}

func Load(v *viper.Viper) (Config, error) {
	var out Config

	if err := v.Unmarshal(&out); err != nil {
		return out, fmt.Errorf("unable to decode config, %w", err)
	}

	if err := out.Validate(); err != nil {
		return out, err
	}

	return out, nil
}

func (s Config) Validate() error {
	if s.Check.Workers < 0 {
		return fmt.Errorf("%w: check.workers must not be negative", ErrInvalid)
	}

	if s.Check.ChunkSize < 0 {
		return fmt.Errorf("%w: check.chunk_size must not be negative", ErrInvalid)
	}

	if s.Store.CacheRecords < 0 {
		return fmt.Errorf("%w: store.cache_records must not be negative", ErrInvalid)
	}

	if _, err := s.MemoryBudget(); err != nil {
		return err
	}

	if _, err := s.FailurePolicy(); err != nil {
		return err
	}

	switch s.Report.Output {
	case OutputText, OutputJSON, OutputYAML:
	default:
		return fmt.Errorf("%w: unknown report.output %q", ErrInvalid, s.Report.Output)
	}

	switch s.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log.format %q", ErrInvalid, s.Log.Format)
	}

	if _, err := ParseLogLevel(s.Log.Level); err != nil {
		return err
	}

	return nil
}

func (s Config) MemoryBudget() (size.Size, error) {
	if s.Check.MemoryBudget == "" {
		return checker.DefaultMemoryBudget, nil
	}

	budget, err := size.Parse(s.Check.MemoryBudget)
	if err != nil {
		return 0, fmt.Errorf("%w: check.memory_budget: %w", ErrInvalid, err)
	}

	if budget == 0 {
		return 0, fmt.Errorf("%w: check.memory_budget must be positive", ErrInvalid)
	}

	return budget, nil
}

func (s Config) FailurePolicy() (checker.FailurePolicy, error) {
	switch strings.ToLower(s.Check.FailurePolicy) {
	case "", PolicyAbort:
		return checker.AbortOnFailure, nil
	case PolicyContinue, checker.LogAndContinue.String():
		return checker.LogAndContinue, nil
	default:
		return 0, fmt.Errorf("%w: unknown check.failure_policy %q", ErrInvalid, s.Check.FailurePolicy)
	}
}

// CheckerOptions converts a validated configuration into checker options.
func (s Config) CheckerOptions() (checker.Options, error) {
	options := checker.DefaultOptions()

	budget, err := s.MemoryBudget()
	if err != nil {
		return options, err
	}

	policy, err := s.FailurePolicy()
	if err != nil {
		return options, err
	}

	options.Workers = s.Check.Workers
	options.MemoryBudget = budget
	options.FailurePolicy = policy
	options.Flags = s.Check.Flags
	options.SmallIndexThreshold = s.Check.SmallIndexThreshold

	if s.Check.ChunkSize > 0 {
		options.ChunkSize = s.Check.ChunkSize
	}

	return options, nil
}
