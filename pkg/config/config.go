// Package config provides configuration loading and validation for the
// adaptivegc engine and its simulate CLI.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/sarahrileyjo/adaptivegc/pkg/gcpolicy"
	"github.com/sarahrileyjo/adaptivegc/pkg/units"
)

// Sentinel validation errors.
var (
	ErrInvalidSize          = errors.New("size must be a positive byte quantity")
	ErrInvalidAlignment     = errors.New("alignment must be a positive power of two")
	ErrSurvivorExceedsEden  = errors.New("max survivor size must not exceed max eden size")
	ErrInvalidCollections   = errors.New("simulation collections must be positive")
	ErrInvalidSeed          = errors.New("simulation seed must be non-negative")
	ErrInvalidListenAddr    = errors.New("diagnostics listen address must not be empty when enabled")
	ErrInvalidSupplementPct = errors.New("supplement percentage must not be negative")
)

// Default configuration values.
const (
	defaultMinSpaceSize    = "1MiB"
	defaultMaxEdenSize     = "256MiB"
	defaultMaxSurvivorSize = "32MiB"
	defaultMaxOldSize      = "2GiB"
	defaultAlignment       = 4 * units.KiB

	defaultSimulationCollections = 500
	defaultSimulationSeed        = 1

	defaultDiagnosticsAddr = "127.0.0.1:9090"
)

// Config holds all configuration for the adaptivegc engine and CLI.
type Config struct {
	Sizes       SizesConfig       `mapstructure:"sizes"`
	Engine      EngineConfig      `mapstructure:"engine"`
	Simulation  SimulationConfig  `mapstructure:"simulation"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics"`
}

// SizesConfig holds the heap layout bounds handed to the policy engine as
// gcpolicy.SizeParams. Byte quantities accept humanize-style strings
// ("64MiB", "2GB").
type SizesConfig struct {
	MinSpaceSize    string `mapstructure:"min_space_size"`
	MaxEdenSize     string `mapstructure:"max_eden_size"`
	MaxSurvivorSize string `mapstructure:"max_survivor_size"`
	MaxOldSize      string `mapstructure:"max_old_size"`
	Alignment       uint64 `mapstructure:"alignment"`
}

// ToSizeParams parses the configured byte strings into a gcpolicy.SizeParams.
func (s SizesConfig) ToSizeParams() (gcpolicy.SizeParams, error) {
	minSpace, err := humanize.ParseBytes(s.MinSpaceSize)
	if err != nil {
		return gcpolicy.SizeParams{}, fmt.Errorf("%w: min_space_size %q: %w", ErrInvalidSize, s.MinSpaceSize, err)
	}

	maxEden, err := humanize.ParseBytes(s.MaxEdenSize)
	if err != nil {
		return gcpolicy.SizeParams{}, fmt.Errorf("%w: max_eden_size %q: %w", ErrInvalidSize, s.MaxEdenSize, err)
	}

	maxSurvivor, err := humanize.ParseBytes(s.MaxSurvivorSize)
	if err != nil {
		return gcpolicy.SizeParams{}, fmt.Errorf("%w: max_survivor_size %q: %w", ErrInvalidSize, s.MaxSurvivorSize, err)
	}

	maxOld, err := humanize.ParseBytes(s.MaxOldSize)
	if err != nil {
		return gcpolicy.SizeParams{}, fmt.Errorf("%w: max_old_size %q: %w", ErrInvalidSize, s.MaxOldSize, err)
	}

	return gcpolicy.SizeParams{
		MinSpaceSize:    minSpace,
		MaxEdenSize:     maxEden,
		MaxSurvivorSize: maxSurvivor,
		MaxOldSize:      maxOld,
		Alignment:       s.Alignment,
	}, nil
}

// EngineConfig toggles the engine's optional behaviors, mapped directly onto
// gcpolicy.Option values. YoungSupplementPct/OldSupplementPct seed the
// decaying startup growth boost added on top of the generation's normal
// growth percentage (see gcpolicy.WithInitialSupplements); 0 disables it.
type EngineConfig struct {
	AdaptToSystemGC    bool    `mapstructure:"adapt_to_system_gc"`
	CostEstimators     bool    `mapstructure:"cost_estimators"`
	FootprintGoal      bool    `mapstructure:"footprint_goal"`
	MajorGCCostDecay   bool    `mapstructure:"major_gc_cost_decay"`
	YoungSupplementPct float64 `mapstructure:"young_supplement_pct"`
	OldSupplementPct   float64 `mapstructure:"old_supplement_pct"`
}

// Options builds the gcpolicy.Option slice this configuration describes.
func (e EngineConfig) Options() []gcpolicy.Option {
	return []gcpolicy.Option{
		gcpolicy.WithAdaptToSystemGC(e.AdaptToSystemGC),
		gcpolicy.WithCostEstimators(e.CostEstimators),
		gcpolicy.WithFootprintGoal(e.FootprintGoal),
		gcpolicy.WithMajorGCCostDecay(e.MajorGCCostDecay),
		gcpolicy.WithInitialSupplements(e.YoungSupplementPct, e.OldSupplementPct),
	}
}

// SimulationConfig parameterizes the synthetic mutator/collection trace the
// simulate command drives the engine with.
type SimulationConfig struct {
	Seed        int64 `mapstructure:"seed"`
	Collections int   `mapstructure:"collections"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// DiagnosticsConfig holds the /healthz, /readyz, and /metrics HTTP server's
// configuration.
type DiagnosticsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("config")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/adaptivegc")
	}

	viperCfg.SetEnvPrefix("ADAPTIVEGC")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	if validateErr := validateConfig(&config); validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("sizes.min_space_size", defaultMinSpaceSize)
	viperCfg.SetDefault("sizes.max_eden_size", defaultMaxEdenSize)
	viperCfg.SetDefault("sizes.max_survivor_size", defaultMaxSurvivorSize)
	viperCfg.SetDefault("sizes.max_old_size", defaultMaxOldSize)
	viperCfg.SetDefault("sizes.alignment", defaultAlignment)

	viperCfg.SetDefault("engine.adapt_to_system_gc", false)
	viperCfg.SetDefault("engine.cost_estimators", true)
	viperCfg.SetDefault("engine.footprint_goal", true)
	viperCfg.SetDefault("engine.major_gc_cost_decay", true)
	viperCfg.SetDefault("engine.young_supplement_pct", 0.0)
	viperCfg.SetDefault("engine.old_supplement_pct", 0.0)

	viperCfg.SetDefault("simulation.seed", defaultSimulationSeed)
	viperCfg.SetDefault("simulation.collections", defaultSimulationCollections)

	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.format", "json")
	viperCfg.SetDefault("logging.output", "stdout")

	viperCfg.SetDefault("diagnostics.enabled", false)
	viperCfg.SetDefault("diagnostics.listen_addr", defaultDiagnosticsAddr)
}

// validateConfig validates the configuration.
func validateConfig(config *Config) error {
	sizeParams, err := config.Sizes.ToSizeParams()
	if err != nil {
		return err
	}

	if sizeParams.MinSpaceSize == 0 || sizeParams.MaxEdenSize == 0 || sizeParams.MaxOldSize == 0 {
		return fmt.Errorf("%w: all configured sizes must be positive", ErrInvalidSize)
	}

	if sizeParams.Alignment == 0 || sizeParams.Alignment&(sizeParams.Alignment-1) != 0 {
		return fmt.Errorf("%w: %d", ErrInvalidAlignment, sizeParams.Alignment)
	}

	if sizeParams.MaxSurvivorSize > sizeParams.MaxEdenSize {
		return ErrSurvivorExceedsEden
	}

	if config.Simulation.Collections <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCollections, config.Simulation.Collections)
	}

	if config.Simulation.Seed < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSeed, config.Simulation.Seed)
	}

	if config.Engine.YoungSupplementPct < 0 {
		return fmt.Errorf("%w: young_supplement_pct=%v", ErrInvalidSupplementPct, config.Engine.YoungSupplementPct)
	}

	if config.Engine.OldSupplementPct < 0 {
		return fmt.Errorf("%w: old_supplement_pct=%v", ErrInvalidSupplementPct, config.Engine.OldSupplementPct)
	}

	if config.Diagnostics.Enabled && config.Diagnostics.ListenAddr == "" {
		return ErrInvalidListenAddr
	}

	return nil
}
