// Package config loads odfcore's workspace configuration: where a
// workspace's datasets/data/checkpoints/cache volumes live, how engine
// subprocesses are launched, and how logging/tracing/metrics are wired.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidReadinessTimeout = errors.New("engine readiness timeout must be positive")
	ErrMissingWorkspaceRoot    = errors.New("workspace root directory must be set")
)

// Default configuration values.
const (
	defaultWorkspaceRoot     = ".odfcore"
	defaultReadinessTimeout  = 30 * time.Second
	defaultShutdownTimeoutMS = 5000
)

// Config holds all configuration for an odfcore workspace.
type Config struct {
	Workspace     WorkspaceConfig     `mapstructure:"workspace"`
	Engine        EngineConfig        `mapstructure:"engine"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// WorkspaceConfig names the on-disk layout a repository reads and
// writes, mirroring internal/repository.WorkspaceLayout's fields
// one-for-one so LoadConfig's result can build one directly.
type WorkspaceConfig struct {
	Root           string `mapstructure:"root"`
	DatasetsDir    string `mapstructure:"datasets_dir"`
	DataDir        string `mapstructure:"data_dir"`
	CheckpointsDir string `mapstructure:"checkpoints_dir"`
	CacheDir       string `mapstructure:"cache_dir"`
}

// EngineConfig controls how the broker locates and launches
// engine subprocesses.
type EngineConfig struct {
	// BinDir is searched for an executable named after the engine (the
	// "spark" entry in the transform source resolves to BinDir/spark).
	BinDir string `mapstructure:"bin_dir"`
	// ReadinessTimeout is the engine readiness wait, loaded from
	// engine.readiness_timeout and validated to be positive. The broker
	// and the process engines do not read it.
	ReadinessTimeout time.Duration `mapstructure:"readiness_timeout"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ObservabilityConfig holds OTLP tracing/metrics export configuration,
// mapping onto pkg/observability.Config.
type ObservabilityConfig struct {
	OTLPEndpoint      string  `mapstructure:"otlp_endpoint"`
	OTLPInsecure      bool    `mapstructure:"otlp_insecure"`
	SampleRatio       float64 `mapstructure:"sample_ratio"`
	ShutdownTimeoutMS int     `mapstructure:"shutdown_timeout_ms"`
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("odfcore")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("$HOME/.odfcore")
		viperCfg.AddConfigPath("/etc/odfcore")
	}

	viperCfg.SetEnvPrefix("ODFCORE")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("read config file: %w", readErr)
		}
	}

	var cfg Config

	if err := viperCfg.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	fillDerivedPaths(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// fillDerivedPaths fills any volume directory left empty by the caller's
// config with a path nested under Workspace.Root, so a config file only
// has to set "workspace.root" to get a sensible full layout.
func fillDerivedPaths(cfg *Config) {
	if cfg.Workspace.DatasetsDir == "" {
		cfg.Workspace.DatasetsDir = cfg.Workspace.Root + "/datasets"
	}

	if cfg.Workspace.DataDir == "" {
		cfg.Workspace.DataDir = cfg.Workspace.Root + "/data"
	}

	if cfg.Workspace.CheckpointsDir == "" {
		cfg.Workspace.CheckpointsDir = cfg.Workspace.Root + "/checkpoints"
	}

	if cfg.Workspace.CacheDir == "" {
		cfg.Workspace.CacheDir = cfg.Workspace.Root + "/cache"
	}
}

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("workspace.root", defaultWorkspaceRoot)

	viperCfg.SetDefault("engine.bin_dir", "/usr/local/libexec/odfcore/engines")
	viperCfg.SetDefault("engine.readiness_timeout", defaultReadinessTimeout)

	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.format", "json")

	viperCfg.SetDefault("observability.otlp_endpoint", "")
	viperCfg.SetDefault("observability.otlp_insecure", false)
	viperCfg.SetDefault("observability.sample_ratio", 1.0)
	viperCfg.SetDefault("observability.shutdown_timeout_ms", defaultShutdownTimeoutMS)
}

// validateConfig validates the configuration.
func validateConfig(cfg *Config) error {
	if cfg.Workspace.Root == "" {
		return ErrMissingWorkspaceRoot
	}

	if cfg.Engine.ReadinessTimeout <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidReadinessTimeout, cfg.Engine.ReadinessTimeout)
	}

	return nil
}
