// Package config loads engine settings files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. DELEGATOR_EXECUTOR.
const EnvPrefix = "DELEGATOR"

// DirName is the per-user and per-project settings directory.
const DirName = ".delegator"

// Settings holds merged configuration from multiple sources.
// Later sources override earlier ones (user < project < local < env).
// Zero values mean "not set".
type Settings struct {
	SweepInterval       time.Duration `mapstructure:"sweep_interval"`
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval"`
	ProbeSuccessRate    float64       `mapstructure:"probe_success_rate"`
	BusyThreshold       float64       `mapstructure:"busy_threshold"`
	SmoothingWeight     float64       `mapstructure:"smoothing_weight"`
	DefaultTimeout      time.Duration `mapstructure:"default_timeout"`
	Seed                uint64        `mapstructure:"seed"`

	Weights WeightSettings `mapstructure:"weights"`

	// Executor selects the dispatch capability: simulated, anthropic or process.
	Executor  string            `mapstructure:"executor"`
	Anthropic AnthropicSettings `mapstructure:"anthropic"`
	Simulated SimulatedSettings `mapstructure:"simulated"`

	CatalogDirs []string `mapstructure:"catalog_dirs"`
	Watch       bool     `mapstructure:"watch"`

	Server ServerSettings `mapstructure:"server"`
	Log    LogSettings    `mapstructure:"log"`
}

// WeightSettings overrides the scoring weights.
type WeightSettings struct {
	Success        float64 `mapstructure:"success"`
	Load           float64 `mapstructure:"load"`
	Tools          float64 `mapstructure:"tools"`
	Specialization float64 `mapstructure:"specialization"`
	Role           float64 `mapstructure:"role"`
}

// IsZero reports whether no weight was set.
func (w WeightSettings) IsZero() bool { return w == WeightSettings{} }

// AnthropicSettings configures the LLM executor.
type AnthropicSettings struct {
	Model     string `mapstructure:"model"`
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	MaxTokens int64  `mapstructure:"max_tokens"`
}

// SimulatedSettings configures the simulated executor.
type SimulatedSettings struct {
	MinLatency  time.Duration `mapstructure:"min_latency"`
	MaxLatency  time.Duration `mapstructure:"max_latency"`
	FailureRate float64       `mapstructure:"failure_rate"`
}

// ServerSettings configures the admin API.
type ServerSettings struct {
	Addr string `mapstructure:"addr"`
}

// LogSettings configures the process logger.
type LogSettings struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

// keys lists every settings key so environment overrides are seen by
// Unmarshal even when no file mentions them.
var keys = []string{
	"sweep_interval", "health_check_interval", "probe_success_rate",
	"busy_threshold", "smoothing_weight", "default_timeout", "seed",
	"weights.success", "weights.load", "weights.tools",
	"weights.specialization", "weights.role",
	"executor",
	"anthropic.model", "anthropic.api_key", "anthropic.base_url", "anthropic.max_tokens",
	"simulated.min_latency", "simulated.max_latency", "simulated.failure_rate",
	"catalog_dirs", "watch",
	"server.addr",
	"log.level", "log.format",
}

// LoadSettings merges settings from the given files (YAML, JSON or TOML by
// extension). Later paths override earlier ones. Missing files are skipped;
// a file that exists but does not parse is an error.
func LoadSettings(paths ...string) (*Settings, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return nil, err
		}
	}

	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &s, nil
}

// DefaultSettingsPaths returns the standard settings file search paths.
func DefaultSettingsPaths(projectDir string) []string {
	home, _ := os.UserHomeDir()
	var paths []string

	// User-level settings
	if home != "" {
		paths = append(paths, filepath.Join(home, DirName, "config.yaml"))
	}

	// Project-level settings
	if projectDir != "" {
		paths = append(paths,
			filepath.Join(projectDir, DirName, "config.yaml"),
			filepath.Join(projectDir, DirName, "config.local.yaml"),
		)
	}

	return paths
}
