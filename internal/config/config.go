// Package config loads coordinator settings from defaults, an optional
// YAML config file, and RESUMER_* environment variables, in ascending
// precedence. Command flags override on top.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/fluxkit/resumer/pkg/checkpoint"
	"github.com/fluxkit/resumer/pkg/recovery"
	"github.com/fluxkit/resumer/pkg/snapshot"
)

// Settings is the configuration surface the coordinator recognizes.
type Settings struct {
	Checkpoints CheckpointSettings `mapstructure:"checkpoints"`
	HA          HASettings         `mapstructure:"ha"`
	Server      ServerSettings     `mapstructure:"server"`
	Registry    RegistrySettings   `mapstructure:"registry"`
}

// CheckpointSettings configures checkpoint placement and cadence.
type CheckpointSettings struct {
	// Base is the base checkpoint directory (URI or path).
	Base string `mapstructure:"base"`

	// Interval is the periodic checkpoint cadence.
	Interval time.Duration `mapstructure:"interval"`

	// PollInterval is the fixed sleep between discovery polls.
	PollInterval time.Duration `mapstructure:"poll_interval"`

	// Layout is "per-job" or "flat".
	Layout string `mapstructure:"layout"`

	// Retention is "retain" or "delete".
	Retention string `mapstructure:"retention"`

	// Mode is the snapshot mode, "full" or "incremental".
	Mode string `mapstructure:"mode"`
}

// HASettings configures the optional coordination service.
type HASettings struct {
	// Endpoint is the Redis address. Empty means standalone.
	Endpoint string `mapstructure:"endpoint"`
}

// ServerSettings configures the status server.
type ServerSettings struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// RegistrySettings configures job record persistence.
type RegistrySettings struct {
	// Dir is where job.json records are written. Empty disables
	// persistence.
	Dir string `mapstructure:"dir"`
}

// Load reads settings from the optional config file path plus environment.
func Load(cfgFile string) (*Settings, error) {
	v := viper.New()

	v.SetDefault("checkpoints.interval", 500*time.Millisecond)
	v.SetDefault("checkpoints.poll_interval", 50*time.Millisecond)
	v.SetDefault("checkpoints.layout", checkpoint.PerJobSubdirectory.String())
	v.SetDefault("checkpoints.retention", string(recovery.RetainOnCancellation))
	v.SetDefault("checkpoints.mode", snapshot.ModeFull.String())
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)

	v.SetEnvPrefix("RESUMER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", cfgFile, err)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	))); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Validate rejects invalid enum values up front, before any job is
// submitted.
func (s *Settings) Validate() error {
	if _, err := checkpoint.ParseLayoutMode(s.Checkpoints.Layout); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := recovery.ParseRetentionPolicy(s.Checkpoints.Retention); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := snapshot.ParseMode(s.Checkpoints.Mode); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Layout returns the parsed layout mode. Call after Validate.
func (s *Settings) Layout() checkpoint.LayoutMode {
	mode, _ := checkpoint.ParseLayoutMode(s.Checkpoints.Layout)
	return mode
}

// Retention returns the parsed retention policy. Call after Validate.
func (s *Settings) Retention() recovery.RetentionPolicy {
	policy, _ := recovery.ParseRetentionPolicy(s.Checkpoints.Retention)
	return policy
}

// SnapshotMode returns the parsed snapshot mode. Call after Validate.
func (s *Settings) SnapshotMode() snapshot.Mode {
	mode, _ := snapshot.ParseMode(s.Checkpoints.Mode)
	return mode
}
