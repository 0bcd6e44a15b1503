// Package config loads the graced configuration from YAML with
// sensible defaults for every field.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gracevcs/grace-server/pkg/types"
)

// Duration decodes from YAML strings like "30s" or "20m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full daemon configuration.
type Config struct {
	// DataDir holds the bolt files (state, reminders, index).
	DataDir string `yaml:"dataDir"`

	// HealthAddr serves /healthz, /readyz and /metrics.
	HealthAddr string `yaml:"healthAddr"`

	Log LogConfig `yaml:"log"`

	// CacheTTL bounds existence-cache entries.
	CacheTTL Duration `yaml:"cacheTtl"`

	// ReminderTick is the scan interval of the reminder service.
	ReminderTick Duration `yaml:"reminderTick"`

	// ActorIdleAfter is how long an actor may sit idle before the
	// host deactivates it.
	ActorIdleAfter Duration `yaml:"actorIdleAfter"`

	// DefaultRetention applies to new repositories and to entities
	// with no repository above them.
	DefaultRetention types.RetentionPolicy `yaml:"defaultRetention"`
}

// LogConfig controls log level and output format.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		DataDir:          "/var/lib/grace",
		HealthAddr:       ":4317",
		Log:              LogConfig{Level: "info", JSON: true},
		CacheTTL:         Duration(30 * time.Second),
		ReminderTick:     Duration(time.Second),
		ActorIdleAfter:   Duration(20 * time.Minute),
		DefaultRetention: types.DefaultRetentionPolicy(),
	}
}

// Load reads a YAML config file over the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects configurations the daemon cannot run with.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("dataDir must not be empty")
	}
	if c.ReminderTick <= 0 {
		return fmt.Errorf("reminderTick must be positive, got %s", c.ReminderTick.Std())
	}
	if c.ActorIdleAfter <= 0 {
		return fmt.Errorf("actorIdleAfter must be positive, got %s", c.ActorIdleAfter.Std())
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cacheTtl must be positive, got %s", c.CacheTTL.Std())
	}
	r := c.DefaultRetention
	for _, days := range []float64{r.SaveDays, r.CheckpointDays, r.DiffCacheDays, r.DirectoryVersionCacheDays, r.LogicalDeleteDays} {
		if days < 0 {
			return fmt.Errorf("retention days must not be negative")
		}
	}
	return nil
}
