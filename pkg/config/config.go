// Package config loads jpdict settings from a YAML file and the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

// EnvPath names the environment variable that points at the config file.
const EnvPath = "JPDICT_CONFIG"

// DefaultPath is read when neither a flag nor EnvPath names a file.
const DefaultPath = "./jpdict.yaml"

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Lookup   LookupConfig   `yaml:"lookup"`
	Import   ImportConfig   `yaml:"import"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path        string        `yaml:"path"         env:"JPDICT_DB_PATH"      env-default:"jpdict.db"`
	BusyTimeout time.Duration `yaml:"busy_timeout" env:"JPDICT_BUSY_TIMEOUT" env-default:"5s"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"JPDICT_LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"JPDICT_LOG_FORMAT" env-default:"text"`
}

// LookupConfig tunes deinflection and record decoding.
type LookupConfig struct {
	MaxLookahead int  `yaml:"max_lookahead" env:"JPDICT_MAX_LOOKAHEAD" env-default:"8"`
	StrictDecode bool `yaml:"strict_decode" env:"JPDICT_STRICT_DECODE" env-default:"false"`
}

// ImportConfig tunes archive imports. Workers 0 means one per CPU.
type ImportConfig struct {
	Workers        int `yaml:"workers"         env:"JPDICT_IMPORT_WORKERS"         env-default:"0"`
	BatchSize      int `yaml:"batch_size"      env:"JPDICT_IMPORT_BATCH_SIZE"      env-default:"512"`
	ProgressBuffer int `yaml:"progress_buffer" env:"JPDICT_IMPORT_PROGRESS_BUFFER" env-default:"16"`
}

// Load reads configuration from a YAML file and environment variables.
// Priority: ENV > YAML > defaults.
// path wins over EnvPath, which wins over DefaultPath. A missing file is an
// error only when it was named explicitly.
func Load(path string) (*Config, error) {
	var cfg Config

	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvPath)
		explicit = path != ""
	}
	if !explicit {
		path = DefaultPath
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config: file %s: %w", path, err)
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

var logLevels = []string{"debug", "info", "warn", "error"}

// Validate checks value ranges. Load calls it.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Database.BusyTimeout < 0 {
		return fmt.Errorf("database.busy_timeout must be >= 0 (got %s)", c.Database.BusyTimeout)
	}
	if !validLevel(c.Log.Level) {
		return fmt.Errorf("log.level must be one of %s (got %q)", strings.Join(logLevels, ", "), c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json (got %q)", c.Log.Format)
	}
	if c.Lookup.MaxLookahead < 1 || c.Lookup.MaxLookahead > 32 {
		return fmt.Errorf("lookup.max_lookahead must be in 1..32 (got %d)", c.Lookup.MaxLookahead)
	}
	if c.Import.Workers < 0 {
		return fmt.Errorf("import.workers must be >= 0 (got %d)", c.Import.Workers)
	}
	if c.Import.BatchSize < 1 {
		return fmt.Errorf("import.batch_size must be >= 1 (got %d)", c.Import.BatchSize)
	}
	if c.Import.ProgressBuffer < 1 {
		return fmt.Errorf("import.progress_buffer must be >= 1 (got %d)", c.Import.ProgressBuffer)
	}
	return nil
}

func validLevel(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, l := range logLevels {
		if s == l {
			return true
		}
	}
	return false
}

// Dump renders cfg as YAML.
func Dump(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
