package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"launchboard/internal/domain"
)

const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Config models launchboard.yml.
type Config struct {
	Project struct {
		Name       string `yaml:"name" json:"name"`
		LaunchDate string `yaml:"launch_date" json:"launchDate"`
	} `yaml:"project" json:"project"`
	Storage Storage `yaml:"storage" json:"storage"`

	Activity struct {
		MaxEntries int `yaml:"max_entries" json:"maxEntries"`
	} `yaml:"activity" json:"activity"`
	Deadlines struct {
		WindowDays int `yaml:"window_days" json:"windowDays"`
	} `yaml:"deadlines" json:"deadlines"`
	Digest struct {
		Schedule string `yaml:"schedule" json:"schedule"`
	} `yaml:"digest" json:"digest"`
}

type Storage struct {
	Driver      string `yaml:"driver" json:"driver"`
	RedisAddr   string `yaml:"redis_addr" json:"redisAddr"`
	RedisDB     int    `yaml:"redis_db" json:"redisDb"`
	RedisPrefix string `yaml:"redis_prefix" json:"redisPrefix"`
	SnapshotKey string `yaml:"snapshot_key" json:"snapshotKey"`
	LogKey      string `yaml:"log_key" json:"logKey"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with lb config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the defaults if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Project.LaunchDate != "" {
		if _, ok := domain.ParseDate(c.Project.LaunchDate); !ok {
			return fmt.Errorf("config.project.launch_date %q is not a YYYY-MM-DD date", c.Project.LaunchDate)
		}
	}
	switch c.Storage.Driver {
	case DriverSQLite, DriverMemory:
	case DriverRedis:
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("config.storage.redis_addr is required for the redis driver")
		}
	default:
		return fmt.Errorf("config.storage.driver must be one of sqlite, redis, memory (got %q)", c.Storage.Driver)
	}
	if c.Storage.SnapshotKey == "" || c.Storage.LogKey == "" {
		return fmt.Errorf("config.storage.snapshot_key and log_key are required")
	}
	if c.Storage.SnapshotKey == c.Storage.LogKey {
		return fmt.Errorf("config.storage.snapshot_key and log_key must differ")
	}
	if c.Activity.MaxEntries < 0 {
		return fmt.Errorf("config.activity.max_entries must be >= 0")
	}
	if c.Deadlines.WindowDays < 0 {
		return fmt.Errorf("config.deadlines.window_days must be >= 0")
	}
	if c.Digest.Schedule != "" {
		if _, err := cron.ParseStandard(c.Digest.Schedule); err != nil {
			return fmt.Errorf("config.digest.schedule: %w", err)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "launchboard.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(projectName string) string {
	if projectName == "" {
		projectName = defaultProjectName
	}
	return fmt.Sprintf(defaultTemplate, projectName)
}

// Default returns the default Config struct.
func Default() *Config {
	cfg, err := FromYAML([]byte(GenerateDefault("")))
	if err != nil {
		panic(err)
	}
	return cfg
}

// FromYAML parses and validates config from raw YAML bytes. Fields the
// document leaves out keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// YAML renders the config back to launchboard.yml form.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

func defaults() *Config {
	var cfg Config
	cfg.Project.Name = defaultProjectName
	cfg.Project.LaunchDate = "2026-04-25"
	cfg.Storage = Storage{
		Driver:      DriverSQLite,
		RedisAddr:   "127.0.0.1:6379",
		RedisPrefix: "launchboard:",
		SnapshotKey: "sc-launch-control-data",
		LogKey:      "sc-launch-control-log",
	}
	cfg.Activity.MaxEntries = 1000
	cfg.Deadlines.WindowDays = 30
	return &cfg
}

const defaultProjectName = "SC Launch Control"

const defaultTemplate = `project:
  name: %s
  launch_date: 2026-04-25

storage:
  # sqlite | redis | memory
  driver: sqlite
  redis_addr: 127.0.0.1:6379
  redis_db: 0
  redis_prefix: "launchboard:"
  snapshot_key: sc-launch-control-data
  log_key: sc-launch-control-log

activity:
  # 0 keeps every entry
  max_entries: 1000

deadlines:
  window_days: 30

digest:
  # standard 5-field cron expression; empty disables the digest
  schedule: ""
`
