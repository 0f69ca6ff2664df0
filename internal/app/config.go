package app

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/fypalloc/internal/models"
)

type Config struct {
	Database struct {
		DSN           string `toml:"dsn"`
		MigrationsDir string `toml:"migrations_dir"`
	} `toml:"database"`

	Allocation struct {
		DefaultCapacity  int  `toml:"default_capacity"`
		VerifyInvariants bool `toml:"verify_invariants"`
		// AuditSchedule is a cron line; empty disables the periodic audit.
		AuditSchedule string `toml:"audit_schedule"`
	} `toml:"allocation"`

	Lock struct {
		RedisURL string `toml:"redis_url"`
		TTL      string `toml:"ttl"`
	} `toml:"lock"`

	Metrics struct {
		Listen string `toml:"listen"`
	} `toml:"metrics"`

	Display struct {
		TimestampFormat string `toml:"timestamp_format"`
	} `toml:"display"`

	Console struct {
		Coordinators []string `toml:"coordinators"`
		Prompt       string   `toml:"prompt"`
	} `toml:"console"`

	lockTTL time.Duration
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return ParseConfig(data, path)
}

func ParseConfig(data []byte, source string) (*Config, error) {
	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf(
			"error reading config file %s\n> Error: %w\n> Content:\n%s",
			source,
			err,
			string(data),
		)
	}

	if config.Database.DSN == "" {
		return nil, fmt.Errorf("Database DSN is not specified in config, use a value like file:fyp.db or postgres://...")
	}
	if config.Allocation.DefaultCapacity <= 0 {
		config.Allocation.DefaultCapacity = models.DefaultCapacity
	}
	if config.Display.TimestampFormat == "" {
		config.Display.TimestampFormat = "2006-01-02 15:04"
	}

	if config.Console.Prompt == "" {
		config.Console.Prompt = "fyp> "
	}

	config.lockTTL = 10 * time.Second
	if config.Lock.TTL != "" {
		ttl, err := time.ParseDuration(config.Lock.TTL)
		if err != nil {
			return nil, fmt.Errorf("invalid lock ttl %q: %w", config.Lock.TTL, err)
		}
		config.lockTTL = ttl
	}

	logger.Debug.Printf("Loaded allocation config: %+v", config.Allocation)

	return &config, nil
}

func (c *Config) LockTTL() time.Duration {
	return c.lockTTL
}
