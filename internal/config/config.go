package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// PathEnv names the environment variable holding the YAML config path
const PathEnv = "FX_CONFIG_PATH"

type Config struct {
	Env        string     `yaml:"env" env:"FX_ENV" env-default:"local"`
	HTTPServer HTTPServer `yaml:"http_server"`
	Storage    Storage    `yaml:"storage"`
	Cache      Cache      `yaml:"cache"`
	Provider   Provider   `yaml:"provider"`
	Resilience Resilience `yaml:"resilience"`
	Scheduler  Scheduler  `yaml:"scheduler"`
	Log        Log        `yaml:"log"`
}

type HTTPServer struct {
	Address         string        `yaml:"address" env:"FX_HTTP_ADDRESS" env-default:":8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"FX_HTTP_READ_TIMEOUT" env-default:"5s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"FX_HTTP_WRITE_TIMEOUT" env-default:"10s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"FX_HTTP_IDLE_TIMEOUT" env-default:"120s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"FX_HTTP_SHUTDOWN_TIMEOUT" env-default:"5s"`
}

type Storage struct {
	Path       string `yaml:"path" env:"FX_DB_PATH" env-default:"./data"`
	InMemory   bool   `yaml:"in_memory" env:"FX_DB_IN_MEMORY" env-default:"false"`
	SyncWrites bool   `yaml:"sync_writes" env:"FX_DB_SYNC_WRITES" env-default:"false"`
}

type Cache struct {
	CurrentRateTTLMinutes int           `yaml:"current_rate_ttl_minutes" env:"FX_CACHE_CURRENT_TTL_MINUTES" env-default:"60"`
	HistoryTTLMinutes     int           `yaml:"history_ttl_minutes" env:"FX_CACHE_HISTORY_TTL_MINUTES" env-default:"30"`
	JanitorInterval       time.Duration `yaml:"janitor_interval" env:"FX_CACHE_JANITOR_INTERVAL" env-default:"10m"`
}

// CurrentRateTTL is the lifetime of the cached current snapshot
func (c Cache) CurrentRateTTL() time.Duration {
	return time.Duration(c.CurrentRateTTLMinutes) * time.Minute
}

// HistoryTTL is the lifetime of the cached history list
func (c Cache) HistoryTTL() time.Duration {
	return time.Duration(c.HistoryTTLMinutes) * time.Minute
}

type Provider struct {
	Default              string        `yaml:"default" env:"FX_PROVIDER" env-default:"frankfurter"`
	FrankfurterLatestURL string        `yaml:"frankfurter_latest_url" env:"FX_FRANKFURTER_LATEST_URL" env-default:"https://api.frankfurter.app/latest"`
	Timeout              time.Duration `yaml:"timeout" env:"FX_PROVIDER_TIMEOUT" env-default:"10s"`
	UserAgent            string        `yaml:"user_agent" env:"FX_PROVIDER_USER_AGENT" env-default:"exchange-rate-service/1.0"`
}

type Resilience struct {
	MaxAttempts                int           `yaml:"max_attempts" env:"FX_RETRY_MAX_ATTEMPTS" env-default:"3"`
	BaseDelay                  time.Duration `yaml:"base_delay" env:"FX_RETRY_BASE_DELAY" env-default:"2s"`
	AllowedFailuresBeforeBreak int           `yaml:"allowed_failures_before_break" env:"FX_BREAKER_FAILURES" env-default:"5"`
	BreakDuration              time.Duration `yaml:"break_duration" env:"FX_BREAKER_DURATION" env-default:"30s"`
}

type Scheduler struct {
	Enabled        bool          `yaml:"enabled" env:"FX_SCHEDULER_ENABLED" env-default:"true"`
	ImportInterval time.Duration `yaml:"import_interval" env:"FX_IMPORT_INTERVAL" env-default:"1h"`
	RunOnStart     bool          `yaml:"run_on_start" env:"FX_IMPORT_ON_START" env-default:"true"`
}

type Log struct {
	Level      string `yaml:"level" env:"FX_LOG_LEVEL" env-default:"INFO"`
	Output     string `yaml:"output" env:"FX_LOG_OUTPUT" env-default:"stdout"`
	File       string `yaml:"file" env:"FX_LOG_FILE" env-default:"./logs/exchange-rate-service.log"`
	MaxSizeMB  int    `yaml:"max_size_mb" env:"FX_LOG_MAX_SIZE_MB" env-default:"100"`
	MaxBackups int    `yaml:"max_backups" env:"FX_LOG_MAX_BACKUPS" env-default:"3"`
	MaxAgeDays int    `yaml:"max_age_days" env:"FX_LOG_MAX_AGE_DAYS" env-default:"28"`
}

// Load reads the YAML file at path, applying environment overrides and defaults.
// An empty path reads the environment only. A .env file in the working directory is
// loaded first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("failed to find config file: %w", err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad loads the config from the path in FX_CONFIG_PATH and exits on failure
func MustLoad() *Config {
	cfg, err := Load(os.Getenv(PathEnv))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate rejects settings the service cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.Cache.CurrentRateTTLMinutes <= 0 {
		errs = append(errs, errors.New("cache.current_rate_ttl_minutes must be positive"))
	}
	if c.Cache.HistoryTTLMinutes <= 0 {
		errs = append(errs, errors.New("cache.history_ttl_minutes must be positive"))
	}
	if c.Cache.JanitorInterval <= 0 {
		errs = append(errs, errors.New("cache.janitor_interval must be positive"))
	}
	if c.Resilience.MaxAttempts < 1 {
		errs = append(errs, errors.New("resilience.max_attempts must be at least 1"))
	}
	if c.Resilience.BaseDelay < 0 {
		errs = append(errs, errors.New("resilience.base_delay must not be negative"))
	}
	if c.Resilience.AllowedFailuresBeforeBreak < 1 {
		errs = append(errs, errors.New("resilience.allowed_failures_before_break must be at least 1"))
	}
	if c.Resilience.BreakDuration <= 0 {
		errs = append(errs, errors.New("resilience.break_duration must be positive"))
	}
	if c.Scheduler.Enabled && c.Scheduler.ImportInterval <= 0 {
		errs = append(errs, errors.New("scheduler.import_interval must be positive"))
	}
	if !c.Storage.InMemory && c.Storage.Path == "" {
		errs = append(errs, errors.New("storage.path is required unless storage.in_memory is set"))
	}
	if c.Log.Output == "file" && c.Log.File == "" {
		errs = append(errs, errors.New("log.file is required when log.output is file"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
