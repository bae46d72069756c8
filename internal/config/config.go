package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. AUDIOFP_UPLOAD_DIR.
const EnvPrefix = "AUDIOFP"

// DefaultMaxUploadBytes caps a single uploaded audio file.
const DefaultMaxUploadBytes int64 = 50 << 20 // 50 MB

// Config represents runtime configuration for the service.
// It is built once at startup and treated as read-only afterwards.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Fpcalc   FpcalcConfig   `mapstructure:"fpcalc"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	PublicDir       string        `mapstructure:"public_dir"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type UploadConfig struct {
	Dir      string `mapstructure:"dir"`
	MaxBytes int64  `mapstructure:"max_bytes"`
}

// FpcalcConfig describes how the external fingerprinting tool is invoked.
// A zero Timeout disables the bounded wait.
type FpcalcConfig struct {
	Path         string        `mapstructure:"path"`
	Timeout      time.Duration `mapstructure:"timeout"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
}

type WorkerConfig struct {
	MinWorkers  int           `mapstructure:"min_workers"`
	MaxWorkers  int           `mapstructure:"max_workers"`
	QueueSize   int           `mapstructure:"queue_size"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

// LedgerConfig selects where staged assets and invocation outcomes are recorded.
// Driver is one of none, sqlite3, mysql, pgx or redis.
type LedgerConfig struct {
	Driver        string        `mapstructure:"driver"`
	StagedTTL     time.Duration `mapstructure:"staged_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	Retention     time.Duration `mapstructure:"retention"`
}

type DatabaseConfig struct {
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	Params   string `mapstructure:"params"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

var ledgerDrivers = map[string]struct{}{
	"none":    {},
	"sqlite3": {},
	"mysql":   {},
	"pgx":     {},
	"redis":   {},
}

// ledgerDriverAliases folds alternative spellings into registered driver names.
var ledgerDriverAliases = map[string]string{
	"sqlite":     "sqlite3",
	"postgres":   "pgx",
	"postgresql": "pgx",
}

// killGrace is how long a timed-out fpcalc may take to exit after being killed.
const killGrace = 5 * time.Second

// minStagedTTL is the floor for a derived ledger.staged_ttl.
const minStagedTTL = time.Hour

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "3000")
	v.SetDefault("server.public_dir", "public")
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("upload.dir", "uploads")
	v.SetDefault("upload.max_bytes", DefaultMaxUploadBytes)

	v.SetDefault("fpcalc.path", "fpcalc")
	v.SetDefault("fpcalc.timeout", 2*time.Minute)
	v.SetDefault("fpcalc.probe_timeout", 10*time.Second)

	v.SetDefault("worker.min_workers", 1)
	v.SetDefault("worker.max_workers", runtime.NumCPU())
	v.SetDefault("worker.queue_size", 64)
	v.SetDefault("worker.idle_timeout", 30*time.Second)

	v.SetDefault("ledger.driver", "sqlite3")
	v.SetDefault("ledger.staged_ttl", time.Duration(0)) // derived from InFlightBound
	v.SetDefault("ledger.sweep_interval", 10*time.Minute)
	v.SetDefault("ledger.retention", 7*24*time.Hour)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 0)
	v.SetDefault("database.username", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "audiofp")
	v.SetDefault("database.params", "")

	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.username", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.endpoint", "/metrics")
}

// Load reads configuration from defaults, an optional config file (JSON or YAML)
// and the environment. A .env file in the working directory is applied first.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// PORT is honoured for compatibility with common hosting platforms.
	if err := v.BindEnv("server.port", EnvPrefix+"_SERVER_PORT", "PORT"); err != nil {
		return nil, fmt.Errorf("bind port env: %w", err)
	}

	if path != "" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve config path: %w", err)
		}
		v.SetConfigFile(absPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", absPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	c.Server.Port = strings.TrimSpace(c.Server.Port)
	if c.Server.Port == "" {
		return errors.New("server.port must be configured")
	}
	if c.Upload.MaxBytes <= 0 {
		return errors.New("upload.max_bytes must be positive")
	}
	if strings.TrimSpace(c.Upload.Dir) == "" {
		return errors.New("upload.dir must be configured")
	}
	absUpload, err := filepath.Abs(c.Upload.Dir)
	if err != nil {
		return fmt.Errorf("resolve upload dir: %w", err)
	}
	c.Upload.Dir = absUpload

	c.Fpcalc.Path = strings.TrimSpace(c.Fpcalc.Path)
	if c.Fpcalc.Path == "" {
		return errors.New("fpcalc.path must be configured")
	}
	if c.Fpcalc.Timeout < 0 {
		return errors.New("fpcalc.timeout cannot be negative")
	}

	if c.Worker.MinWorkers < 0 {
		c.Worker.MinWorkers = 0
	}
	if c.Worker.MaxWorkers <= 0 {
		c.Worker.MaxWorkers = 1
	}
	if c.Worker.MaxWorkers < c.Worker.MinWorkers {
		c.Worker.MaxWorkers = c.Worker.MinWorkers
	}
	if c.Worker.QueueSize <= 0 {
		c.Worker.QueueSize = 1
	}

	c.Ledger.Driver = strings.ToLower(strings.TrimSpace(c.Ledger.Driver))
	if canonical, ok := ledgerDriverAliases[c.Ledger.Driver]; ok {
		c.Ledger.Driver = canonical
	}
	if _, ok := ledgerDrivers[c.Ledger.Driver]; !ok {
		return fmt.Errorf("unsupported ledger driver: %s", c.Ledger.Driver)
	}
	if err := c.normalizeStagedTTL(); err != nil {
		return err
	}

	if c.Metrics.Endpoint == "" {
		c.Metrics.Endpoint = "/metrics"
	}
	if !strings.HasPrefix(c.Metrics.Endpoint, "/") {
		c.Metrics.Endpoint = "/" + c.Metrics.Endpoint
	}
	return nil
}

// InFlightBound is the longest a staged file can wait for and run through
// fpcalc: every queued job ahead of it plus its own run, each capped by
// fpcalc.timeout. It is zero when fpcalc.timeout is zero.
func (c *Config) InFlightBound() time.Duration {
	if c.Fpcalc.Timeout <= 0 {
		return 0
	}
	workers := max(c.Worker.MaxWorkers, 1)
	rounds := (c.Worker.QueueSize+workers-1)/workers + 2
	return time.Duration(rounds) * (c.Fpcalc.Timeout + killGrace)
}

// normalizeStagedTTL keeps the sweeper from deleting files that a queued or
// running request still owns.
func (c *Config) normalizeStagedTTL() error {
	if c.Ledger.StagedTTL < 0 {
		return errors.New("ledger.staged_ttl cannot be negative")
	}
	if c.Ledger.Driver == "none" {
		return nil
	}
	bound := c.InFlightBound()
	if bound == 0 {
		return errors.New("fpcalc.timeout must be positive while the ledger sweeper is enabled; set ledger.driver=none to run without a timeout")
	}
	if c.Ledger.StagedTTL == 0 {
		c.Ledger.StagedTTL = max(minStagedTTL, 2*bound)
		return nil
	}
	if c.Ledger.StagedTTL <= bound {
		return fmt.Errorf("ledger.staged_ttl (%s) must exceed the longest time a request can hold its staged file (%s)", c.Ledger.StagedTTL, bound)
	}
	return nil
}

// String renders the configuration for startup logs with secrets masked.
func (c *Config) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "port=%s upload_dir=%s max_upload=%d ", c.Server.Port, c.Upload.Dir, c.Upload.MaxBytes)
	fmt.Fprintf(&sb, "fpcalc=%s timeout=%s ", c.Fpcalc.Path, c.Fpcalc.Timeout)
	fmt.Fprintf(&sb, "workers=%d..%d queue=%d ", c.Worker.MinWorkers, c.Worker.MaxWorkers, c.Worker.QueueSize)
	fmt.Fprintf(&sb, "ledger=%s ", c.Ledger.Driver)
	if c.Database.Password != "" || c.Redis.Password != "" {
		sb.WriteString("credentials=********")
	} else {
		sb.WriteString("credentials=(empty)")
	}
	return sb.String()
}
