package goSession

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v9"
)

// Config holds every tunable of a [Client]. Zero values are filled from
// defaultConfig by [LoadConfig]; a Config built in code should start from
// [DefaultConfig].
type Config struct {
	API     APIConfig     `toml:"api"`
	Store   StoreConfig   `toml:"store"`
	Guard   GuardConfig   `toml:"guard"`
	Audit   AuditConfig   `toml:"audit"`
	Metrics MetricsConfig `toml:"metrics"`
	Log     LogConfig     `toml:"log"`
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig locates the identity service.
type APIConfig struct {
	BaseURL      string        `toml:"base_url" env:"GOSESSION_API_BASE_URL"`
	Timeout      time.Duration `toml:"timeout" env:"GOSESSION_API_TIMEOUT"`
	LoginPath    string        `toml:"login_path" env:"GOSESSION_API_LOGIN_PATH"`
	RegisterPath string        `toml:"register_path" env:"GOSESSION_API_REGISTER_PATH"`
	RefreshPath  string        `toml:"refresh_path" env:"GOSESSION_API_REFRESH_PATH"`
	UsersPath    string        `toml:"users_path" env:"GOSESSION_API_USERS_PATH"`
	ImagePath    string        `toml:"image_path" env:"GOSESSION_API_IMAGE_PATH"`
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreBackend names a token store implementation.
type StoreBackend string

const (
	StoreMemory StoreBackend = "memory"
	StoreRedis  StoreBackend = "redis"
	StoreSQLite StoreBackend = "sqlite"
	StoreFile   StoreBackend = "file"
)

// StoreConfig selects and configures the token store.
type StoreConfig struct {
	Backend     StoreBackend `toml:"backend" env:"GOSESSION_STORE_BACKEND"`
	Namespace   string       `toml:"namespace" env:"GOSESSION_STORE_NAMESPACE"`
	RedisAddr   string       `toml:"redis_addr" env:"GOSESSION_REDIS_ADDR"`
	RedisPrefix string       `toml:"redis_prefix" env:"GOSESSION_REDIS_PREFIX"`
	RedisDB     int          `toml:"redis_db" env:"GOSESSION_REDIS_DB"`
	SQLitePath  string       `toml:"sqlite_path" env:"GOSESSION_SQLITE_PATH"`
	FileDir     string       `toml:"file_dir" env:"GOSESSION_FILE_DIR"`
}

/*
====================================
GUARD CONFIG
====================================
*/

// GuardConfig controls where denied navigations go and what the user is told.
type GuardConfig struct {
	LoginRoute     string `toml:"login_route" env:"GOSESSION_GUARD_LOGIN_ROUTE"`
	ForbiddenRoute string `toml:"forbidden_route" env:"GOSESSION_GUARD_FORBIDDEN_ROUTE"`
	Title          string `toml:"title"`
	Message        string `toml:"message"`
}

/*
====================================
AUDIT / METRICS / LOG CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit relay.
type AuditConfig struct {
	Enabled    bool `toml:"enabled" env:"GOSESSION_AUDIT_ENABLED"`
	BufferSize int  `toml:"buffer_size"`
	DropIfFull bool `toml:"drop_if_full"`
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool `toml:"enabled" env:"GOSESSION_METRICS_ENABLED"`
	EnableLatencyHistograms bool `toml:"latency_histograms"`
}

// LogConfig configures the logger built by [NewLogger].
type LogConfig struct {
	Level        string `toml:"level" env:"GOSESSION_LOG_LEVEL"`
	Mode         string `toml:"mode" env:"GOSESSION_LOG_MODE"`
	Encoding     string `toml:"encoding" env:"GOSESSION_LOG_ENCODING"`
	ColorEnabled bool   `toml:"color"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL:      "http://localhost:8080",
			Timeout:      15 * time.Second,
			LoginPath:    "/api/auth/login",
			RegisterPath: "/api/auth/register",
			RefreshPath:  "/refresh",
			UsersPath:    "/api/auth/all-with-images",
			ImagePath:    "/api/auth/image",
		},
		Store: StoreConfig{
			Backend:     StoreMemory,
			Namespace:   "default",
			RedisAddr:   "localhost:6379",
			RedisPrefix: "gs",
			SQLitePath:  "goSession/tokens.db",
			FileDir:     "goSession",
		},
		Guard: GuardConfig{
			LoginRoute:     "login",
			ForbiddenRoute: "login",
			Title:          "ERROR",
			Message:        "Please Login First!",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
		Log: LogConfig{
			Level:    LevelInfo,
			Mode:     ModeProduction,
			Encoding: EncodingJSON,
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

/*
====================================
LOADING
====================================
*/

// LoadConfig reads the TOML file at path over the defaults, then applies
// GOSESSION_* environment overrides. An empty path skips the file.
// Relative store paths are resolved against the user config directory.
func LoadConfig(path string) (Config, error) {
	return LoadConfigFrom(defaultConfig(), path)
}

// LoadConfigFrom is [LoadConfig] with base in place of [DefaultConfig].
// Commands use it to change a default while still letting the file and the
// environment override it.
func LoadConfigFrom(base Config, path string) (Config, error) {
	cfg := cloneConfig(base)
	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("decode config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return Config{}, fmt.Errorf("config %s: unknown keys %v", path, undecoded)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	resolveStorePaths(&cfg.Store)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func resolveStorePaths(s *StoreConfig) {
	base, err := os.UserConfigDir()
	if err != nil {
		return
	}
	if s.SQLitePath != "" && s.SQLitePath != ":memory:" && !filepath.IsAbs(s.SQLitePath) {
		s.SQLitePath = filepath.Join(base, s.SQLitePath)
	}
	if s.FileDir != "" && !filepath.IsAbs(s.FileDir) {
		s.FileDir = filepath.Join(base, s.FileDir)
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first inconsistency in c.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("API BaseURL must be an absolute http(s) URL")
	}
	if c.API.Timeout < 0 {
		return errors.New("API Timeout must be >= 0")
	}
	for _, p := range []struct{ name, path string }{
		{"LoginPath", c.API.LoginPath},
		{"RegisterPath", c.API.RegisterPath},
		{"RefreshPath", c.API.RefreshPath},
		{"UsersPath", c.API.UsersPath},
		{"ImagePath", c.API.ImagePath},
	} {
		if !strings.HasPrefix(p.path, "/") {
			return fmt.Errorf("API %s must start with '/'", p.name)
		}
	}

	if strings.TrimSpace(c.Store.Namespace) == "" {
		return errors.New("Store Namespace must not be empty")
	}
	switch c.Store.Backend {
	case StoreMemory:
	case StoreRedis:
		if c.Store.RedisAddr == "" {
			return errors.New("Store RedisAddr required for redis backend")
		}
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			return errors.New("Store SQLitePath required for sqlite backend")
		}
	case StoreFile:
		if c.Store.FileDir == "" {
			return errors.New("Store FileDir required for file backend")
		}
	default:
		return fmt.Errorf("Store Backend %q is invalid", c.Store.Backend)
	}

	if c.Guard.LoginRoute == "" {
		return errors.New("Guard LoginRoute must not be empty")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	if _, ok := logLevelMap[c.Log.Level]; !ok && c.Log.Level != "" {
		return fmt.Errorf("Log Level %q is invalid", c.Log.Level)
	}
	if c.Log.Encoding != "" && c.Log.Encoding != EncodingJSON && c.Log.Encoding != EncodingConsole {
		return fmt.Errorf("Log Encoding %q is invalid", c.Log.Encoding)
	}
	return nil
}
