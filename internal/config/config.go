// Package config contains everything related to configuration
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
)

// ErrMissingCredentials is returned when no Cloudflare credentials are set.
var ErrMissingCredentials = errors.New("CF_API_TOKEN or CF_API_KEY and CF_API_EMAIL are required")

// Backend selects the key-value store implementation.
type Backend string

const (
	BackendSQLite Backend = "sqlite"
	BackendMySQL  Backend = "mysql"
	BackendRedis  Backend = "redis"
	BackendMemory Backend = "memory"
)

// Config holds the process configuration. Operator settings such as account
// IDs and thresholds live in the key-value store, not here.
type Config struct {
	APIToken string
	APIKey   string
	APIEmail string

	GraphQLEndpoint string
	APIBaseURL      string

	Backend      Backend
	DatabasePath string
	MySQLDSN     string
	RedisURL     string

	ListenAddr    string
	GinMode       string
	DashboardUser string
	DashboardURL  string
	SettingsPath  string

	PreWarmInterval      time.Duration
	PurgeInterval        time.Duration
	DesktopNotifications bool

	LogLevel string
	LogPath  string
}

// Default values
const (
	defaultGraphQLEndpoint = "https://api.cloudflare.com/client/v4/graphql"
	defaultAPIBaseURL      = "https://api.cloudflare.com/client/v4"
	defaultListenAddr      = ":8080"
	defaultDashboardUser   = "default"
	defaultDashboardURL    = "http://localhost:8080"
	defaultPreWarmInterval = 6 * time.Hour
	defaultPurgeInterval   = time.Hour
)

// Load reads configuration from .env files and environment variables.
func Load() (*Config, error) {
	// Try loading .env from multiple locations
	envPaths := getEnvPaths()
	for _, path := range envPaths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			break
		}
	}

	cfg := &Config{
		APIToken:             getEnvString("CF_API_TOKEN", ""),
		APIKey:               getEnvString("CF_API_KEY", ""),
		APIEmail:             getEnvString("CF_API_EMAIL", ""),
		GraphQLEndpoint:      getEnvString("CF_GRAPHQL_ENDPOINT", defaultGraphQLEndpoint),
		APIBaseURL:           strings.TrimRight(getEnvString("CF_API_BASE_URL", defaultAPIBaseURL), "/"),
		Backend:              Backend(strings.ToLower(getEnvString("KV_BACKEND", string(BackendSQLite)))),
		DatabasePath:         getEnvString("DATABASE_PATH", getDefaultDatabasePath()),
		MySQLDSN:             getEnvString("MYSQL_DSN", ""),
		RedisURL:             getEnvString("REDIS_URL", ""),
		ListenAddr:           getEnvString("LISTEN_ADDR", defaultListenAddr),
		GinMode:              getEnvString("GIN_MODE", "release"),
		DashboardUser:        getEnvString("DASHBOARD_USER", defaultDashboardUser),
		DashboardURL:         getEnvString("DASHBOARD_URL", defaultDashboardURL),
		SettingsPath:         getEnvString("SETTINGS_PATH", ""),
		PreWarmInterval:      getEnvDuration("PREWARM_INTERVAL", defaultPreWarmInterval),
		PurgeInterval:        getEnvDuration("PURGE_INTERVAL", defaultPurgeInterval),
		DesktopNotifications: getEnvBool("DESKTOP_NOTIFICATIONS", false),
		LogLevel:             getEnvString("LOG_LEVEL", "info"),
		LogPath:              getEnvString("LOG_PATH", getDefaultLogPath()),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Backend == BackendSQLite {
		if err := ensureDir(filepath.Dir(cfg.DatabasePath)); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate checks credentials and backend settings.
func (c *Config) Validate() error {
	if c.APIToken == "" && (c.APIKey == "" || c.APIEmail == "") {
		return ErrMissingCredentials
	}

	switch c.Backend {
	case BackendSQLite:
		if c.DatabasePath == "" {
			return fmt.Errorf("DATABASE_PATH is required for the sqlite backend")
		}
	case BackendMySQL:
		if c.MySQLDSN == "" {
			return fmt.Errorf("MYSQL_DSN is required for the mysql backend")
		}
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown KV_BACKEND %q", c.Backend)
	}

	if c.PreWarmInterval <= 0 {
		return fmt.Errorf("PREWARM_INTERVAL must be positive")
	}

	return nil
}

// StorageLocation describes where the key-value store lives, with any
// password removed.
func (c *Config) StorageLocation() string {
	switch c.Backend {
	case BackendSQLite:
		return c.DatabasePath
	case BackendMySQL:
		dsn, err := mysql.ParseDSN(c.MySQLDSN)
		if err != nil {
			return "(invalid dsn)"
		}
		dsn.Passwd = ""
		return dsn.FormatDSN()
	case BackendRedis:
		u, err := url.Parse(c.RedisURL)
		if err != nil {
			return "(invalid url)"
		}
		return u.Redacted()
	default:
		return "in-memory"
	}
}

// AuthMethod names the Cloudflare credential type in use.
func (c *Config) AuthMethod() string {
	if c.APIToken != "" {
		return "API token"
	}
	return "Global API key"
}

// getEnvPaths returns a list of paths to check for .env files.
func getEnvPaths() []string {
	var paths []string

	// Current directory
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "cfud", ".env"))
	}

	// Parent directory (useful for development)
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(cwd), ".env"))
	}

	return paths
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "cfud")
}

// getDefaultDatabasePath returns the default path for the SQLite database.
func getDefaultDatabasePath() string {
	dir := configDir()
	if dir == "" {
		return "cfud.db"
	}
	return filepath.Join(dir, "cfud.db")
}

// getDefaultLogPath is where the TUI writes logs while it owns the terminal.
func getDefaultLogPath() string {
	dir := configDir()
	if dir == "" {
		return "cfud.log"
	}
	return filepath.Join(dir, "cfud.log")
}

// getEnvString retrieves a string environment variable or returns the default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable or returns the default.
// Accepts values like "30s", "1m", "500ms".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		// Try parsing as seconds if no unit specified
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns the default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// ensureDir creates a directory and all parent directories if they don't exist.
func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0o750)
}
