package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates all runtime settings required by the daemon.
type Config struct {
	AppName     string
	Environment string
	HTTP        HTTPConfig
	Backend     BackendConfig
	Session     SessionConfig
	Storage     StorageConfig
	Redis       RedisConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Maintenance MaintenanceConfig
	Context     ContextConfig
	Logger      LoggerConfig
	Migrations  MigrationsConfig
}

type HTTPConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// BackendConfig points at the REST backend the lifecycle collaborates
// with: token refresh, logout notification, navigation tree.
type BackendConfig struct {
	BaseURL     string
	Timeout     time.Duration
	RefreshPath string
	LogoutPath  string
	NavTreePath string
}

// SessionConfig carries the lifecycle timings and navigation anchors.
type SessionConfig struct {
	IdleTimeout        time.Duration
	CountdownSeconds   int
	RefreshLeadTime    time.Duration
	ActivityEvents     []string
	LoginPath          string
	DefaultLandingPath string
	PublicPrefixes     []string
}

type StorageConfig struct {
	Path   string
	Bucket string
}

type RedisConfig struct {
	Enabled  bool
	URL      string
	Password string
	DB       int
}

type DatabaseConfig struct {
	Enabled         bool
	URL             string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
	SSLMode         string
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type MaintenanceConfig struct {
	SweepInterval  time.Duration
	AuditRetention time.Duration
}

type ContextConfig struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

type MigrationsConfig struct {
	Enabled bool
	Path    string
}

// defaultActivityEvents mirrors the front-end signal set that resets the
// idle detector.
var defaultActivityEvents = []string{"mousemove", "keydown", "click"}

// defaultPublicPrefixes are the path prefixes that bypass the session
// gate: authentication entry points, the tokenized external approval
// portal, and the error/maintenance pages.
var defaultPublicPrefixes = []string{
	"/login",
	"/register",
	"/password-reset",
	"/portal/",
	"/error",
	"/maintenance",
}

// Load reads configuration from environment variables (optionally .env)
// and applies sane defaults so the daemon can boot in any environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		AppName:     getString("APP_NAME", "adms-sessiond"),
		Environment: getString("APP_ENV", "development"),
		HTTP: HTTPConfig{
			Host:         getString("SERVER_HOST", "0.0.0.0"),
			Port:         getString("SERVER_PORT", "8080"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Backend: BackendConfig{
			BaseURL:     getString("BACKEND_BASE_URL", "http://localhost:9000"),
			Timeout:     getDuration("BACKEND_TIMEOUT", 10*time.Second),
			RefreshPath: getString("BACKEND_REFRESH_PATH", "/api/v1/auth/refresh"),
			LogoutPath:  getString("BACKEND_LOGOUT_PATH", "/api/v1/auth/logout"),
			NavTreePath: getString("BACKEND_NAVTREE_PATH", "/api/v1/navigation"),
		},
		Session: SessionConfig{
			IdleTimeout:        getDuration("SESSION_IDLE_TIMEOUT", 2*time.Minute),
			CountdownSeconds:   getInt("SESSION_COUNTDOWN_SECONDS", 60),
			RefreshLeadTime:    getDuration("SESSION_REFRESH_LEAD_TIME", 30*time.Second),
			ActivityEvents:     getStringSlice("SESSION_ACTIVITY_EVENTS", defaultActivityEvents),
			LoginPath:          getString("SESSION_LOGIN_PATH", "/login"),
			DefaultLandingPath: getString("SESSION_LANDING_PATH", "/dashboard"),
			PublicPrefixes:     getStringSlice("SESSION_PUBLIC_PREFIXES", defaultPublicPrefixes),
		},
		Storage: StorageConfig{
			Path:   getString("BOLTDB_PATH", "./data/sessiond.db"),
			Bucket: getString("BOLTDB_BUCKET", "kv"),
		},
		Redis: RedisConfig{
			Enabled:  getBool("REDIS_ENABLED", false),
			URL:      getString("REDIS_URL", "redis://localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0),
		},
		Database: DatabaseConfig{
			Enabled:         getBool("DB_ENABLED", false),
			URL:             os.Getenv("DATABASE_URL"),
			Host:            getString("DB_HOST", "localhost"),
			Port:            getString("DB_PORT", "5432"),
			Name:            getString("DB_NAME", "sessiond_db"),
			User:            getString("DB_USER", "sessiond_user"),
			Password:        os.Getenv("DB_PASSWORD"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 5),
			MaxConnLifetime: getDuration("DB_CONN_LIFETIME", time.Hour),
			SSLMode:         getString("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			Secret: os.Getenv("JWT_SECRET"),
			Issuer: getString("JWT_ISSUER", "adms"),
		},
		Maintenance: MaintenanceConfig{
			SweepInterval:  getDuration("MAINTENANCE_SWEEP_INTERVAL", time.Minute),
			AuditRetention: getDuration("AUDIT_RETENTION", 90*24*time.Hour),
		},
		Context: ContextConfig{
			RequestTimeout:  getDuration("REQUEST_TIMEOUT_SECONDS", 5*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:    getString("LOG_LEVEL", "info"),
			Encoding: getString("LOG_ENCODING", "json"),
		},
		Migrations: MigrationsConfig{
			Enabled: getBool("RUN_MIGRATIONS", true),
			Path:    getString("MIGRATIONS_PATH", "./assets/migrations"),
		},
	}

	if cfg.Database.Enabled && cfg.Database.URL == "" {
		cfg.Database.URL = buildPostgresURL(cfg)
	}

	return cfg, nil
}

// MustLoad panics if configuration cannot be loaded.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func buildPostgresURL(cfg *Config) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

func getStringSlice(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parts := strings.Split(val, ",")
	out := parts[:0]
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

// Address returns the HTTP listen address for the fasthttp server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}
