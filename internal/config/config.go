package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"family-tree-go/pkg/logger"
)

const (
	StoreBackendPostgres = "postgres"
	StoreBackendBadger   = "badger"
	StoreBackendMemory   = "memory"

	CacheBackendNone   = "none"
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

type Config struct {
	HTTP   HTTPConfig
	Env    string
	Store  StoreConfig
	DB     DBConfig
	Badger BadgerConfig
	Redis  RedisConfig
	Cache  CacheConfig
	Tree   TreeConfig
	Auth   AuthConfig
	CORS   CORSConfig
}

type HTTPConfig struct {
	Port            string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	MetricsEnabled  bool
}

type StoreConfig struct {
	Backend string
	// MigrateOnStart runs the embedded SQL migrations when the postgres
	// backend is selected.
	MigrateOnStart bool
}

type DBConfig struct {
	DSN             string
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	TimeZone        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type BadgerConfig struct {
	Path           string
	InMemory       bool
	SyncWrites     bool
	GCInterval     time.Duration
	GCDiscardRatio float64
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

type CacheConfig struct {
	Backend string
	TTL     time.Duration
}

type TreeConfig struct {
	MaxDepth         int
	ClimbLimit       int
	FetchConcurrency int
}

type AuthConfig struct {
	URL            string
	PublishableKey string
	Timeout        time.Duration
	// CacheTTL keeps resolved tokens in memory; zero disables the cache.
	CacheTTL       time.Duration
	SkipAuth       bool
	MockUserID     string
	MockUserEmail  string
}

type CORSConfig struct {
	AllowedOrigins []string
}

func Load(log logger.Logger) (Config, error) {
	if err := loadDotEnv(log); err != nil {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		HTTP: HTTPConfig{
			Port:            getEnv("HTTP_PORT", "8080"),
			RequestTimeout:  getEnvDuration("HTTP_REQUEST_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getEnvDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
			MetricsEnabled:  getEnvBool("METRICS_ENABLED", true),
		},
		Env: getEnv("ENV", "development"),
		Store: StoreConfig{
			Backend:        strings.ToLower(getEnv("STORE_BACKEND", StoreBackendPostgres)),
			MigrateOnStart: getEnvBool("DB_MIGRATE_ON_START", true),
		},
		DB: DBConfig{
			DSN:             getEnv("DB_DSN", ""),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Name:            getEnv("DB_NAME", "family_tree"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			TimeZone:        getEnv("DB_TIMEZONE", "UTC"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Badger: BadgerConfig{
			Path:           getEnv("BADGER_PATH", "data/profiles"),
			InMemory:       getEnvBool("BADGER_IN_MEMORY", false),
			SyncWrites:     getEnvBool("BADGER_SYNC_WRITES", true),
			GCInterval:     getEnvDuration("BADGER_GC_INTERVAL", 5*time.Minute),
			GCDiscardRatio: getEnvFloat("BADGER_GC_DISCARD_RATIO", 0.5),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", "localhost:6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvInt("REDIS_DB", 0),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "family-tree:profile:"),
		},
		Cache: CacheConfig{
			Backend: strings.ToLower(getEnv("CACHE_BACKEND", CacheBackendMemory)),
			TTL:     getEnvDuration("PROFILE_CACHE_TTL", time.Minute),
		},
		Tree: TreeConfig{
			MaxDepth:         getEnvInt("TREE_MAX_DEPTH", 3),
			ClimbLimit:       getEnvInt("TREE_CLIMB_LIMIT", 5),
			FetchConcurrency: getEnvInt("TREE_FETCH_CONCURRENCY", 4),
		},
		Auth: AuthConfig{
			URL:            getEnv("AUTH_URL", getEnv("SUPABASE_URL", "")),
			PublishableKey: getEnv("AUTH_PUBLISHABLE_KEY", getEnv("SUPABASE_PUBLISHABLE_KEY", "")),
			Timeout:        getEnvDuration("AUTH_TIMEOUT", 5*time.Second),
			CacheTTL:       getEnvDuration("AUTH_CACHE_TTL", 30*time.Second),
			SkipAuth:       getEnvBool("AUTH_SKIP", false),
			MockUserID:     getEnv("AUTH_MOCK_USER_ID", "00000000-0000-0000-0000-000000000001"),
			MockUserEmail:  getEnv("AUTH_MOCK_USER_EMAIL", ""),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Store.Backend {
	case StoreBackendPostgres, StoreBackendBadger, StoreBackendMemory:
	default:
		return fmt.Errorf("STORE_BACKEND: unsupported value %q", c.Store.Backend)
	}
	switch c.Cache.Backend {
	case CacheBackendNone, CacheBackendMemory, CacheBackendRedis:
	default:
		return fmt.Errorf("CACHE_BACKEND: unsupported value %q", c.Cache.Backend)
	}
	if !c.Auth.SkipAuth && c.Auth.URL == "" {
		return fmt.Errorf("AUTH_URL is required unless AUTH_SKIP is set")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}

func (c DBConfig) GetDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return "host=" + c.Host +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Name +
		" port=" + c.Port +
		" sslmode=" + c.SSLMode +
		" TimeZone=" + c.TimeZone
}
