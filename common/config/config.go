package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service configuration
type Config struct {
	Service   ServiceConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Store     StoreConfig
	Mixer     MixerConfig
	Queue     QueueConfig
	RateLimit RateLimitConfig
	Telemetry TelemetryConfig
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name        string
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string
}

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	MaxConns    int
	MinConns    int
	MaxIdleTime time.Duration
	MaxLifetime time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// StoreConfig selects the key-value backend used for versions and mixer state
type StoreConfig struct {
	Backend   string // "memory", "redis" or "postgres"
	KeyPrefix string
	LockTTL   time.Duration
	LockWait  time.Duration
}

// MixerConfig holds mixer defaults (volumes are linear gain, durations in seconds)
type MixerConfig struct {
	VoiceVolume          float64
	MusicVolume          float64
	SFXVolume            float64
	DefaultVoiceDuration float64
	DefaultMusicDuration float64
	DefaultSFXDuration   float64
	VoiceWordsPerSecond  float64
}

// QueueConfig holds message queue settings
type QueueConfig struct {
	Type        string // only "memory" is supported
	BufferSize  int
	MixerTopic  string
	EnableHooks bool
}

// RateLimitConfig throttles write requests per ad and author; requires Redis
type RateLimitConfig struct {
	Enabled       bool
	UserWrites    int64
	LLMWrites     int64
	WindowSeconds int
}

// TelemetryConfig holds observability settings
type TelemetryConfig struct {
	EnablePprof bool
	PprofPort   int
}

// Load loads configuration from environment variables.
// A .env file in the working directory is applied first when present.
func Load(serviceName string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Port:        getEnvInt("PORT", 8080),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "text"),
		},
		Database: DatabaseConfig{
			Host:        getEnv("POSTGRES_HOST", "localhost"),
			Port:        getEnvInt("POSTGRES_PORT", 5432),
			Database:    getEnv("POSTGRES_DB", "adstudio"),
			User:        getEnv("POSTGRES_USER", "adstudio"),
			Password:    getEnv("POSTGRES_PASSWORD", "adstudio"),
			MaxConns:    getEnvInt("POSTGRES_MAX_CONNS", 20),
			MinConns:    getEnvInt("POSTGRES_MIN_CONNS", 2),
			MaxIdleTime: getEnvDuration("POSTGRES_MAX_IDLE_TIME", 30*time.Minute),
			MaxLifetime: getEnvDuration("POSTGRES_MAX_LIFETIME", 1*time.Hour),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Store: StoreConfig{
			Backend:   strings.ToLower(getEnv("STORE_BACKEND", "memory")),
			KeyPrefix: getEnv("STORE_KEY_PREFIX", ""),
			LockTTL:   getEnvDuration("STORE_LOCK_TTL", 10*time.Second),
			LockWait:  getEnvDuration("STORE_LOCK_WAIT", 5*time.Second),
		},
		Mixer: MixerConfig{
			VoiceVolume:          getEnvFloat("MIXER_VOICE_VOLUME", 1.0),
			MusicVolume:          getEnvFloat("MIXER_MUSIC_VOLUME", 0.3),
			SFXVolume:            getEnvFloat("MIXER_SFX_VOLUME", 0.7),
			DefaultVoiceDuration: getEnvFloat("MIXER_DEFAULT_VOICE_DURATION", 3.0),
			DefaultMusicDuration: getEnvFloat("MIXER_DEFAULT_MUSIC_DURATION", 30.0),
			DefaultSFXDuration:   getEnvFloat("MIXER_DEFAULT_SFX_DURATION", 2.0),
			VoiceWordsPerSecond:  getEnvFloat("MIXER_VOICE_WORDS_PER_SECOND", 2.5),
		},
		Queue: QueueConfig{
			Type:        getEnv("QUEUE_TYPE", "memory"),
			BufferSize:  getEnvInt("QUEUE_BUFFER_SIZE", 1000),
			MixerTopic:  getEnv("QUEUE_MIXER_TOPIC", "mixer.rebuilt"),
			EnableHooks: getEnvBool("QUEUE_ENABLE_HOOKS", true),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getEnvBool("RATE_LIMIT_ENABLED", false),
			UserWrites:    int64(getEnvInt("RATE_LIMIT_USER_WRITES", 120)),
			LLMWrites:     int64(getEnvInt("RATE_LIMIT_LLM_WRITES", 30)),
			WindowSeconds: getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 60),
		},
		Telemetry: TelemetryConfig{
			EnablePprof: getEnvBool("ENABLE_PPROF", false),
			PprofPort:   getEnvInt("PPROF_PORT", 6060),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}

	switch c.Store.Backend {
	case "memory", "redis":
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required for postgres store")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			return fmt.Errorf("max_conns must be >= min_conns")
		}
	default:
		return fmt.Errorf("unknown store backend: %s", c.Store.Backend)
	}

	if c.Store.LockTTL <= 0 || c.Store.LockWait <= 0 {
		return fmt.Errorf("store lock ttl and wait must be positive")
	}

	if c.Mixer.VoiceVolume < 0 || c.Mixer.MusicVolume < 0 || c.Mixer.SFXVolume < 0 {
		return fmt.Errorf("mixer volumes must be non-negative")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.UserWrites <= 0 || c.RateLimit.LLMWrites <= 0 || c.RateLimit.WindowSeconds <= 0 {
			return fmt.Errorf("rate limits and window must be positive")
		}
	}

	if c.Mixer.VoiceWordsPerSecond <= 0 {
		return fmt.Errorf("voice words per second must be positive")
	}

	return nil
}

// UsesDatabase reports whether the configured store needs a Postgres pool
func (c *Config) UsesDatabase() bool {
	return c.Store.Backend == "postgres"
}

// UsesRedis reports whether a Redis client is needed, either as the store or for rate limiting
func (c *Config) UsesRedis() bool {
	return c.Store.Backend == "redis" || c.RateLimit.Enabled
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
	)
}

// RedisAddr returns host:port for the Redis client
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
