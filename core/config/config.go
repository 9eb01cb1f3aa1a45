package config

import (
	"fmt"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"go-meeting-core/core/constants"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Scheduling SchedulingConfig `mapstructure:"scheduling"`
	Calendar   CalendarConfig   `mapstructure:"calendar"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Log        LogConfig        `mapstructure:"log"`
	Otel       OtelConfig       `mapstructure:"otel"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// Secret for signing public approval action tokens.
	TokenSecret string `mapstructure:"token_secret"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// When false the in-process LRU cache is used instead.
	Enabled bool `mapstructure:"enabled"`
}

type SchedulingConfig struct {
	SlotDurationMinutes   int `mapstructure:"slot_duration_minutes"`
	GenerationWindowDays  int `mapstructure:"generation_window_days"`
	QueryCacheTTLSeconds  int `mapstructure:"query_cache_ttl_seconds"`
	SyncIntervalMinutes   int `mapstructure:"sync_interval_minutes"`
	MaxConnectionsPerUser int `mapstructure:"max_connections_per_user"`
	MaxConcurrentBookings int `mapstructure:"max_concurrent_bookings"`
}

type CalendarConfig struct {
	GoogleClientID     string `mapstructure:"google_client_id"`
	GoogleClientSecret string `mapstructure:"google_client_secret"`
	// 32-byte hex key for encrypting provider tokens at rest.
	TokenCipherKey string `mapstructure:"token_cipher_key"`
	AllowedDomains []string `mapstructure:"allowed_domains"`
	BlockedDomains []string `mapstructure:"blocked_domains"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type StorageConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

type LogConfig struct {
	Format string `mapstructure:"format"`
	Level  string `mapstructure:"level"`
}

type OtelConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

var (
	instance *Config
	mu       sync.RWMutex
)

// Load reads .env (if present) and config.yaml, overlaying MEETCORE_* env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("MEETCORE")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	mu.Lock()
	instance = &cfg
	mu.Unlock()
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 7070)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", constants.DatabaseSSLMode)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("scheduling.slot_duration_minutes", constants.DefaultSlotDurationMinutes)
	v.SetDefault("scheduling.generation_window_days", constants.DefaultGenerationWindowDays)
	v.SetDefault("scheduling.query_cache_ttl_seconds", constants.DefaultQueryCacheTTLSeconds)
	v.SetDefault("scheduling.sync_interval_minutes", constants.DefaultSyncIntervalMinutes)
	v.SetDefault("scheduling.max_connections_per_user", constants.DefaultMaxConnectionsPerUser)
	v.SetDefault("scheduling.max_concurrent_bookings", constants.DefaultMaxConcurrentBookings)
	v.SetDefault("log.format", "json")
	v.SetDefault("log.level", "info")
}

func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return instance
}

// GetSafe reports whether the config has been loaded.
func GetSafe() (*Config, bool) {
	mu.RLock()
	defer mu.RUnlock()
	return instance, instance != nil
}
