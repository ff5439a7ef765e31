package config

import (
	"errors"
	"log"

	"github.com/spf13/viper"
)

type WebServerConfig struct {
	Port            string `mapstructure:"port"`
	IP              string `mapstructure:"ip"`
	BasePath        string `mapstructure:"base_path"`
	ReadTimeout     int    `mapstructure:"read_timeout"`
	WriteTimeout    int    `mapstructure:"write_timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Engine          string `mapstructure:"engine"` // postgres, mysql or sqlite
	DSN             string `mapstructure:"dsn"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // seconds
}

type RedisConfig struct {
	Address          string `mapstructure:"address"`
	Password         string `mapstructure:"password"`
	DB               int    `mapstructure:"db"`
	PoolSize         int    `mapstructure:"pool_size"`
	MinIdleConns     int    `mapstructure:"min_idle_conns"`
	OperationTimeout int    `mapstructure:"operation_timeout"`
}

type CacheConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	Backend          string `mapstructure:"backend"` // memory or redis
	DefaultTTLMs     int    `mapstructure:"default_ttl_ms"`
	CollectionsTTLMs int    `mapstructure:"collections_ttl_ms"`
	ActivityTTLMs    int    `mapstructure:"activity_ttl_ms"`
	TimeseriesTTLMs  int    `mapstructure:"timeseries_ttl_ms"`
	SweepInterval    int    `mapstructure:"sweep_interval"` // seconds
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type AdminConfig struct {
	APIKey      string `mapstructure:"api_key"`
	AuthEnabled bool   `mapstructure:"auth_enabled"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	WebServer WebServerConfig `mapstructure:"webserver"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Log       LogConfig       `mapstructure:"log"`
}

func LoadConfig() (Config, error) {
	var config Config

	viper.AddConfigPath(".")
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Enable environment variable overrides
	viper.SetEnvPrefix("USAGETRACKER")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults plus env cover everything
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Printf("Error reading config file: %v", err)
			return config, err
		}
	}

	if err := viper.Unmarshal(&config); err != nil {
		log.Printf("Unable to decode into struct: %v", err)
		return config, err
	}

	return config, nil
}

func MustLoadConfig() Config {
	config, err := LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	return config
}

func setDefaults() {
	// WebServer defaults
	viper.SetDefault("webserver.port", "8056")
	viper.SetDefault("webserver.ip", "127.0.0.1")
	viper.SetDefault("webserver.base_path", "/usage-tracker")
	viper.SetDefault("webserver.read_timeout", 15)
	viper.SetDefault("webserver.write_timeout", 15)
	viper.SetDefault("webserver.shutdown_timeout", 30)

	// Database defaults
	viper.SetDefault("database.engine", "sqlite")
	viper.SetDefault("database.dsn", "directus.db")
	viper.SetDefault("database.max_open_conns", 10)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 1800)

	// Redis defaults (used when cache.backend is redis)
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.min_idle_conns", 5)
	viper.SetDefault("redis.operation_timeout", 5)

	// Cache defaults
	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.backend", "memory")
	viper.SetDefault("cache.default_ttl_ms", 300000)     // 5 minutes
	viper.SetDefault("cache.collections_ttl_ms", 300000) // 5 minutes
	viper.SetDefault("cache.activity_ttl_ms", 300000)    // 5 minutes
	viper.SetDefault("cache.timeseries_ttl_ms", 120000)  // 2 minutes
	viper.SetDefault("cache.sweep_interval", 300)        // 5 minutes

	// RateLimit defaults
	viper.SetDefault("ratelimit.requests_per_second", 10.0)
	viper.SetDefault("ratelimit.burst", 20)

	// Admin defaults
	viper.SetDefault("admin.api_key", "")
	viper.SetDefault("admin.auth_enabled", false)

	// Log defaults
	viper.SetDefault("log.level", "info")
}
