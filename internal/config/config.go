package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"taximeter/internal/domain"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NewRelic NewRelicConfig
	Meter    MeterConfig
	Log      LogConfig

	// Rates overrides or extends the built-in city tariffs.
	Rates map[domain.CityKey]domain.RateProfile
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
}

// DatabaseConfig holds settings store configuration. Driver is "postgres"
// for a shared server or "sqlite" for a stand-alone meter.
type DatabaseConfig struct {
	Driver     string
	Host       string
	Port       string
	User       string
	Password   string
	DBName     string
	SSLMode    string
	SQLitePath string
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// MeterConfig holds metering behaviour.
type MeterConfig struct {
	TickInterval time.Duration
	DefaultCity  domain.CityKey
	LockTTL      time.Duration
	SampleBuffer int
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level string
}

// Load loads configuration from environment variables and, when CONFIG_FILE
// is set, from that file. Environment variables win.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetString("server.port"),
			ReadTimeout:    v.GetDuration("server.read_timeout"),
			WriteTimeout:   v.GetDuration("server.write_timeout"),
			AllowedOrigins: v.GetStringSlice("server.allowed_origins"),
		},
		Database: DatabaseConfig{
			Driver:     v.GetString("db.driver"),
			Host:       v.GetString("db.host"),
			Port:       v.GetString("db.port"),
			User:       v.GetString("db.user"),
			Password:   v.GetString("db.password"),
			DBName:     v.GetString("db.name"),
			SSLMode:    v.GetString("db.sslmode"),
			SQLitePath: v.GetString("db.sqlite_path"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		NewRelic: NewRelicConfig{
			AppName:    v.GetString("new_relic.app_name"),
			LicenseKey: v.GetString("new_relic.license_key"),
			Enabled:    v.GetBool("new_relic.enabled"),
		},
		Meter: MeterConfig{
			TickInterval: v.GetDuration("meter.tick_interval"),
			DefaultCity:  domain.CityKey(v.GetString("meter.default_city")),
			LockTTL:      v.GetDuration("meter.lock_ttl"),
			SampleBuffer: v.GetInt("meter.sample_buffer"),
		},
		Log: LogConfig{
			Level: v.GetString("log.level"),
		},
	}

	if err := v.UnmarshalKey("rates", &cfg.Rates); err != nil {
		return nil, fmt.Errorf("failed to decode rates: %w", err)
	}

	if cfg.Database.Driver != "postgres" && cfg.Database.Driver != "sqlite" {
		return nil, fmt.Errorf("unsupported db driver %q", cfg.Database.Driver)
	}
	if cfg.Meter.TickInterval <= 0 {
		return nil, fmt.Errorf("meter tick interval must be positive, got %s", cfg.Meter.TickInterval)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("config_file", "")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "postgres")
	v.SetDefault("db.name", "taximeter")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.sqlite_path", "taximeter.db")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("new_relic.app_name", "taximeter")
	v.SetDefault("new_relic.license_key", "")
	v.SetDefault("new_relic.enabled", false)

	v.SetDefault("meter.tick_interval", time.Second)
	v.SetDefault("meter.default_city", string(domain.CityShanghai))
	v.SetDefault("meter.lock_ttl", 12*time.Hour)
	v.SetDefault("meter.sample_buffer", 64)

	v.SetDefault("log.level", "info")
}
