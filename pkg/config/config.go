package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultAPIKey is the shared secret used when none is configured
const DefaultAPIKey = "iotserver"

// Config holds the application configuration
type Config struct {
	APIKey         string   `mapstructure:"api_key"`
	Host           string   `mapstructure:"api_host"`
	Port           int      `mapstructure:"api_port"`
	AllowedOrigins []string `mapstructure:"server_allowed_origins"`

	DatabaseURL string `mapstructure:"database_url"`
	DBHost      string `mapstructure:"db_host"`
	DBPort      int    `mapstructure:"db_port"`
	DBUser      string `mapstructure:"db_user"`
	DBPassword  string `mapstructure:"db_password"`
	DBName      string `mapstructure:"db_name"`
	DBSSLMode   string `mapstructure:"db_sslmode"`

	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	LatestTTL     time.Duration `mapstructure:"latest_ttl"`

	MQTTBroker      string `mapstructure:"mqtt_broker"`
	MQTTClientID    string `mapstructure:"mqtt_client_id"`
	MQTTUsername    string `mapstructure:"mqtt_username"`
	MQTTPassword    string `mapstructure:"mqtt_password"`
	MQTTIngestTopic string `mapstructure:"mqtt_ingest_topic"`
	MQTTEventsTopic string `mapstructure:"mqtt_events_topic"`

	HubQueueSize       int           `mapstructure:"hub_queue_size"`
	HubDeliveryTimeout time.Duration `mapstructure:"hub_delivery_timeout"`

	ExportMaxRows int `mapstructure:"export_max_rows"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_key", DefaultAPIKey)
	v.SetDefault("api_host", "0.0.0.0")
	v.SetDefault("api_port", 8059)
	v.SetDefault("server_allowed_origins", []string{"http://localhost:5173", "http://localhost:3000"})

	v.SetDefault("database_url", "")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", 5432)
	v.SetDefault("db_user", "sensor_user")
	v.SetDefault("db_password", "sensor_pass")
	v.SetDefault("db_name", "sensor_db")
	v.SetDefault("db_sslmode", "disable")

	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("latest_ttl", 24*time.Hour)

	v.SetDefault("mqtt_broker", "")
	v.SetDefault("mqtt_client_id", "sensormaestro")
	v.SetDefault("mqtt_username", "")
	v.SetDefault("mqtt_password", "")
	v.SetDefault("mqtt_ingest_topic", "sensors/ingest")
	v.SetDefault("mqtt_events_topic", "sensors/events")

	v.SetDefault("hub_queue_size", 64)
	v.SetDefault("hub_delivery_timeout", 2*time.Second)

	v.SetDefault("export_max_rows", 100000)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "auto")
}

// Load reads the configuration from defaults, an optional config file and the environment.
// Environment variables use the upper-case key, e.g. API_KEY or DB_HOST.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	origins := make([]string, 0, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	cfg.AllowedOrigins = origins

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks required values and ranges
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return errors.New("api_key must not be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("api_port must be between 1 and 65535, got %d", c.Port)
	}
	if c.HubQueueSize < 1 {
		return fmt.Errorf("hub_queue_size must be positive, got %d", c.HubQueueSize)
	}
	if c.HubDeliveryTimeout <= 0 {
		return fmt.Errorf("hub_delivery_timeout must be positive, got %s", c.HubDeliveryTimeout)
	}
	if c.ExportMaxRows < 1 {
		return fmt.Errorf("export_max_rows must be positive, got %d", c.ExportMaxRows)
	}
	return nil
}

// Addr returns the HTTP listen address
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// DSN returns the Postgres connection string
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

// UsesDefaultAPIKey reports whether the shared secret was left at its default
func (c *Config) UsesDefaultAPIKey() bool {
	return c.APIKey == DefaultAPIKey
}
