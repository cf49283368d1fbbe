package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultJWTSecret is the signing secret used when none is configured.
// It is public knowledge and must be overridden in real deployments.
const DefaultJWTSecret = "homelab-dashboard-insecure-default-secret-change-me"

// EnvironmentProduction disables error details in API responses and
// refuses the default JWT secret.
const EnvironmentProduction = "production"

// Store drivers for the credential store.
const (
	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
)

const (
	minJWTSecretLength = 32
	minBcryptCost      = 10
	maxBcryptCost      = 31
	hoursPerDay        = 24
)

// Config is the root configuration structure for the dashboard backend.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Environment string          `yaml:"environment"`
	API         APIConfig       `yaml:"api"`
	Store       StoreConfig     `yaml:"store"`
	Database    DatabaseConfig  `yaml:"database"`
	Postgres    PostgresConfig  `yaml:"postgres"`
	MongoDB     MongoDBConfig   `yaml:"mongodb"`
	Redis       RedisConfig     `yaml:"redis"`
	MQTT        MQTTConfig      `yaml:"mqtt"`
	InfluxDB    InfluxDBConfig  `yaml:"influxdb"`
	WebSocket   WebSocketConfig `yaml:"websocket"`
	Logging     LoggingConfig   `yaml:"logging"`
	Security    SecurityConfig  `yaml:"security"`
	Dashboard   DashboardConfig `yaml:"dashboard"`
	Seed        SeedConfig      `yaml:"seed"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// StoreConfig selects the backend that holds user records.
type StoreConfig struct {
	Driver string `yaml:"driver"`
}

// DatabaseConfig contains SQLite database settings.
// SQLite always backs the audit trail, and the users table when store.driver is "sqlite".
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// PostgresConfig contains PostgreSQL pool settings.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
}

// MongoDBConfig contains MongoDB connection settings.
type MongoDBConfig struct {
	URI                    string        `yaml:"uri"`
	Database               string        `yaml:"database"`
	MaxPoolSize            uint64        `yaml:"max_pool_size"`
	ServerSelectionTimeout time.Duration `yaml:"server_selection_timeout"`
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// WebSocketConfig contains settings for the admin event stream.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains authentication settings.
type SecurityConfig struct {
	JWT        JWTConfig       `yaml:"jwt"`
	BcryptCost int             `yaml:"bcrypt_cost"`
	RateLimit  RateLimitConfig `yaml:"rate_limit"`
}

// JWTConfig contains token signing settings.
type JWTConfig struct {
	Secret    string `yaml:"secret"`
	ExpiresIn string `yaml:"expires_in"`
	Issuer    string `yaml:"issuer"`
}

// RateLimitConfig limits requests to the login and register endpoints per client IP.
type RateLimitConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Window      time.Duration `yaml:"window"`
	MaxRequests int           `yaml:"max_requests"`
}

// DashboardConfig lists the self-hosted services shown on the dashboard.
type DashboardConfig struct {
	Services []ServiceConfig `yaml:"services"`
}

// ServiceConfig describes one dashboard link.
type ServiceConfig struct {
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`
	Status string `yaml:"status"`
}

// SeedConfig controls the first-run administrator account.
type SeedConfig struct {
	Enabled        bool   `yaml:"enabled"`
	AdminEmail     string `yaml:"admin_email"`
	AdminPassword  string `yaml:"admin_password"`
	AdminFirstName string `yaml:"admin_first_name"`
	AdminLastName  string `yaml:"admin_last_name"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern HOMELAB_SECTION_KEY,
// for example HOMELAB_DATABASE_PATH or HOMELAB_JWT_SECRET.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration with environment overrides applied.
// It is used when no config file exists, so the dashboard can run from a .env alone.
func Default() (*Config, error) {
	cfg := defaultConfig()
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Environment: "development",
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 7777,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			CORS: CORSConfig{
				AllowedOrigins: []string{"http://localhost:3000"},
			},
		},
		Store: StoreConfig{
			Driver: StoreDriverSQLite,
		},
		Database: DatabaseConfig{
			Path:        "./data/homelab.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Postgres: PostgresConfig{
			MaxConns:        10,
			MinConns:        1,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 30 * time.Minute,
		},
		MongoDB: MongoDBConfig{
			URI:                    "mongodb://localhost:27017",
			Database:               "homelab",
			MaxPoolSize:            10,
			ServerSelectionTimeout: 5 * time.Second,
		},
		Redis: RedisConfig{
			URL: "redis://localhost:6379/0",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "homelab-dashboard",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 4096,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				Secret:    DefaultJWTSecret,
				ExpiresIn: "24h",
				Issuer:    "homelab-dashboard",
			},
			BcryptCost: minBcryptCost,
			RateLimit: RateLimitConfig{
				Enabled:     true,
				Window:      15 * time.Minute,
				MaxRequests: 100,
			},
		},
		Seed: SeedConfig{
			Enabled:        true,
			AdminEmail:     "admin@homelab.local",
			AdminFirstName: "Admin",
			AdminLastName:  "User",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: HOMELAB_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("HOMELAB_ENV"); v != "" {
		cfg.Environment = v
	}

	// API
	if v := os.Getenv("HOMELAB_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("HOMELAB_API_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HOMELAB_API_PORT: %w", err)
		}
		cfg.API.Port = port
	}
	if v := os.Getenv("HOMELAB_CORS_ORIGIN"); v != "" {
		cfg.API.CORS.AllowedOrigins = strings.Split(v, ",")
	}

	// Storage
	if v := os.Getenv("HOMELAB_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("HOMELAB_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("HOMELAB_POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("HOMELAB_MONGODB_URI"); v != "" {
		cfg.MongoDB.URI = v
	}
	if v := os.Getenv("HOMELAB_REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("HOMELAB_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}

	// MQTT
	if v := os.Getenv("HOMELAB_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("HOMELAB_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("HOMELAB_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("HOMELAB_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security - always override the JWT secret outside development
	if v := os.Getenv("HOMELAB_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
	if v := os.Getenv("HOMELAB_JWT_EXPIRES_IN"); v != "" {
		cfg.Security.JWT.ExpiresIn = v
	}
	if v := os.Getenv("HOMELAB_SEED_ADMIN_PASSWORD"); v != "" {
		cfg.Seed.AdminPassword = v
	}

	return nil
}

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	switch c.Store.Driver {
	case StoreDriverSQLite:
	case StoreDriverPostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, "postgres.dsn is required when store.driver is postgres")
		}
	case StoreDriverMongo:
		if c.MongoDB.URI == "" || c.MongoDB.Database == "" {
			errs = append(errs, "mongodb.uri and mongodb.database are required when store.driver is mongo")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q must be one of sqlite, postgres, mongo", c.Store.Driver))
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.Redis.Enabled && c.Redis.URL == "" {
		errs = append(errs, "redis.url is required when redis is enabled")
	}

	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set HOMELAB_JWT_SECRET)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}
	if c.IsProduction() && c.UsesDefaultSecret() {
		errs = append(errs, "security.jwt.secret must be changed from the default in production")
	}
	if _, err := c.Security.JWT.TTL(); err != nil {
		errs = append(errs, fmt.Sprintf("security.jwt.expires_in: %v", err))
	}

	if c.Security.BcryptCost < minBcryptCost || c.Security.BcryptCost > maxBcryptCost {
		errs = append(errs, "security.bcrypt_cost must be between 10 and 31")
	}

	if c.Security.RateLimit.Enabled {
		if c.Security.RateLimit.Window <= 0 {
			errs = append(errs, "security.rate_limit.window must be positive")
		}
		if c.Security.RateLimit.MaxRequests < 1 {
			errs = append(errs, "security.rate_limit.max_requests must be at least 1")
		}
	}

	for i, svc := range c.Dashboard.Services {
		if svc.Name == "" || svc.URL == "" {
			errs = append(errs, fmt.Sprintf("dashboard.services[%d] needs a name and url", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// IsProduction reports whether the deployment is marked as production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, EnvironmentProduction)
}

// UsesDefaultSecret reports whether the JWT secret is the shipped default.
func (c *Config) UsesDefaultSecret() bool {
	return c.Security.JWT.Secret == DefaultJWTSecret
}

// TTL parses ExpiresIn. Besides Go durations ("90m", "24h") it accepts
// whole days with a "d" suffix ("7d").
func (j JWTConfig) TTL() (time.Duration, error) {
	s := strings.TrimSpace(j.ExpiresIn)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	var (
		d   time.Duration
		err error
	)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		var n int
		n, err = strconv.Atoi(days)
		d = time.Duration(n) * hoursPerDay * time.Hour
	} else {
		d, err = time.ParseDuration(s)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration %q must be positive", s)
	}
	return d, nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
