package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/researchportal/pubportal/pkg/middleware"
	"github.com/researchportal/pubportal/pkg/observability"
	"github.com/researchportal/pubportal/pkg/storage"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "PORTAL"

// minSecretLength is the shortest accepted HS256 signing secret
const minSecretLength = 32

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Auth          AuthConfig          `mapstructure:"auth"`
	OTP           OTPConfig           `mapstructure:"otp"`
	Scope         ScopeConfig         `mapstructure:"scope"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	HealthPort      string        `mapstructure:"health_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	// TrustedProxies lists proxy addresses or CIDR blocks whose
	// X-Forwarded-For headers the rate limiter honours
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

// TrustedProxyPrefixes parses TrustedProxies
func (s ServerConfig) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	return middleware.ParseTrustedProxies(s.TrustedProxies)
}

// Addr is the API listen address
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// HealthAddr is the health and metrics listen address
func (s ServerConfig) HealthAddr() string {
	return s.Host + ":" + s.HealthPort
}

// DatabaseConfig selects the SQL driver and pool
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// RedisConfig configures the OTP store
type RedisConfig struct {
	URL      string `mapstructure:"url"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// AuthConfig configures session tokens
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// OTPConfig configures password-reset codes
type OTPConfig struct {
	CodeTTL     time.Duration `mapstructure:"code_ttl"`
	ResetTTL    time.Duration `mapstructure:"reset_ttl"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

// ScopeConfig points at the college hierarchy file. Empty uses the
// embedded default.
type ScopeConfig struct {
	HierarchyPath string `mapstructure:"hierarchy_path"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
	AuditOutput    string `mapstructure:"audit_output"`
	GaugeSchedule  string `mapstructure:"gauge_schedule"`

	OTelEnabled        bool    `mapstructure:"otel_enabled"`
	OTelEndpoint       string  `mapstructure:"otel_endpoint"`
	OTelServiceName    string  `mapstructure:"otel_service_name"`
	OTelServiceVersion string  `mapstructure:"otel_service_version"`
	OTelInsecure       bool    `mapstructure:"otel_insecure"`
	OTelSampleRatio    float64 `mapstructure:"otel_sample_ratio"`
}

// Level parses LogLevel
func (o ObservabilityConfig) Level() observability.LogLevel {
	return observability.ParseLogLevel(o.LogLevel)
}

// OTel converts the settings for observability.InitOTel
func (o ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
		SampleRatio:    o.OTelSampleRatio,
	}
}

// setDefaults registers every key so environment overrides reach Unmarshal
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.health_port", "9090")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.max_body_bytes", int64(2<<20))
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.trusted_proxies", []string{})

	db := storage.DefaultConfig()
	v.SetDefault("database.driver", db.Driver)
	v.SetDefault("database.url", db.DSN)
	v.SetDefault("database.max_open_conns", db.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", db.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", db.ConnMaxLifetime)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.url", db.RedisURL)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", -1)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "pubportal")
	v.SetDefault("auth.token_ttl", 12*time.Hour)

	v.SetDefault("otp.code_ttl", 10*time.Minute)
	v.SetDefault("otp.reset_ttl", 15*time.Minute)
	v.SetDefault("otp.max_attempts", 5)

	v.SetDefault("scope.hierarchy_path", "")

	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.metrics_enabled", true)
	v.SetDefault("observability.audit_output", "stdout")
	v.SetDefault("observability.gauge_schedule", "@every 1m")
	v.SetDefault("observability.otel_enabled", false)
	v.SetDefault("observability.otel_endpoint", "localhost:4317")
	v.SetDefault("observability.otel_service_name", "pubportal")
	v.SetDefault("observability.otel_service_version", "dev")
	v.SetDefault("observability.otel_insecure", true)
	v.SetDefault("observability.otel_sample_ratio", 1.0)
}

// newViper builds an isolated viper instance reading configFile (or a
// portal.yaml found in the standard locations) and PORTAL_* variables
func newViper(configFile string) *viper.Viper {
	v := viper.New()
	setDefaults(v)

	if configFile == "" {
		configFile = findConfigFile([]string{".", "/etc/pubportal"})
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("portal")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// findConfigFile returns the first portal.yaml or portal.yml in dirs
func findConfigFile(dirs []string) string {
	for _, dir := range dirs {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "portal"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// Load reads configuration from configFile (optional), the environment and
// defaults, then validates it
func Load(configFile string) (*Config, error) {
	v := newViper(configFile)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// StorageConfig converts the database and Redis sections for pkg/storage
func (c *Config) StorageConfig() storage.Config {
	sc := storage.DefaultConfig()
	sc.Driver = c.Database.Driver
	sc.DSN = c.Database.URL
	if c.Database.MaxOpenConns > 0 {
		sc.MaxOpenConns = c.Database.MaxOpenConns
	}
	if c.Database.MaxIdleConns > 0 {
		sc.MaxIdleConns = c.Database.MaxIdleConns
	}
	if c.Database.ConnMaxLifetime > 0 {
		sc.ConnMaxLifetime = c.Database.ConnMaxLifetime
	}
	sc.RedisURL = c.Redis.URL
	sc.RedisPassword = c.Redis.Password
	sc.RedisDB = c.Redis.DB
	sc.RedisPoolSize = c.Redis.PoolSize
	return sc
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	if _, err := c.Server.TrustedProxyPrefixes(); err != nil {
		return err
	}

	switch c.Database.Driver {
	case storage.DriverPostgres, storage.DriverSQLite:
	default:
		return fmt.Errorf("invalid database driver: %s (must be %s or %s)",
			c.Database.Driver, storage.DriverPostgres, storage.DriverSQLite)
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("redis URL is required")
	}

	if len(c.Auth.JWTSecret) < minSecretLength {
		return fmt.Errorf("auth JWT secret must be at least %d characters", minSecretLength)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth token TTL must be positive")
	}

	if c.OTP.CodeTTL <= 0 || c.OTP.ResetTTL <= 0 {
		return fmt.Errorf("OTP TTLs must be positive")
	}
	if c.OTP.MaxAttempts < 1 {
		return fmt.Errorf("OTP max attempts must be at least 1")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}
	if r := c.Observability.OTelSampleRatio; r < 0 || r > 1 {
		return fmt.Errorf("OpenTelemetry sample ratio must be between 0 and 1")
	}

	return nil
}
