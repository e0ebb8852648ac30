package storage

import "time"

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Config holds database and Redis connection settings
type Config struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	ConnectTimeout  time.Duration

	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RedisPoolSize   int
	RedisMaxRetries int
}

// DefaultConfig returns a configuration for a local SQLite file and Redis
func DefaultConfig() Config {
	return Config{
		Driver:          DriverSQLite,
		DSN:             "file:portal.db?_foreign_keys=on",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
		ConnectTimeout:  5 * time.Second,
		RedisURL:        "redis://localhost:6379/0",
		RedisDB:         -1,
	}
}
