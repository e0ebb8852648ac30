// Package config loads portal configuration from an optional YAML file and
// PORTAL_* environment variables, environment taking precedence.
//
// # Keys
//
// Every key can be set in portal.yaml or as an environment variable built
// from the upper-cased key path:
//
//	server.port              PORTAL_SERVER_PORT="8080"
//	server.health_port       PORTAL_SERVER_HEALTH_PORT="9090"
//	server.cors_origins      PORTAL_SERVER_CORS_ORIGINS="https://portal.example.edu"
//	server.trusted_proxies   PORTAL_SERVER_TRUSTED_PROXIES="10.0.0.0/8,127.0.0.1"
//	database.driver          PORTAL_DATABASE_DRIVER="postgres"  # postgres, sqlite3
//	database.url             PORTAL_DATABASE_URL="postgres://localhost/portal"
//	redis.url                PORTAL_REDIS_URL="redis://localhost:6379/0"
//	auth.jwt_secret          PORTAL_AUTH_JWT_SECRET="..."
//	auth.token_ttl           PORTAL_AUTH_TOKEN_TTL="12h"
//	otp.code_ttl             PORTAL_OTP_CODE_TTL="10m"
//	scope.hierarchy_path     PORTAL_SCOPE_HIERARCHY_PATH="/etc/portal/hierarchy.yaml"
//	observability.log_level  PORTAL_OBSERVABILITY_LOG_LEVEL="info"
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//		log.Fatal(err)
//	}
//	db, err := storage.Open(ctx, cfg.StorageConfig())
//
// # Related Packages
//
//   - pkg/storage: database and Redis settings
//   - pkg/observability: logging, metrics and OTel settings
package config
