package cli

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/researchportal/pubportal/pkg/api"
	"github.com/researchportal/pubportal/pkg/audit"
	"github.com/researchportal/pubportal/pkg/auth"
	"github.com/researchportal/pubportal/pkg/config"
	"github.com/researchportal/pubportal/pkg/observability"
	"github.com/researchportal/pubportal/pkg/otp"
	"github.com/researchportal/pubportal/pkg/policy"
	"github.com/researchportal/pubportal/pkg/publications"
	"github.com/researchportal/pubportal/pkg/scope"
	"github.com/researchportal/pubportal/pkg/storage"
	"github.com/researchportal/pubportal/pkg/users"
)

// app holds the wired portal services
type app struct {
	cfg     *config.Config
	log     *observability.Logger
	redis   *redis.Client
	audit   audit.Logger
	metrics *observability.Metrics

	engine       *policy.Engine
	store        *users.CachedStore
	users        *users.Service
	publications *publications.Service
	otp          *otp.Service
	tokens       *auth.TokenManager
}

// newApp wires the services over an open database and Redis client.
// metrics may be nil.
func newApp(cfg *config.Config, hierarchy *scope.Hierarchy, db *sql.DB, rdb *redis.Client,
	log *observability.Logger, auditLogger audit.Logger, metrics *observability.Metrics) *app {
	engine := policy.NewEngine(hierarchy)
	store := users.NewCachedStore(users.NewStore(db), users.DefaultCacheConfig(), metrics)

	otpConfig := otp.Config{
		CodeTTL:     cfg.OTP.CodeTTL,
		ResetTTL:    cfg.OTP.ResetTTL,
		MaxAttempts: cfg.OTP.MaxAttempts,
	}

	return &app{
		cfg:          cfg,
		log:          log,
		redis:        rdb,
		audit:        auditLogger,
		metrics:      metrics,
		engine:       engine,
		store:        store,
		users:        users.NewService(store, engine, auditLogger, metrics),
		publications: publications.NewService(publications.NewStore(db), store, engine, auditLogger, metrics),
		otp: otp.NewService(otp.NewStore(rdb), store, otp.NewLogSender(log), store,
			otpConfig, auditLogger, metrics),
		tokens: auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL),
	}
}

// server builds the HTTP API over the wired services
func (a *app) server() *api.Server {
	// already checked by config.Validate
	proxies, _ := a.cfg.Server.TrustedProxyPrefixes()
	return api.NewServer(api.Deps{
		Engine:         a.engine,
		Tokens:         a.tokens,
		Accounts:       a.store,
		Users:          a.users,
		Publications:   a.publications,
		OTP:            a.otp,
		Redis:          a.redis,
		Audit:          a.audit,
		Metrics:        a.metrics,
		Logger:         a.log,
		CORSOrigins:    a.cfg.Server.CORSOrigins,
		MaxBodyBytes:   a.cfg.Server.MaxBodyBytes,
		TrustedProxies: proxies,
	})
}

// refreshGauges recomputes the row-count gauges
func (a *app) refreshGauges(ctx context.Context) {
	if err := a.users.RefreshGauge(ctx); err != nil {
		a.log.WithError(err).Warn("failed to refresh users gauge")
	}
	if err := a.publications.RefreshGauge(ctx); err != nil {
		a.log.WithError(err).Warn("failed to refresh publications gauge")
	}
}

// openDatabase connects to the configured database, migrating it when
// migrate is set
func openDatabase(ctx context.Context, cfg *config.Config, log *observability.Logger, migrate bool) (*sql.DB, error) {
	db, err := storage.Open(ctx, cfg.StorageConfig())
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := storage.Migrate(ctx, db, cfg.Database.Driver, log); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}
	return db, nil
}
