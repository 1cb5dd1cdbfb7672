// Command server runs the eduro identity gateway: the auth endpoints, the
// request identity gate, and their backing stores. Dependency wiring lives
// here; business logic stays in the internal services.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"

	"eduro/internal/gate"
	"eduro/internal/identity"
	"eduro/internal/lockout"
	"eduro/internal/platform/config"
	"eduro/internal/platform/httpserver"
	"eduro/internal/platform/logger"
	"eduro/internal/platform/metrics"
	platformredis "eduro/internal/platform/redis"
	"eduro/internal/roles"
	httptransport "eduro/internal/transport/http"
	"eduro/pkg/platform/audit"
	auditkafka "eduro/pkg/platform/audit/kafka"
	auditmemory "eduro/pkg/platform/audit/store/memory"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	healthChecks := map[string]func(context.Context) error{}

	// Session store: Redis when configured, in-memory for local development.
	var sessions identity.SessionStore
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		sessions = identity.NewRedisSessionStore(redisClient.Client)
		healthChecks["redis"] = redisClient.Health
		log.Info("session store: redis")
	} else {
		sessions = identity.NewInMemorySessionStore()
		log.Warn("session store: in-memory, sessions are lost on restart")
	}

	// User and role stores: Postgres when configured.
	var users identity.UserStore
	var roleStore roles.Store
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("postgres pool failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		users = identity.NewPgxUserStore(pool)

		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Error("postgres open failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		roleStore = roles.NewPostgresStore(db)
		healthChecks["postgres"] = db.PingContext
		log.Info("user and role stores: postgres")
	} else {
		users = identity.NewInMemoryUserStore()
		roleStore = roles.NewInMemoryStore()
		log.Warn("user and role stores: in-memory")
	}

	// Audit trail: always keep an in-memory log for the admin endpoint, add
	// Kafka fan-out when brokers are configured.
	auditLog := auditmemory.NewInMemoryStore()
	sinks := []audit.Sink{auditLog}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err := auditkafka.New(cfg.KafkaBrokers, cfg.AuditTopic, log)
		if err != nil {
			log.Error("kafka audit sink failed", "error", err)
			os.Exit(1)
		}
		defer kafkaSink.Close()
		sinks = append(sinks, kafkaSink)
	}
	publisher := audit.NewPublisher(sinks,
		audit.WithAsyncBuffer(1024),
		audit.WithPublisherLogger(log),
	)
	defer publisher.Close()

	// Failed sign-in lockout shares the Redis instance with sessions.
	var lockoutStore lockout.Store
	if redisClient != nil {
		lockoutStore = lockout.NewRedisStore(redisClient.Client)
	} else {
		lockoutStore = lockout.NewInMemoryStore()
	}
	lockoutSvc, err := lockout.New(lockoutStore, lockout.DefaultConfig(),
		lockout.WithAuditPublisher(publisher),
		lockout.WithLogger(log),
	)
	if err != nil {
		log.Error("lockout service init failed", "error", err)
		os.Exit(1)
	}

	tokens := identity.NewTokenService(cfg.JWTSigningKey, "eduro", 15*time.Minute)
	authService, err := identity.NewService(users, sessions, tokens,
		identity.WithAuditPublisher(publisher),
		identity.WithLogger(log),
	)
	if err != nil {
		log.Error("identity service init failed", "error", err)
		os.Exit(1)
	}

	m := metrics.New()

	gateCfg := gate.DefaultConfig()
	gateCfg.RefreshInterval = config.SessionRefreshInterval
	gateCfg.CacheBuffer = config.IdentityCacheBuffer
	gateCfg.RoleTTL = config.RoleCacheTTL
	gateCfg.SecureCookies = cfg.IsProduction()
	identityGate := gate.New(authService, roleStore, cfg.CookieSecret, gateCfg,
		gate.WithLogger(log),
		gate.WithMetrics(m),
		gate.WithAuditPublisher(publisher),
	)

	router := httptransport.NewRouter(authService, identityGate, httptransport.RouterConfig{
		SecureCookies: cfg.IsProduction(),
		AuditLog:      auditLog,
		Audit:         publisher,
		Lockout:       lockoutSvc,
		Metrics:       m,
		HealthChecks:  healthChecks,
	}, log)

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("starting eduro identity gateway", "addr", cfg.Addr, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
