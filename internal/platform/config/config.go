package config

import (
	"os"
	"strings"
	"time"

	platformstrings "eduro/pkg/platform/strings"
)

// Server captures process level configuration for the identity gateway.
type Server struct {
	Addr        string
	Environment string

	// CookieSecret signs the identity and role cache cookies.
	CookieSecret string
	// JWTSigningKey signs access tokens issued by the identity service.
	JWTSigningKey string

	DatabaseURL string
	Redis       RedisConfig

	// KafkaBrokers enables the Kafka audit publisher when non-empty.
	KafkaBrokers []string
	AuditTopic   string
}

// RedisConfig holds connection settings for the session store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Identity verification cadence. The gate never trusts cached identity beyond
// SessionRefreshInterval plus the cache buffer; roles tolerate more staleness.
var (
	SessionRefreshInterval = 60 * time.Second
	IdentityCacheBuffer    = 10 * time.Second
	RoleCacheTTL           = 5 * time.Minute
)

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("EDURO_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	env := os.Getenv("EDURO_ENV")
	if env == "" {
		env = "development"
	}

	cookieSecret := os.Getenv("EDURO_COOKIE_SECRET")
	if cookieSecret == "" {
		// Development fallback - must be overridden in production.
		cookieSecret = "dev-cookie-secret-change-in-production-0123456789"
	}

	jwtSigningKey := os.Getenv("EDURO_JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	var brokers []string
	if raw := os.Getenv("EDURO_KAFKA_BROKERS"); raw != "" {
		brokers = platformstrings.DedupeAndTrim(strings.Split(raw, ","))
	}

	auditTopic := os.Getenv("EDURO_AUDIT_TOPIC")
	if auditTopic == "" {
		auditTopic = "eduro.audit"
	}

	return Server{
		Addr:          addr,
		Environment:   env,
		CookieSecret:  cookieSecret,
		JWTSigningKey: jwtSigningKey,
		DatabaseURL:   os.Getenv("EDURO_DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("EDURO_REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		KafkaBrokers: brokers,
		AuditTopic:   auditTopic,
	}
}

// IsProduction reports whether the process runs with production hardening
// (secure cookies, real secrets expected).
func (s Server) IsProduction() bool {
	return s.Environment == "production"
}
