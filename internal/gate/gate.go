// Package gate implements the request-level identity gate. It decides, once
// per request, whether to pay for an authoritative identity provider round
// trip or to trust a previously cached verified identity, then stamps the
// outcome onto the response for downstream route protection.
package gate

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"eduro/internal/identity"
	"eduro/internal/platform/metrics"
	"eduro/internal/roles"
	"eduro/pkg/platform/audit"
	"eduro/pkg/requestcontext"
)

// Identity headers stamped on authorized responses. Absence of the
// authenticated header signals an unauthenticated request; there is no
// "false" value.
const (
	HeaderAuthenticated = "x-user-authenticated"
	HeaderUserID        = "x-user-id"
	HeaderRole          = "x-user-role"
	HeaderEmail         = "x-user-email"
)

// Verifier is the authoritative identity check. Only a round trip through
// this interface counts as verification; locally decodable tokens do not.
type Verifier interface {
	Verify(ctx context.Context, accessToken string) (identity.User, error)
}

// Config bounds the gate's caching behavior.
type Config struct {
	// RefreshInterval is the minimum time between authoritative provider
	// verifications for one browser context.
	RefreshInterval time.Duration
	// CacheBuffer extends the identity cache validity window slightly past
	// the refresh interval to absorb clock skew between requests.
	CacheBuffer time.Duration
	// RoleTTL is the role cache lifetime, independent of the identity
	// cadence because roles change far less often.
	RoleTTL time.Duration
	// LastRefreshTTL bounds how long the throttle cookie itself lives.
	LastRefreshTTL time.Duration
	// SecureCookies marks all gate cookies Secure (production).
	SecureCookies bool
}

// DefaultConfig returns the standard cadence: 60s verification throttle,
// 10s cache buffer, 5m role cache.
func DefaultConfig() Config {
	return Config{
		RefreshInterval: 60 * time.Second,
		CacheBuffer:     10 * time.Second,
		RoleTTL:         5 * time.Minute,
		LastRefreshTTL:  24 * time.Hour,
	}
}

// Gate is the per-request identity middleware. It keeps no cross-request
// state: every decision is re-derived from the cookies on the incoming
// request, so concurrent requests at worst duplicate a verification.
type Gate struct {
	verifier Verifier
	roles    roles.Store
	codec    *cookieCodec
	cfg      Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	audit    *audit.Publisher
	tracer   trace.Tracer
	clock    func() time.Time
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) GateOption {
	return func(g *Gate) {
		g.logger = logger
	}
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *metrics.Metrics) GateOption {
	return func(g *Gate) {
		g.metrics = m
	}
}

// WithAuditPublisher enables audit events for verification failures.
func WithAuditPublisher(p *audit.Publisher) GateOption {
	return func(g *Gate) {
		g.audit = p
	}
}

// WithClock sets the time source for testability.
func WithClock(clock func() time.Time) GateOption {
	return func(g *Gate) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// New constructs the gate. The cookie secret signs the identity and role
// cache cookies; roleStore may not be nil because every authenticated
// request needs a role, even if only the default.
func New(verifier Verifier, roleStore roles.Store, cookieSecret string, cfg Config, opts ...GateOption) *Gate {
	g := &Gate{
		verifier: verifier,
		roles:    roleStore,
		codec:    newCookieCodec(cookieSecret, cfg.SecureCookies),
		cfg:      cfg,
		logger:   slog.Default(),
		tracer:   otel.Tracer("eduro/gate"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// now prefers an injected test clock, then the request-pinned time from the
// requesttime middleware, so throttle and cache-window decisions within one
// request agree on the instant.
func (g *Gate) now(ctx context.Context) time.Time {
	if g.clock != nil {
		return g.clock()
	}
	return requestcontext.Now(ctx)
}

// outcome is the result of one gate invocation.
type outcome struct {
	authenticated bool
	user          identity.User
	role          roles.Role
	fromCache     bool
}

// Middleware wires the gate into a chi/net-http middleware chain.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := g.tracer.Start(r.Context(), "gate.authenticate")

		builder := newResponseBuilder()
		out := g.authenticate(ctx, r, builder)

		span.SetAttributes(
			attribute.Bool("gate.authenticated", out.authenticated),
			attribute.Bool("gate.identity_cache_hit", out.fromCache),
		)
		span.End()

		if out.authenticated {
			builder.setHeader(HeaderAuthenticated, "true")
			builder.setHeader(HeaderUserID, out.user.ID.String())
			builder.setHeader(HeaderRole, string(out.role))
			if out.user.Email != "" {
				builder.setHeader(HeaderEmail, out.user.Email)
			}
		}
		builder.apply(w)

		ident := requestcontext.Identity{
			Authenticated: out.authenticated,
			UserID:        out.user.ID,
			Email:         out.user.Email,
			Role:          out.role,
		}
		next.ServeHTTP(w, r.WithContext(requestcontext.WithIdentity(r.Context(), ident)))
	})
}

// authenticate runs the throttle/verify/role state machine, accumulating all
// cookie writes on the builder.
func (g *Gate) authenticate(ctx context.Context, r *http.Request, builder *responseBuilder) outcome {
	now := g.now(ctx)

	needsVerification := true
	if last, ok := g.codec.readLastRefresh(r); ok {
		elapsed := now.Sub(last)
		if elapsed >= 0 && elapsed < g.cfg.RefreshInterval {
			needsVerification = false
		}
	}

	var out outcome

	if !needsVerification {
		// Fast path: trust the signed identity cache. The validity window is
		// checked against the signed CachedAt, so a tampered throttle cookie
		// cannot stretch trust beyond interval+buffer.
		if payload, ok := g.codec.readIdentity(r); ok {
			cachedAt := time.Unix(payload.CachedAt, 0)
			if now.Sub(cachedAt) < g.cfg.RefreshInterval+g.cfg.CacheBuffer {
				if userID, err := uuid.Parse(payload.UserID); err == nil {
					out.authenticated = true
					out.fromCache = true
					out.user = identity.User{ID: userID, Email: payload.Email}
					if g.metrics != nil {
						g.metrics.IdentityCacheHits.Inc()
					}
				}
			}
		}
		if !out.authenticated {
			// Cache miss inside the throttle window; fall back to a full
			// verification rather than failing the request.
			if g.metrics != nil {
				g.metrics.IdentityCacheMisses.Inc()
			}
			needsVerification = true
		}
	}

	if needsVerification {
		out = g.verify(ctx, r, builder, now)
		if !out.authenticated {
			builder.deleteCookies(g.codec, CookieIdentity, CookieRole, CookieLastRefresh)
			return out
		}
	}

	out.role = g.resolveRole(ctx, r, builder, out.user, now)
	return out
}

// verify performs the authoritative provider round trip and refreshes the
// identity cache cookies on success.
func (g *Gate) verify(ctx context.Context, r *http.Request, builder *responseBuilder, now time.Time) outcome {
	token := accessTokenFrom(r)
	if token == "" {
		return outcome{}
	}

	start := time.Now()
	user, err := g.verifier.Verify(ctx, token)
	if g.metrics != nil {
		outcomeLabel := "success"
		if err != nil {
			outcomeLabel = "failure"
		}
		g.metrics.ObserveVerification(outcomeLabel, time.Since(start))
	}
	if err != nil {
		g.logger.DebugContext(ctx, "identity verification failed", "error", err)
		if g.audit != nil {
			_ = g.audit.Emit(ctx, audit.Event{
				Category:  audit.CategorySecurity,
				Timestamp: now,
				Action:    string(audit.EventVerifyFailed),
				Reason:    err.Error(),
			})
		}
		return outcome{}
	}

	payload := identityPayload{
		Version:  payloadVersion,
		UserID:   user.ID.String(),
		Email:    user.Email,
		CachedAt: now.Unix(),
	}
	if cookie, err := g.codec.identityCookie(payload, g.cfg.RefreshInterval+60*time.Second); err == nil {
		builder.setCookie(cookie)
	}
	builder.setCookie(g.codec.lastRefreshCookie(now, g.cfg.LastRefreshTTL))

	return outcome{authenticated: true, user: user}
}

// resolveRole returns the user's role from the role cache when it matches the
// verified user and is fresh, otherwise from the role store. A failed lookup
// degrades to the least privileged role; the request always proceeds.
func (g *Gate) resolveRole(ctx context.Context, r *http.Request, builder *responseBuilder, user identity.User, now time.Time) roles.Role {
	if payload, ok := g.codec.readRole(r); ok {
		cachedAt := time.Unix(payload.CachedAt, 0)
		if payload.UserID == user.ID.String() && now.Sub(cachedAt) < g.cfg.RoleTTL {
			if g.metrics != nil {
				g.metrics.RoleCacheHits.Inc()
			}
			return roles.Parse(payload.Role)
		}
	}
	if g.metrics != nil {
		g.metrics.RoleCacheMisses.Inc()
	}

	role, err := g.roles.FetchRole(ctx, user.ID)
	if err != nil {
		if g.metrics != nil {
			g.metrics.RoleLookupFailures.Inc()
		}
		g.logger.WarnContext(ctx, "role lookup failed, using default role",
			"error", err,
			"user_id", user.ID,
		)
		return roles.Default
	}

	payload := rolePayload{
		Version:  payloadVersion,
		UserID:   user.ID.String(),
		Role:     string(role),
		CachedAt: now.Unix(),
	}
	if cookie, err := g.codec.roleCookie(payload, g.cfg.RoleTTL); err == nil {
		builder.setCookie(cookie)
	}
	return role
}

// accessTokenFrom extracts the access token from the Authorization header or
// the session cookie, in that order.
func accessTokenFrom(r *http.Request) string {
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return after
	}
	if cookie, err := r.Cookie(CookieAccessToken); err == nil {
		return cookie.Value
	}
	return ""
}
