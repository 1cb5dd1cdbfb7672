package authclient

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

// DefaultLoginPath is where a forced sign-out redirects.
const DefaultLoginPath = "/auth/login"

// defaultRefreshTimeout bounds how long a caller waits on a token refresh. A
// refresh that outlives it keeps running but its result is discarded.
const defaultRefreshTimeout = 10 * time.Second

// Manager is the application-wide session accessor. It holds at most one
// cached session plus a last-known-good copy, and coalesces concurrent
// refreshes into a single provider call. Construct one per application and
// pass it explicitly; Close releases its provider subscription.
type Manager struct {
	provider  Provider
	notifier  Notifier
	navigator Navigator
	logger    *slog.Logger

	loginPath      string
	refreshTimeout time.Duration
	clock          func() time.Time

	mu            sync.Mutex
	current       *Session
	lastKnownGood *Session

	refreshGroup singleflight.Group
	tracer       trace.Tracer
	unsubscribe  func()
	closeOnce    sync.Once
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithNotifier sets the surface for user-visible notices.
func WithNotifier(n Notifier) ManagerOption {
	return func(m *Manager) {
		m.notifier = n
	}
}

// WithNavigator sets the redirect primitive used on forced sign-out.
func WithNavigator(n Navigator) ManagerOption {
	return func(m *Manager) {
		m.navigator = n
	}
}

// WithManagerLogger sets the structured logger.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithLoginPath overrides the forced sign-out redirect target.
func WithLoginPath(path string) ManagerOption {
	return func(m *Manager) {
		m.loginPath = path
	}
}

// WithRefreshTimeout overrides the refresh deadline.
func WithRefreshTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.refreshTimeout = d
		}
	}
}

// WithManagerClock sets the time source for testability.
func WithManagerClock(clock func() time.Time) ManagerOption {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// NewManager builds a Manager bound to the provider and registers its single
// auth-state subscription.
func NewManager(provider Provider, opts ...ManagerOption) *Manager {
	m := &Manager{
		provider:       provider,
		logger:         slog.Default(),
		loginPath:      DefaultLoginPath,
		refreshTimeout: defaultRefreshTimeout,
		clock:          time.Now,
		tracer:         otel.Tracer("eduro/authclient"),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.unsubscribe = provider.Subscribe(m.onAuthEvent)
	return m
}

// Close tears down the provider subscription. Idempotent.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		if m.unsubscribe != nil {
			m.unsubscribe()
		}
	})
}

// onAuthEvent keeps the caches in step with provider state changes,
// processing events in emission order.
func (m *Manager) onAuthEvent(e Event) {
	switch e.Type {
	case EventSignedIn, EventTokenRefreshed:
		m.store(e.Session)
	case EventSignedOut:
		m.mu.Lock()
		m.current = nil
		m.lastKnownGood = nil
		m.mu.Unlock()
	default:
		// user_updated and anything newer carry no session transition.
	}
}

// GetSession returns the current session, or nil when no path can produce a
// valid one. It tries the in-memory copy, then the provider, then one
// refresh-and-refetch recovery, then the last-known-good cache. Every session
// it returns was issued by the provider; failures are logged, never returned.
func (m *Manager) GetSession(ctx context.Context) *Session {
	now := m.clock()

	m.mu.Lock()
	cached := m.current
	m.mu.Unlock()
	if cached.TimeValid(now) {
		return cached
	}

	session, err := m.provider.CurrentSession(ctx)
	if err == nil && session != nil {
		m.store(session)
		return session
	}
	if err != nil && !errors.Is(err, ErrNoSession) {
		m.logger.Warn("session fetch failed, attempting recovery", "error", err)
	}

	if recovered := m.recover(ctx); recovered != nil {
		return recovered
	}

	m.mu.Lock()
	fallback := m.lastKnownGood
	m.mu.Unlock()
	if fallback.TimeValid(m.clock()) {
		m.logger.Info("serving last-known-good session", "user_id", fallback.User.ID)
		return fallback
	}
	return nil
}

// recover attempts one refresh and, on success, one re-fetch.
func (m *Manager) recover(ctx context.Context) *Session {
	if !m.RefreshSession(ctx) {
		return nil
	}
	session, err := m.provider.CurrentSession(ctx)
	if err != nil || session == nil {
		return nil
	}
	m.store(session)
	return session
}

// RefreshSession forces a provider token refresh and reports success.
// Concurrent callers share one in-flight provider call. A refresh that
// exceeds the timeout is reported as failed; its late result is discarded.
// A rejected refresh token triggers a forced sign-out.
func (m *Manager) RefreshSession(ctx context.Context) bool {
	ctx, span := m.tracer.Start(ctx, "authclient.refresh")
	defer span.End()

	ch := m.refreshGroup.DoChan("refresh", func() (any, error) {
		return m.provider.Refresh(context.WithoutCancel(ctx))
	})

	timer := time.NewTimer(m.refreshTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.Err != nil {
			if errors.Is(res.Err, ErrInvalidRefreshToken) {
				m.logger.Warn("refresh token rejected, forcing sign-out")
				m.ForceSignOut(ctx)
				return false
			}
			m.logger.Warn("session refresh failed", "error", res.Err)
			return false
		}
		session, ok := res.Val.(*Session)
		if !ok || session == nil {
			return false
		}
		m.store(session)
		return true
	case <-timer.C:
		m.logger.Warn("session refresh timed out", "timeout", m.refreshTimeout)
		return false
	case <-ctx.Done():
		return false
	}
}

// ValidateSession reports whether GetSession can produce a session.
func (m *Manager) ValidateSession(ctx context.Context) bool {
	return m.GetSession(ctx) != nil
}

// SignOut revokes the session with the provider; the resulting signed-out
// event clears the caches. The user is notified and redirected to the login
// entry point.
func (m *Manager) SignOut(ctx context.Context) {
	if err := m.provider.SignOut(ctx); err != nil {
		m.logger.Warn("provider sign-out failed", "error", err)
	}
	m.notifyExpiredAndRedirect()
}

// ForceSignOut is the unrecoverable-failure path: clear everything, tell the
// user, send them to sign in again.
func (m *Manager) ForceSignOut(ctx context.Context) {
	if err := m.provider.SignOut(ctx); err != nil {
		m.logger.Warn("provider sign-out failed during forced sign-out", "error", err)
	}
	m.mu.Lock()
	m.current = nil
	m.lastKnownGood = nil
	m.mu.Unlock()
	m.notifyExpiredAndRedirect()
}

func (m *Manager) notifyExpiredAndRedirect() {
	if m.notifier != nil {
		m.notifier.Notify(Notice{
			Title:       "Session expired",
			Description: "Please sign in again to continue.",
			Variant:     "destructive",
		})
	}
	if m.navigator != nil {
		m.navigator.Redirect(m.loginPath)
	}
}

func (m *Manager) store(session *Session) {
	if session == nil {
		return
	}
	m.mu.Lock()
	m.current = session
	m.lastKnownGood = session
	m.mu.Unlock()
}
