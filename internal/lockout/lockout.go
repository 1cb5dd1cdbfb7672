// Package lockout throttles failed sign-in attempts per account and source
// address. Too many failures inside the window hard-locks the pair for a
// fixed duration. Lockout state is advisory: a store failure never blocks a
// legitimate sign-in.
package lockout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"eduro/pkg/platform/audit"
)

// Record tracks failures for one identifier/IP pair.
type Record struct {
	Key            string     `json:"key"`
	FailureCount   int        `json:"failure_count"`
	FirstFailureAt time.Time  `json:"first_failure_at"`
	LastFailureAt  time.Time  `json:"last_failure_at"`
	LockedUntil    *time.Time `json:"locked_until,omitempty"`
}

// Store persists lockout records.
type Store interface {
	// Get returns the record for key, or a zero Record when none exists.
	Get(ctx context.Context, key string) (Record, error)
	// Put upserts the record with the given retention.
	Put(ctx context.Context, rec Record, ttl time.Duration) error
	// Clear removes the record. Clearing an absent key is not an error.
	Clear(ctx context.Context, key string) error
}

// Config bounds the lockout behavior.
type Config struct {
	// MaxAttempts failures within Window trigger a lock.
	MaxAttempts int
	// Window is the sliding failure-counting window.
	Window time.Duration
	// LockDuration is how long a triggered lock holds.
	LockDuration time.Duration
}

// DefaultConfig is 5 attempts per 15 minutes, 15 minute lock.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  5,
		Window:       15 * time.Minute,
		LockDuration: 15 * time.Minute,
	}
}

// Decision is the outcome of a lockout check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// AuditPublisher receives lockout trigger events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service evaluates and records sign-in failures.
type Service struct {
	store  Store
	cfg    Config
	audit  AuditPublisher
	logger *slog.Logger
	clock  func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithAuditPublisher attaches an audit sink for lockout triggers.
func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.audit = publisher
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the time source for testability.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New constructs a lockout service.
func New(store Store, cfg Config, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("lockout store is required")
	}
	if cfg.MaxAttempts <= 0 || cfg.Window <= 0 || cfg.LockDuration <= 0 {
		cfg = DefaultConfig()
	}
	s := &Service{
		store:  store,
		cfg:    cfg,
		logger: slog.Default(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func key(identifier, ip string) string {
	return identifier + "|" + ip
}

// Check reports whether a sign-in attempt for the pair may proceed. Store
// failures are logged and the attempt is allowed; lockout protects against
// brute force, not against its own backend being down.
func (s *Service) Check(ctx context.Context, identifier, ip string) Decision {
	rec, err := s.store.Get(ctx, key(identifier, ip))
	if err != nil {
		s.logger.WarnContext(ctx, "lockout check failed, allowing attempt", "error", err)
		return Decision{Allowed: true}
	}

	now := s.clock()
	if rec.LockedUntil != nil && now.Before(*rec.LockedUntil) {
		return Decision{Allowed: false, RetryAfter: rec.LockedUntil.Sub(now)}
	}
	if rec.FailureCount >= s.cfg.MaxAttempts && now.Sub(rec.LastFailureAt) < s.cfg.Window {
		resetAt := rec.LastFailureAt.Add(s.cfg.Window)
		return Decision{Allowed: false, RetryAfter: resetAt.Sub(now)}
	}
	return Decision{Allowed: true}
}

// RecordFailure counts a failed attempt, hard-locking the pair once the
// window limit is reached.
func (s *Service) RecordFailure(ctx context.Context, identifier, ip string) {
	k := key(identifier, ip)
	rec, err := s.store.Get(ctx, k)
	if err != nil {
		s.logger.WarnContext(ctx, "lockout record lookup failed", "error", err)
		return
	}

	now := s.clock()
	if rec.FailureCount == 0 || now.Sub(rec.FirstFailureAt) >= s.cfg.Window {
		rec = Record{Key: k, FirstFailureAt: now}
	}
	rec.FailureCount++
	rec.LastFailureAt = now

	if rec.FailureCount >= s.cfg.MaxAttempts {
		lockedUntil := now.Add(s.cfg.LockDuration)
		rec.LockedUntil = &lockedUntil

		s.logger.WarnContext(ctx, "sign-in lockout triggered",
			"identifier", identifier,
			"failure_count", rec.FailureCount,
			"locked_until", lockedUntil,
		)
		if s.audit != nil {
			_ = s.audit.Emit(ctx, audit.Event{
				Category:  audit.CategorySecurity,
				Timestamp: now,
				Email:     identifier,
				Action:    string(audit.EventLockout),
				Reason:    fmt.Sprintf("%d failed sign-in attempts", rec.FailureCount),
			})
		}
	}

	ttl := s.cfg.Window
	if rec.LockedUntil != nil {
		ttl = s.cfg.LockDuration
	}
	if err := s.store.Put(ctx, rec, ttl); err != nil {
		s.logger.WarnContext(ctx, "lockout record save failed", "error", err)
	}
}

// ClearFailures resets the pair after a successful sign-in.
func (s *Service) ClearFailures(ctx context.Context, identifier, ip string) {
	if err := s.store.Clear(ctx, key(identifier, ip)); err != nil {
		s.logger.WarnContext(ctx, "lockout clear failed", "error", err)
	}
}
