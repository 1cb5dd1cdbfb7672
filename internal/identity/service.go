package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mssola/useragent"
	"golang.org/x/crypto/bcrypt"

	"eduro/pkg/platform/audit"
	"eduro/pkg/platform/sentinel"
)

// AuditPublisher receives security-relevant session events. Publishing
// failures never block the auth decision.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the authoritative identity provider: it owns credential
// verification, session issuance, refresh token rotation, and revocation.
type Service struct {
	users    UserStore
	sessions SessionStore
	tokens   *TokenService

	sessionTTL time.Duration
	audit      AuditPublisher
	logger     *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithSessionTTL overrides the server-side session lifetime.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

// WithAuditPublisher attaches an audit sink for session lifecycle events.
func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.audit = publisher
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService constructs the identity service.
func NewService(users UserStore, sessions SessionStore, tokens *TokenService, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token service is required")
	}

	svc := &Service{
		users:      users,
		sessions:   sessions,
		tokens:     tokens,
		sessionTTL: 7 * 24 * time.Hour,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// SignIn verifies credentials and issues a new session.
func (s *Service) SignIn(ctx context.Context, email, password, userAgent string) (Session, error) {
	rec, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("sign in: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}

	refreshToken, err := newRefreshToken()
	if err != nil {
		return Session{}, fmt.Errorf("sign in: %w", err)
	}

	now := time.Now()
	record := Record{
		SessionID:    uuid.New(),
		UserID:       rec.ID,
		Email:        rec.Email,
		Device:       deviceLabel(userAgent),
		RefreshToken: refreshToken,
		CreatedAt:    now,
		LastRefresh:  now,
	}

	if err := s.sessions.Save(ctx, record, s.sessionTTL); err != nil {
		return Session{}, fmt.Errorf("sign in: %w", err)
	}
	if err := s.sessions.SaveRefreshToken(ctx, refreshToken, record.SessionID, s.sessionTTL); err != nil {
		return Session{}, fmt.Errorf("sign in: %w", err)
	}

	user := User{ID: rec.ID, Email: rec.Email}
	accessToken, expiresAt, err := s.tokens.Issue(user, record.SessionID)
	if err != nil {
		return Session{}, fmt.Errorf("sign in: %w", err)
	}

	s.emit(ctx, audit.Event{
		Category:  audit.CategorySecurity,
		Timestamp: now,
		UserID:    rec.ID.String(),
		Email:     rec.Email,
		Action:    string(audit.EventSignIn),
	})

	return Session{
		SessionID:    record.SessionID,
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}, nil
}

// Refresh consumes a refresh token and rotates the session's token pair.
// An unknown or already-consumed token is fatal for the session.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	record, err := s.sessions.ConsumeRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.emit(ctx, audit.Event{
				Category:  audit.CategorySecurity,
				Timestamp: time.Now(),
				Action:    string(audit.EventRefreshRejected),
				Reason:    "refresh token unknown or already consumed",
			})
			return Session{}, ErrInvalidRefreshToken
		}
		return Session{}, fmt.Errorf("refresh: %w", err)
	}

	newToken, err := newRefreshToken()
	if err != nil {
		return Session{}, fmt.Errorf("refresh: %w", err)
	}

	record.RefreshToken = newToken
	record.LastRefresh = time.Now()

	if err := s.sessions.Save(ctx, record, s.sessionTTL); err != nil {
		return Session{}, fmt.Errorf("refresh: %w", err)
	}
	if err := s.sessions.SaveRefreshToken(ctx, newToken, record.SessionID, s.sessionTTL); err != nil {
		return Session{}, fmt.Errorf("refresh: %w", err)
	}

	user := User{ID: record.UserID, Email: record.Email}
	accessToken, expiresAt, err := s.tokens.Issue(user, record.SessionID)
	if err != nil {
		return Session{}, fmt.Errorf("refresh: %w", err)
	}

	return Session{
		SessionID:    record.SessionID,
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: newToken,
		ExpiresAt:    expiresAt,
	}, nil
}

// Verify is the authoritative identity check: it validates the access token
// signature and confirms the session still exists server-side. A locally
// decodable token whose session was revoked does not pass.
func (s *Service) Verify(ctx context.Context, accessToken string) (User, error) {
	claims, err := s.tokens.Parse(accessToken)
	if err != nil {
		return User{}, ErrInvalidToken
	}

	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return User{}, ErrInvalidToken
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return User{}, ErrInvalidToken
	}

	record, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return User{}, ErrInvalidToken
		}
		return User{}, fmt.Errorf("verify: %w", err)
	}
	if record.UserID != userID {
		return User{}, ErrInvalidToken
	}

	return User{ID: userID, Email: claims.Email}, nil
}

// SignOut revokes the session behind the access token. Revoking an unknown
// or expired session is not an error; sign-out is idempotent.
func (s *Service) SignOut(ctx context.Context, accessToken string) error {
	claims, err := s.tokens.Parse(accessToken)
	if err != nil {
		return nil
	}

	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return nil
	}

	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}

	s.emit(ctx, audit.Event{
		Category:  audit.CategorySecurity,
		Timestamp: time.Now(),
		UserID:    claims.Subject,
		Email:     claims.Email,
		Action:    string(audit.EventSignOut),
	})
	return nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "error", err, "action", event.Action)
	}
}

// deviceLabel produces a human-readable device identifier from a User-Agent
// string, e.g. "Chrome 120.0 (Mac OS X, desktop)".
func deviceLabel(ua string) string {
	if ua == "" {
		return "Unknown device"
	}

	parsed := useragent.New(ua)
	name, version := parsed.Browser()
	if name == "" {
		return "Unknown device"
	}

	form := "desktop"
	if parsed.Mobile() {
		form = "mobile"
	}
	if parsed.Bot() {
		return "Bot: " + name
	}

	os := parsed.OS()
	if os == "" {
		os = "unknown OS"
	}
	if version != "" {
		return fmt.Sprintf("%s %s (%s, %s)", name, version, os, form)
	}
	return fmt.Sprintf("%s (%s, %s)", name, os, form)
}
