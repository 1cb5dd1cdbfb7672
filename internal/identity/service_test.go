package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eduro/pkg/platform/audit"
	auditmemory "eduro/pkg/platform/audit/store/memory"
)

const chromeUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func newTestService(t *testing.T, opts ...Option) (*Service, *InMemoryUserStore, *auditmemory.InMemoryStore) {
	t.Helper()

	users := NewInMemoryUserStore()
	sessions := NewInMemorySessionStore()
	tokens := NewTokenService("test-signing-key", "eduro-test", 15*time.Minute)

	auditLog := auditmemory.NewInMemoryStore()
	publisher := audit.NewPublisher([]audit.Sink{auditLog})
	t.Cleanup(publisher.Close)

	opts = append([]Option{WithAuditPublisher(publisher)}, opts...)
	svc, err := NewService(users, sessions, tokens, opts...)
	require.NoError(t, err)
	return svc, users, auditLog
}

func TestSignInIssuesSession(t *testing.T) {
	svc, users, auditLog := newTestService(t)
	userID, err := users.AddUser("amara@example.org", "correct horse")
	require.NoError(t, err)

	session, err := svc.SignIn(context.Background(), "amara@example.org", "correct horse", chromeUA)
	require.NoError(t, err)

	assert.Equal(t, userID, session.User.ID)
	assert.NotEmpty(t, session.AccessToken)
	assert.NotEmpty(t, session.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), session.ExpiresAt, time.Minute)

	events := auditLog.Events()
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventSignIn), events[0].Action)
	assert.Equal(t, userID.String(), events[0].UserID)
}

func TestSignInRejectsBadCredentials(t *testing.T) {
	svc, users, _ := newTestService(t)
	_, err := users.AddUser("amara@example.org", "correct horse")
	require.NoError(t, err)

	_, err = svc.SignIn(context.Background(), "amara@example.org", "wrong", chromeUA)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Unknown users fail identically, with no hint which half was wrong.
	_, err = svc.SignIn(context.Background(), "nobody@example.org", "correct horse", chromeUA)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerifyAcceptsLiveSession(t *testing.T) {
	svc, users, _ := newTestService(t)
	userID, err := users.AddUser("amara@example.org", "correct horse")
	require.NoError(t, err)

	session, err := svc.SignIn(context.Background(), "amara@example.org", "correct horse", chromeUA)
	require.NoError(t, err)

	user, err := svc.Verify(context.Background(), session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, userID, user.ID)
	assert.Equal(t, "amara@example.org", user.Email)
}

func TestVerifyRejectsRevokedSession(t *testing.T) {
	svc, users, _ := newTestService(t)
	_, err := users.AddUser("amara@example.org", "correct horse")
	require.NoError(t, err)

	session, err := svc.SignIn(context.Background(), "amara@example.org", "correct horse", chromeUA)
	require.NoError(t, err)
	require.NoError(t, svc.SignOut(context.Background(), session.AccessToken))

	// The token still decodes, but only the authoritative round trip counts.
	_, err = svc.Verify(context.Background(), session.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsGarbageToken(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Verify(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshRotatesTokenPair(t *testing.T) {
	svc, users, _ := newTestService(t)
	_, err := users.AddUser("amara@example.org", "correct horse")
	require.NoError(t, err)

	session, err := svc.SignIn(context.Background(), "amara@example.org", "correct horse", chromeUA)
	require.NoError(t, err)

	rotated, err := svc.Refresh(context.Background(), session.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, session.SessionID, rotated.SessionID)
	assert.NotEqual(t, session.RefreshToken, rotated.RefreshToken)

	// The new access token passes verification.
	_, err = svc.Verify(context.Background(), rotated.AccessToken)
	assert.NoError(t, err)
}

func TestRefreshTokenIsSingleUse(t *testing.T) {
	svc, users, auditLog := newTestService(t)
	_, err := users.AddUser("amara@example.org", "correct horse")
	require.NoError(t, err)

	session, err := svc.SignIn(context.Background(), "amara@example.org", "correct horse", chromeUA)
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), session.RefreshToken)
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), session.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	var rejected int
	for _, e := range auditLog.Events() {
		if e.Action == string(audit.EventRefreshRejected) {
			rejected++
		}
	}
	assert.Equal(t, 1, rejected)
}

func TestSignOutIsIdempotent(t *testing.T) {
	svc, users, _ := newTestService(t)
	_, err := users.AddUser("amara@example.org", "correct horse")
	require.NoError(t, err)

	session, err := svc.SignIn(context.Background(), "amara@example.org", "correct horse", chromeUA)
	require.NoError(t, err)

	require.NoError(t, svc.SignOut(context.Background(), session.AccessToken))
	require.NoError(t, svc.SignOut(context.Background(), session.AccessToken))
	require.NoError(t, svc.SignOut(context.Background(), "garbage"))
}

func TestDeviceLabel(t *testing.T) {
	assert.Equal(t, "Unknown device", deviceLabel(""))

	label := deviceLabel(chromeUA)
	assert.Contains(t, label, "Chrome")
	assert.Contains(t, label, "desktop")
}
