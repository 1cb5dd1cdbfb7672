package authclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubService mimics the identity service wire surface.
type stubService struct {
	mu           sync.Mutex
	accessToken  string
	refreshToken string
	revoked      bool
	refreshes    int
}

func (s *stubService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req struct{ Email, Password string }
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "correct horse" {
			writeErr(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}
		s.mu.Lock()
		s.accessToken, s.refreshToken, s.revoked = "at-1", "rt-1", false
		s.mu.Unlock()
		writeSession(w, "at-1", "rt-1", req.Email)
	})
	mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			RefreshToken string `json:"refresh_token"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.revoked || req.RefreshToken != s.refreshToken {
			writeErr(w, http.StatusUnauthorized, "invalid_refresh_token")
			return
		}
		s.refreshes++
		s.accessToken = "at-rotated"
		s.refreshToken = "rt-rotated"
		writeSession(w, s.accessToken, s.refreshToken, "amara@example.org")
	})
	mux.HandleFunc("GET /auth/session", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if s.revoked || token != s.accessToken {
			writeErr(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user": map[string]string{"id": "u1", "email": "amara@example.org"},
		})
	})
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.revoked = true
		s.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func writeSession(w http.ResponseWriter, access, refresh, email string) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token":  access,
		"refresh_token": refresh,
		"expires_at":    time.Now().Add(15 * time.Minute),
		"user":          map[string]string{"id": "u1", "email": email},
	})
}

func writeErr(w http.ResponseWriter, status int, code string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}

func newClientEnv(t *testing.T) (*Client, *stubService) {
	t.Helper()
	svc := &stubService{}
	server := httptest.NewServer(svc.handler())
	t.Cleanup(server.Close)
	return NewClient(server.URL), svc
}

func TestClientSignIn(t *testing.T) {
	client, _ := newClientEnv(t)

	var events []Event
	unsub := client.Subscribe(func(e Event) { events = append(events, e) })
	defer unsub()

	session, err := client.SignIn(context.Background(), "amara@example.org", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "u1", session.User.ID)
	assert.Equal(t, "at-1", session.AccessToken)

	require.Len(t, events, 1)
	assert.Equal(t, EventSignedIn, events[0].Type)
}

func TestClientSignInBadPassword(t *testing.T) {
	client, _ := newClientEnv(t)

	_, err := client.SignIn(context.Background(), "amara@example.org", "wrong")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "invalid_credentials", apiErr.Code)
}

func TestClientCurrentSessionConfirms(t *testing.T) {
	client, _ := newClientEnv(t)
	_, err := client.SignIn(context.Background(), "amara@example.org", "correct horse")
	require.NoError(t, err)

	session, err := client.CurrentSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", session.User.ID)
	assert.Equal(t, "at-1", session.AccessToken)
	assert.False(t, session.ExpiresAt.IsZero(), "expiry carried forward from sign-in")
}

func TestClientCurrentSessionAfterRevocation(t *testing.T) {
	client, svc := newClientEnv(t)
	_, err := client.SignIn(context.Background(), "amara@example.org", "correct horse")
	require.NoError(t, err)

	svc.mu.Lock()
	svc.revoked = true
	svc.mu.Unlock()

	_, err = client.CurrentSession(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestClientRefreshRotates(t *testing.T) {
	client, svc := newClientEnv(t)
	_, err := client.SignIn(context.Background(), "amara@example.org", "correct horse")
	require.NoError(t, err)

	var events []Event
	unsub := client.Subscribe(func(e Event) { events = append(events, e) })
	defer unsub()

	session, err := client.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "at-rotated", session.AccessToken)
	assert.Equal(t, 1, svc.refreshes)

	require.Len(t, events, 1)
	assert.Equal(t, EventTokenRefreshed, events[0].Type)
}

func TestClientRefreshInvalidToken(t *testing.T) {
	client, svc := newClientEnv(t)
	_, err := client.SignIn(context.Background(), "amara@example.org", "correct horse")
	require.NoError(t, err)

	svc.mu.Lock()
	svc.revoked = true
	svc.mu.Unlock()

	_, err = client.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestClientRefreshWithoutSession(t *testing.T) {
	client, _ := newClientEnv(t)
	_, err := client.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestClientSignOut(t *testing.T) {
	client, _ := newClientEnv(t)
	_, err := client.SignIn(context.Background(), "amara@example.org", "correct horse")
	require.NoError(t, err)

	var events []Event
	unsub := client.Subscribe(func(e Event) { events = append(events, e) })
	defer unsub()

	require.NoError(t, client.SignOut(context.Background()))
	require.Len(t, events, 1)
	assert.Equal(t, EventSignedOut, events[0].Type)

	_, err = client.CurrentSession(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
}
