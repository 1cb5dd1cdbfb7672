package httptransport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"eduro/internal/gate"
	"eduro/internal/identity"
	"eduro/internal/lockout"
	"eduro/internal/platform/metrics"
	"eduro/pkg/platform/audit"
	"eduro/pkg/platform/middleware/metadata"
)

// AuthHandler exposes the identity service over HTTP. Login additionally sets
// the session cookie so browser requests flow through the gate without a
// bearer header.
type AuthHandler struct {
	auth          *identity.Service
	lockout       *lockout.Service
	metrics       *metrics.Metrics
	audit         *audit.Publisher
	secureCookies bool
	logger        *slog.Logger
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

type sessionResponse struct {
	AccessToken  string       `json:"access_token,omitempty"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time    `json:"expires_at,omitzero"`
	User         userResponse `json:"user"`
}

func sessionToResponse(s identity.Session) sessionResponse {
	return sessionResponse{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    s.ExpiresAt,
		User:         userResponse{ID: s.User.ID.String(), Email: s.User.Email},
	}
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_input", "message": "invalid request body"})
		return
	}
	if req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_input", "message": "email and password are required"})
		return
	}

	clientIP := metadata.GetClientIP(r.Context())
	if h.lockout != nil {
		if decision := h.lockout.Check(r.Context(), req.Email, clientIP); !decision.Allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(decision.RetryAfter.Seconds())))
			writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"error":   "locked_out",
				"message": "too many failed sign-in attempts",
			})
			return
		}
	}

	session, err := h.auth.SignIn(r.Context(), req.Email, req.Password, metadata.GetUserAgent(r.Context()))
	if err != nil {
		if h.lockout != nil && errors.Is(err, identity.ErrInvalidCredentials) {
			h.lockout.RecordFailure(r.Context(), req.Email, clientIP)
		}
		writeError(w, err)
		return
	}
	if h.lockout != nil {
		h.lockout.ClearFailures(r.Context(), req.Email, clientIP)
	}

	http.SetCookie(w, h.sessionCookie(session.AccessToken, session.ExpiresAt))
	writeJSON(w, http.StatusOK, sessionToResponse(session))
}

func (h *AuthHandler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_input", "message": "refresh_token is required"})
		return
	}

	session, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if h.metrics != nil {
			h.metrics.Refreshes.WithLabelValues("failure").Inc()
		}
		if errors.Is(err, identity.ErrInvalidRefreshToken) {
			// A rejected refresh token ends the client session for good.
			if h.metrics != nil {
				h.metrics.ForcedSignOuts.Inc()
			}
			if h.audit != nil {
				_ = h.audit.Emit(r.Context(), audit.Event{
					Category: audit.CategorySecurity,
					Action:   string(audit.EventForcedSignOut),
					Reason:   "refresh token rejected",
				})
			}
		}
		writeError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.Refreshes.WithLabelValues("success").Inc()
	}

	http.SetCookie(w, h.sessionCookie(session.AccessToken, session.ExpiresAt))
	writeJSON(w, http.StatusOK, sessionToResponse(session))
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := bearerToken(r); token != "" {
		if err := h.auth.SignOut(r.Context(), token); err != nil {
			h.logger.WarnContext(r.Context(), "sign-out failed", "error", err)
		}
	}
	http.SetCookie(w, h.expiredSessionCookie())
	for _, c := range gate.ExpireCookies(h.secureCookies) {
		http.SetCookie(w, c)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) handleSession(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, identity.ErrInvalidToken)
		return
	}

	user, err := h.auth.Verify(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		User: userResponse{ID: user.ID.String(), Email: user.Email},
	})
}

func (h *AuthHandler) sessionCookie(accessToken string, expiresAt time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     gate.CookieAccessToken,
		Value:    accessToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	if !expiresAt.IsZero() {
		c.Expires = expiresAt
	}
	return c
}

func (h *AuthHandler) expiredSessionCookie() *http.Cookie {
	return &http.Cookie{
		Name:     gate.CookieAccessToken,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

func bearerToken(r *http.Request) string {
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return after
	}
	if cookie, err := r.Cookie(gate.CookieAccessToken); err == nil {
		return cookie.Value
	}
	return ""
}
