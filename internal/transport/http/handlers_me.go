package httptransport

import (
	"net/http"
	"strings"

	"eduro/internal/roles"
	"eduro/pkg/email"
	"eduro/pkg/requestcontext"
)

type meResponse struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email,omitempty"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name,omitempty"`
}

// handleMe echoes the gate's verdict for the requesting user.
func handleMe(w http.ResponseWriter, r *http.Request) {
	ident := requestcontext.IdentityFrom(r.Context())
	if !ident.Authenticated {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}
	resp := meResponse{
		UserID: ident.UserID.String(),
		Email:  ident.Email,
		Role:   string(ident.Role),
	}
	if ident.Email != "" {
		first, last := email.DeriveNameFromEmail(ident.Email)
		resp.DisplayName = strings.TrimSpace(first + " " + last)
	}
	writeJSON(w, http.StatusOK, resp)
}

// RequireRole gates a route on the identity established upstream. Routes
// behind it must also be behind the gate middleware; otherwise every request
// is rejected as unauthenticated.
func RequireRole(allowed ...roles.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident := requestcontext.IdentityFrom(r.Context())
			if !ident.Authenticated {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
				return
			}
			for _, role := range allowed {
				if ident.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
		})
	}
}
