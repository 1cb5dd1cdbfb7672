package httptransport

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"eduro/internal/roles"
	"eduro/pkg/testutil"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireRole(t *testing.T) {
	protected := RequireRole(roles.RoleAdmin, roles.RoleCoordinator)(okHandler())
	userID := uuid.NewString()

	testutil.Given(t, "an unauthenticated request", func(t *testing.T) {
		req := testutil.Unauthenticated(testutil.NewJSONRequest(t, http.MethodGet, "/admin/audit", nil))
		rr := testutil.DoRequest(protected, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	testutil.Given(t, "a student behind the gate", func(t *testing.T) {
		req := testutil.WithIdentity(testutil.NewJSONRequest(t, http.MethodGet, "/admin/audit", nil), userID, roles.RoleStudent)
		rr := testutil.DoRequest(protected, req)
		assert.Equal(t, http.StatusForbidden, rr.Code)

		var payload map[string]string
		testutil.DecodeJSON(t, rr, &payload)
		assert.Equal(t, "forbidden", payload["error"])
	})

	testutil.Given(t, "a coordinator behind the gate", func(t *testing.T) {
		req := testutil.WithIdentity(testutil.NewJSONRequest(t, http.MethodGet, "/admin/audit", nil), userID, roles.RoleCoordinator)
		rr := testutil.DoRequest(protected, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

func TestWithIdentityIgnoresBadUUID(t *testing.T) {
	protected := RequireRole(roles.RoleAdmin)(okHandler())
	req := testutil.WithIdentity(testutil.NewJSONRequest(t, http.MethodGet, "/admin/audit", nil), "not-a-uuid", roles.RoleAdmin)
	rr := testutil.DoRequest(protected, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
