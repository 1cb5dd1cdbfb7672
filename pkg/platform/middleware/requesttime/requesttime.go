// Package requesttime pins a single "now" per HTTP request. Throttle and
// cache-window decisions made at different points of one request must agree
// on the time, so the gate derives its clock from requestcontext.Now instead
// of calling time.Now at each step.
package requesttime

import (
	"net/http"
	"time"

	"eduro/pkg/requestcontext"
)

// Middleware stamps the request arrival time into the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
