package middleware

import (
	"net/http"
	"time"

	"github.com/flowkey/flowkey-booking/internal/session"
)

// StaffSession builds a session from the bearer token and stores it on the
// request context. Signature checks are left to the FlowKey API; tokens
// whose exp has passed are rejected here without a round trip.
func StaffSession(now func() time.Time) func(http.Handler) http.Handler {
	if now == nil {
		now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := session.FromBearer(r.Header.Get("Authorization"))
			if err != nil {
				writeProblem(w, http.StatusUnauthorized, "unauthorized", "Sign in required", "A valid staff bearer token is required.")
				return
			}
			if sess.Expired(now()) {
				writeProblem(w, http.StatusUnauthorized, "unauthorized", "Session expired", "Please sign in again.")
				return
			}
			next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), sess)))
		})
	}
}
