package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/evyataryagoni/geocoder/internal/service"
)

// SessionHeader carries the client session ID in both directions
const SessionHeader = "X-Session-ID"

type sessionKey struct{}

// SessionMiddleware attaches the caller's session to the request context.
// Requests without the header get a new session whose ID is echoed back.
func SessionMiddleware(sessions *service.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := sessions.Get(strings.TrimSpace(r.Header.Get(SessionHeader)))
			w.Header().Set(SessionHeader, sess.ID)
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

// WithSession returns a context carrying sess
func WithSession(ctx context.Context, sess *service.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

// SessionFromContext returns the request's session, or nil
func SessionFromContext(ctx context.Context) *service.Session {
	sess, _ := ctx.Value(sessionKey{}).(*service.Session)
	return sess
}
