package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/pkg/resource"
)

type contextKey int

const identityKey contextKey = iota

// session is the authenticated caller, resolved once per request by the
// auth middleware and carried in the request context. The engines never
// read ambient state; handlers pass session.ID explicitly into every call.
type session struct {
	ID       resource.UserID
	Username string
}

func withSession(ctx context.Context, sess session) context.Context {
	return context.WithValue(ctx, identityKey, sess)
}

func sessionFrom(ctx context.Context) (session, bool) {
	sess, ok := ctx.Value(identityKey).(session)
	return sess, ok
}

// authenticated verifies the bearer token and binds the request to its
// identity. Every failure mode is a uniform 401.
func (s *Server) authenticated(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeMessage(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		id, username, err := s.tokens.Verify(token)
		if err != nil {
			writeMessage(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		next.ServeHTTP(w, r.WithContext(withSession(r.Context(), session{ID: id, Username: username})))
	})
}

// rateLimited rejects over-limit requests with 429 instead of queueing
// them; a drive client is better served by fast feedback than by a stalled
// upload.
func (s *Server) rateLimited(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeMessage(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logged(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		logger.Debug("%s %s -> %d", r.Method, r.URL.Path, recorder.status)
	})
}
