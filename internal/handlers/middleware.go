package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"codequest/internal/apperr"
	"codequest/internal/logger"
	"codequest/internal/security"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	ClaimsContextKey    ContextKey = "claims"
	RequestIDContextKey ContextKey = "request_id"

	RequestIDHeader = "X-Request-ID"
)

// Middleware holds dependencies for middleware functions
type Middleware struct {
	verifier *security.TokenVerifier
	limiter  *security.RateLimiter
	log      *logger.Logger
}

// NewMiddleware creates a new middleware instance. limiter may be nil.
func NewMiddleware(verifier *security.TokenVerifier, limiter *security.RateLimiter, log *logger.Logger) *Middleware {
	return &Middleware{verifier: verifier, limiter: limiter, log: log}
}

// RequireAuth is middleware that requires a valid bearer token
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			respondWithError(w, m.log, apperr.Unauthorized("missing bearer token"))
			return
		}

		claims, err := m.verifier.Verify(strings.TrimSpace(token))
		if err != nil {
			m.log.Debug("token rejected", "error", err)
			respondWithError(w, m.log, apperr.Unauthorized("invalid bearer token"))
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
		next(w, r.WithContext(ctx))
	}
}

// RequireSelf lets a caller act only on its own {userID}, unless it is an admin
func (m *Middleware) RequireSelf(next http.HandlerFunc) http.HandlerFunc {
	return m.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		claims := GetClaimsFromContext(r.Context())
		if !claims.Admin && claims.UserID() != r.PathValue("userID") {
			respondWithError(w, m.log, apperr.Forbidden("cannot act on another user"))
			return
		}
		next(w, r)
	})
}

// RequireAdmin is middleware that requires an admin token
func (m *Middleware) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return m.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		if !GetClaimsFromContext(r.Context()).Admin {
			respondWithError(w, m.log, apperr.Forbidden("admin access required"))
			return
		}
		next(w, r)
	})
}

// RateLimit throttles mutations per authenticated user, falling back to client IP
func (m *Middleware) RateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.limiter == nil {
			next(w, r)
			return
		}
		key := security.GetClientIP(r)
		if claims := GetClaimsFromContext(r.Context()); claims != nil {
			key = "user:" + claims.UserID()
		}
		if !m.limiter.Allow(key) {
			w.Header().Set("Retry-After", "60")
			respondJSON(w, m.log, http.StatusTooManyRequests, errorBody{Error: errorDetail{
				Message: "too many requests",
				Code:    "rate_limited",
			}})
			return
		}
		next(w, r)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Logging middleware tags each request with an id and logs it when done
func (m *Middleware) Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)
		ctx := context.WithValue(r.Context(), RequestIDContextKey, requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		m.log.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"request_id", requestID,
		)
	})
}

// GetClaimsFromContext retrieves the verified caller from the request context
func GetClaimsFromContext(ctx context.Context) *security.Claims {
	claims, ok := ctx.Value(ClaimsContextKey).(*security.Claims)
	if !ok {
		return nil
	}
	return claims
}
