package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type contextKey string

const (
	SessionIDKey contextKey = "session_id"
	RequestIDKey contextKey = "request_id"

	SessionCookieName = "hemi_sid"
)

// Session gives every visitor a stable anonymous ID kept in a cookie. It
// identifies the visitor's widgets and nothing else.
type Session struct {
	MaxAge time.Duration
	Secure bool
}

func NewSession(maxAge time.Duration, secure bool) *Session {
	return &Session{MaxAge: maxAge, Secure: secure}
}

func (s *Session) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := uuid.Nil
		if cookie, err := r.Cookie(SessionCookieName); err == nil {
			if id, err := uuid.Parse(cookie.Value); err == nil {
				sessionID = id
			}
		}

		if sessionID == uuid.Nil {
			sessionID = uuid.New()
		}

		// Refresh on every request so the cookie slides with the store TTL
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookieName,
			Value:    sessionID.String(),
			Path:     "/",
			MaxAge:   int(s.MaxAge.Seconds()),
			HttpOnly: true,
			Secure:   s.Secure,
			SameSite: http.SameSiteLaxMode,
		})

		ctx := context.WithValue(r.Context(), SessionIDKey, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetSessionID extracts session_id from request context
func GetSessionID(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(SessionIDKey).(uuid.UUID)
	return id
}

// RequestID stamps X-Request-ID on the request and the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
			r.Header.Set("X-Request-ID", requestID)
		}
		w.Header().Set("X-Request-ID", requestID)

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeError(w http.ResponseWriter, status int, code, message string, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":       code,
			"message":    message,
			"request_id": requestID,
		},
	})
}
