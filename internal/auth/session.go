package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/isdelr/ender-accounts-be/internal/apperror"
	"github.com/rs/zerolog/log"
)

// Identity is the authenticated caller resolved from a session.
type Identity struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
}

// Session is the per-call caller context. User is nil for anonymous calls.
type Session struct {
	User *Identity
}

type contextKey string

const sessionKey = contextKey("session")

// WithSession attaches a session to ctx.
func WithSession(ctx context.Context, session *Session) context.Context {
	return context.WithValue(ctx, sessionKey, session)
}

// SessionFrom returns the session attached to ctx, or nil.
func SessionFrom(ctx context.Context) *Session {
	session, _ := ctx.Value(sessionKey).(*Session)
	return session
}

// IdentityFrom returns the authenticated identity, if any.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	session := SessionFrom(ctx)
	if session == nil || session.User == nil {
		return Identity{}, false
	}
	return *session.User, true
}

// SessionMiddleware resolves the caller session from a bearer token or the
// "token" cookie. Requests without a token continue anonymously; requests with
// a bad token are rejected.
func SessionMiddleware(tokens *Tokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := tokenFromRequest(r)
			if tokenStr == "" {
				next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), &Session{})))
				return
			}

			identity, err := tokens.Parse(tokenStr)
			if err != nil {
				log.Warn().Err(err).Str("path", r.URL.Path).Msg("Rejected session token")
				writeUnauthorized(w)
				return
			}

			ctx := WithSession(r.Context(), &Session{User: &identity})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie("token"); err == nil {
		return cookie.Value
	}
	return ""
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{
			"code":    string(apperror.CodeUnauthorized),
			"message": "invalid session token",
		},
	})
}
