package core

import (
	"context"
	"net/http"
	"strings"

	"github.com/warasin/roomsync/pkg/router"
)

const (
	key            sessionKey = "session"
	AuthCookieName            = "auth_token"
)

type sessionKey = string

func contextWithSession(ctx context.Context, session Session) context.Context {
	return context.WithValue(ctx, key, session)
}

func sessionFromContext(ctx context.Context) (Session, bool) {
	session, ok := ctx.Value(key).(Session)
	return session, ok
}

// SessionFromRequest extracts the session from the request context.
// It must be called in handlers that are protected by the JWTMiddleware.
// It panics if the session is not found in the request context.
func SessionFromRequest(r *http.Request) Session {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		panic("session not found in request context: call this function in handlers that are protected by JWTMiddleware")
	}
	return session
}

// tokenFromRequest looks for the token in the Authorization header first,
// then falls back to the auth cookie.
func tokenFromRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	cookie, err := r.Cookie(AuthCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// JWTMiddleware extracts the JWT token from the request, validates it, and
// attaches the session to the request context. Subsequent handlers can rely
// on SessionFromRequest.
func JWTMiddleware(a AuthStore) router.Middleware {
	return func(next http.Handler) router.HandlerFunc {

		authErr := router.NewJsonError(http.StatusUnauthorized, "not authenticated")

		return router.HandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
			token := tokenFromRequest(r)
			if token == "" {
				return authErr
			}

			session, err := a.Session(r.Context(), token)
			if err != nil {
				return authErr
			}

			next.ServeHTTP(w, r.WithContext(contextWithSession(r.Context(), *session)))
			return nil
		})
	}
}
