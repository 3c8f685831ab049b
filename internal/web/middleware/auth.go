package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Joshypeace/PharmaStore/internal/core"
	"github.com/Joshypeace/PharmaStore/internal/logging"
)

// ErrMissingToken is reported when a protected route gets no bearer token.
var ErrMissingToken = errors.New("not authorized: missing bearer token")

// TokenVerifier resolves a bearer token to the user it was issued for.
type TokenVerifier interface {
	Authenticate(ctx context.Context, token string) (core.Actor, error)
}

// ErrorResponder writes err to the client.
type ErrorResponder func(w http.ResponseWriter, r *http.Request, err error)

// BearerAuth rejects requests without a valid "Authorization: Bearer" token
// and stores the authenticated actor in the request context.
func BearerAuth(v TokenVerifier, fail ErrorResponder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				fail(w, r, ErrMissingToken)
				return
			}

			actor, err := v.Authenticate(r.Context(), token)
			if err != nil {
				logging.FromContext(r.Context()).Warn("auth: rejected token",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
					"error", err,
				)
				fail(w, r, err)
				return
			}

			RecordActor(r, actor)
			ctx := core.ContextWithActor(r.Context(), actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
