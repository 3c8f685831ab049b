package web

import (
	"net"
	"net/http"

	"github.com/Joshypeace/PharmaStore/internal/core"
)

// requestMetadata stores the client address for downstream logging.
// TrustedRealIP has already rewritten RemoteAddr when behind a proxy.
func requestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := core.ContextWithIPAddress(r.Context(), clientIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// actorFrom returns the user set by BearerAuth. Routes are only reachable
// through it, so a missing actor is a wiring bug and yields the zero Actor.
func actorFrom(r *http.Request) core.Actor {
	a, _ := core.ActorFromContext(r.Context())
	return a
}
