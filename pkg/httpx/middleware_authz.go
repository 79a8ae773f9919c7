package httpx

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// RequireAnyRole lets the request through when the session role is one of
// roles. It must run after AuthnMiddleware.
func RequireAnyRole(roles ...string) Middleware {
	want := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		want[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := want[roleFromCtx(r.Context())]; ok {
				next.ServeHTTP(w, r)
				return
			}
			WriteError(w, http.StatusForbidden, "insufficient_role",
				"requires one of: "+strings.Join(roles, ", "))
		})
	}
}

// RequireStaticToken guards service-to-service endpoints with a shared
// bearer token. An empty token disables the route entirely.
func RequireStaticToken(token string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				http.NotFound(w, r)
				return
			}
			got, ok := BearerToken(r)
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeBearerError(w, "invalid service token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
