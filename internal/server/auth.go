package server

import (
	"net/http"
	"strings"
)

// authMiddleware guards mutating API routes with a static bearer token. An
// empty token disables the guard entirely; reads and stream delivery are
// never gated so playback keeps working for anonymous clients.
func authMiddleware(token string, next http.Handler) http.Handler {
	token = strings.TrimSpace(token)
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requiresAuth(r) && !authorized(r, token) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="vodforge"`)
			writeMiddlewareError(w, http.StatusUnauthorized, "authorization required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requiresAuth(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return strings.HasPrefix(r.URL.Path, "/api/")
	}
	return false
}

func authorized(r *http.Request, token string) bool {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return false
	}
	return strings.TrimSpace(header[7:]) == token
}
