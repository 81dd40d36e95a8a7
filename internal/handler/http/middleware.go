package http

import (
	"net/http"
	"strings"

	"github.com/utafrali/crystalbeauty/pkg/middleware"
)

// ContentTypeJSON enforces that requests with a body have Content-Type: application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnsupportedMediaType)
				_, _ = w.Write([]byte(`{"error":{"code":"UNSUPPORTED_MEDIA_TYPE","message":"Content-Type must be application/json"}}`))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// TokenFromQuery accepts the bearer token as ?token= for clients that cannot
// set headers, such as browser websockets. A header token wins.
func TokenFromQuery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := middleware.TokenFromContext(r.Context()); !ok {
			if token := r.URL.Query().Get("token"); token != "" {
				r = r.WithContext(middleware.WithToken(r.Context(), token))
			}
		}
		next.ServeHTTP(w, r)
	})
}
