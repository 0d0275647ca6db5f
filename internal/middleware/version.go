package middleware

import "net/http"

const (
	APIVersionHeader = "X-API-Version"
	APIVersion       = "1.0.0"
)

// Version stamps every response with the API version.
func Version(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(APIVersionHeader, APIVersion)
		next.ServeHTTP(w, r)
	})
}
