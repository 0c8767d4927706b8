package middleware

import (
	"net/http"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Compress applies chi's response compression except under skipPrefixes.
// The Prometheus handler negotiates its own encoding, so wrapping it again
// would double-compress.
func Compress(level int, skipPrefixes ...string) func(http.Handler) http.Handler {
	compress := chimiddleware.Compress(level)
	return func(next http.Handler) http.Handler {
		compressed := compress(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, p := range skipPrefixes {
				if strings.HasPrefix(r.URL.Path, p) {
					next.ServeHTTP(w, r)
					return
				}
			}
			compressed.ServeHTTP(w, r)
		})
	}
}
