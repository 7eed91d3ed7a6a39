package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// corsMaxAge is how long, in seconds, browsers may cache a preflight result.
const corsMaxAge = 600

// allowedOrigins is the fixed set of browser origins permitted to read API responses.
var allowedOrigins = [...]string{
	"http://localhost:5173",
}

// AllowedOrigins returns a copy of the origins granted cross-origin access.
func AllowedOrigins() []string {
	out := make([]string, len(allowedOrigins))
	copy(out, allowedOrigins[:])
	return out
}

// CORS returns a middleware that grants the allowed origins credentialed access with any method
// and any request header. Requests from other origins are still served, just without the
// Access-Control-* response headers, leaving enforcement to the browser.
func CORS() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   AllowedOrigins(),
		AllowCredentials: true,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodHead,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         corsMaxAge,
	})
}
