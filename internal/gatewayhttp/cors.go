package gatewayhttp

import (
	"net/http"
	"strings"
)

// CORSConfig configures the CORS headers the daemon's HTTP API answers
// with; mint/verify are typically called from trusted backends, but local
// tooling and browser-based operator consoles still need this (spec §6).
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
}

// CORS builds the CORS middleware, defaulting to a permissive same-shape
// policy as the teacher's gateway (gateway/middleware/cors.go) when left
// unconfigured.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	methods := cfg.AllowedMethods
	if len(methods) == 0 {
		methods = []string{"GET", "POST", "OPTIONS"}
	}
	headers := cfg.AllowedHeaders
	if len(headers) == 0 {
		headers = []string{"Content-Type", HeaderAPIKey, HeaderTimestamp, HeaderNonce, HeaderSignature}
	}
	allowCredentials := "false"
	if cfg.AllowCredentials {
		allowCredentials = "true"
	}
	joinedMethods := strings.Join(methods, ", ")
	joinedHeaders := strings.Join(headers, ", ")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(origins) > 0 {
				w.Header().Set("Access-Control-Allow-Origin", origins[0])
			}
			w.Header().Set("Access-Control-Allow-Methods", joinedMethods)
			w.Header().Set("Access-Control-Allow-Headers", joinedHeaders)
			w.Header().Set("Access-Control-Allow-Credentials", allowCredentials)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
