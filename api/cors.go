package api

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS allows the single-page app at frontendURL to call the API with credentials. An empty
// frontendURL reflects any origin.
func CORS(frontendURL string) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", AdminKeyHeader, RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if frontendURL != "" {
		opts.AllowedOrigins = []string{frontendURL}
	} else {
		opts.AllowOriginFunc = func(*http.Request, string) bool { return true }
	}
	return cors.Handler(opts)
}
