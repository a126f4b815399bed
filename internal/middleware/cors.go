package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS builds the cors.Options for the given origins. Credentials are only
// allowed when no wildcard origin is configured, since browsers refuse
// Access-Control-Allow-Credentials: true together with origin "*".
func CORS(origins []string) cors.Options {
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	withCredentials := true
	for _, origin := range origins {
		if origin == "*" {
			withCredentials = false
		}
	}

	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: withCredentials,
		MaxAge:           300,
	}
}
