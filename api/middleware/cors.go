package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/localmarket/marketplace-backend/api/responses"
)

// localOrigins is used when no origins are configured.
var localOrigins = []string{"http://localhost:3000"}

// CORS lets the web clients call the API with credentials and read the
// request id, replay marker and rate limit headers.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = localOrigins
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", idempotencyHeader, responses.RequestIDHeader},
		ExposedHeaders:   []string{responses.RequestIDHeader, replayedHeader, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
