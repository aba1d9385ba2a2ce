package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/localmarket/marketplace-backend/api/responses"
	"github.com/localmarket/marketplace-backend/pkg/logger"
)

const maxRequestIDBytes = 128

// RequestID echoes the inbound X-Request-Id, or a fresh uuid when the header
// is missing, oversized or not printable ASCII.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(responses.RequestIDHeader))
			if !usableRequestID(id) {
				id = uuid.NewString()
			}
			w.Header().Set(responses.RequestIDHeader, id)
			if logg != nil {
				r = r.WithContext(logg.WithRequestID(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func usableRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDBytes {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}
