package middleware

import (
	"net/http"
	"strings"

	"github.com/localmarket/marketplace-backend/api/responses"
	"github.com/localmarket/marketplace-backend/pkg/auth"
	"github.com/localmarket/marketplace-backend/pkg/config"
	pkgerrors "github.com/localmarket/marketplace-backend/pkg/errors"
	"github.com/localmarket/marketplace-backend/pkg/logger"
)

const bearerPrefix = "bearer "

// Auth admits requests carrying a valid bearer token and puts the caller's
// user id on the context. Sessions are stateless; nothing is looked up.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	verifier := auth.NewVerifier(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearer(r.Header.Get("Authorization"))
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			claims, err := verifier.Verify(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithUserID(r.Context(), claims.UserID)
			if logg != nil {
				ctx = logg.WithUserID(ctx, claims.UserID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearer extracts the token from an Authorization header value. The scheme
// is matched case-insensitively.
func bearer(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	return token, token != ""
}
