// Package auth verifies the HS256 access tokens the identity service signs.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/localmarket/marketplace-backend/pkg/config"
)

var (
	ErrNoSecret = errors.New("auth: jwt secret is not configured")
	ErrNoUser   = errors.New("auth: token carries no user id")
)

var method = jwt.SigningMethodHS256

// Verifier checks signature, issuer and expiry. It is safe for concurrent use.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewVerifier(cfg config.JWTConfig) *Verifier {
	return &Verifier{
		secret: []byte(cfg.Secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{method.Alg()}),
			jwt.WithIssuer(cfg.Issuer),
			jwt.WithExpirationRequired(),
		),
	}
}

func (v *Verifier) key(*jwt.Token) (any, error) {
	return v.secret, nil
}

// Verify returns the claims of a valid token. jwt sentinel errors such as
// jwt.ErrTokenExpired stay reachable through errors.Is.
func (v *Verifier) Verify(raw string) (*Claims, error) {
	if len(v.secret) == 0 {
		return nil, ErrNoSecret
	}
	var claims Claims
	if _, err := v.parser.ParseWithClaims(raw, &claims, v.key); err != nil {
		return nil, err
	}
	if claims.UserID == uuid.Nil {
		return nil, ErrNoUser
	}
	return &claims, nil
}

// Issue signs a token for userID. Only tooling and tests mint tokens here;
// production tokens come from the identity service with the same secret.
func Issue(cfg config.JWTConfig, userID uuid.UUID, issuedAt time.Time, ttl time.Duration) (string, error) {
	switch {
	case cfg.Secret == "":
		return "", ErrNoSecret
	case userID == uuid.Nil:
		return "", ErrNoUser
	case ttl <= 0:
		return "", fmt.Errorf("auth: ttl %s is not positive", ttl)
	}
	tok := jwt.NewWithClaims(method, Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    cfg.Issuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	})
	return tok.SignedString([]byte(cfg.Secret))
}
