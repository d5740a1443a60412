package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/gabrielluis21/intelliresume-backend/internal/pkg/env"
)

const stateIssuer = "intelliresume-oauth-state"

// StateCodec signs and validates the OAuth state parameter. The final
// frontend redirect target travels inside the state itself, so no
// server-side session entry is needed between the begin and callback legs
// of the flow.
type StateCodec struct {
	secret []byte
	ttl    time.Duration
}

type stateClaims struct {
	RedirectURL string `json:"redirect_url"`
	jwt.RegisteredClaims
}

func NewStateCodec(secret []byte, ttl time.Duration) *StateCodec {
	return &StateCodec{secret: secret, ttl: ttl}
}

func NewStateCodecFromEnv() *StateCodec {
	return NewStateCodec([]byte(env.MustGet("AUTH_TOKEN_SECRET")), 15*time.Minute)
}

// Encode wraps the redirect URL into a signed, single-use state value.
func (s *StateCodec) Encode(redirectURL string) (string, error) {
	now := time.Now()
	claims := stateClaims{
		RedirectURL: redirectURL,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    stateIssuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Decode validates the state value and returns the redirect URL carried in
// it.
func (s *StateCodec) Decode(raw string) (string, error) {
	var claims stateClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(stateIssuer))
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid oauth state: %w", err)
	}
	return claims.RedirectURL, nil
}
