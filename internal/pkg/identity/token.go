package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gabrielluis21/intelliresume-backend/internal/pkg/env"
)

const loginTokenIssuer = "intelliresume-backend"

// Minter issues the short-lived login token handed to the frontend after a
// completed OAuth flow. The frontend exchanges it for a provider session;
// in self-contained deployments it doubles as the bearer credential, so
// Minter also satisfies Verifier.
type Minter struct {
	secret []byte
	ttl    time.Duration
}

type loginClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

func NewMinter(secret []byte, ttl time.Duration) *Minter {
	return &Minter{secret: secret, ttl: ttl}
}

func NewMinterFromEnv() *Minter {
	return NewMinter([]byte(env.MustGet("AUTH_TOKEN_SECRET")), 15*time.Minute)
}

// MintLoginToken signs a token identifying the given user.
func (m *Minter) MintLoginToken(uid, email string) (string, error) {
	if strings.TrimSpace(uid) == "" {
		return "", fmt.Errorf("uid is required")
	}
	now := time.Now()
	claims := loginClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    loginTokenIssuer,
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Verify accepts a previously minted login token as a bearer credential.
func (m *Minter) Verify(_ context.Context, rawToken string) (*Identity, error) {
	var claims loginClaims
	token, err := jwt.ParseWithClaims(rawToken, &claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(loginTokenIssuer))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidCredential)
	}
	return &Identity{UID: claims.Subject, Email: claims.Email}, nil
}
