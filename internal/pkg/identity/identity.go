package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/gabrielluis21/intelliresume-backend/internal/pkg/env"
)

// ErrInvalidCredential is returned for bearer tokens that fail verification
// for any reason (bad signature, expired, wrong audience).
var ErrInvalidCredential = errors.New("invalid credential")

// Identity is the verified caller identity returned by the gateway.
type Identity struct {
	UID   string
	Email string
}

// Verifier validates a raw bearer credential and resolves the caller.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (*Identity, error)
}

// OIDCVerifier validates ID tokens issued by the external identity
// provider.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the issuer and builds a verifier bound to the
// expected audience.
func NewOIDCVerifier(ctx context.Context, issuerURL, audience string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery failed for %s: %w", issuerURL, err)
	}
	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: audience}),
	}, nil
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (*Identity, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	var claims struct {
		Email string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	return &Identity{UID: idToken.Subject, Email: claims.Email}, nil
}

// NewVerifierFromEnv selects the configured verifier. With an OIDC issuer
// configured the external identity provider is authoritative; otherwise the
// locally minted login tokens are accepted directly (dev/self-contained
// deployments).
func NewVerifierFromEnv(ctx context.Context) (Verifier, error) {
	issuer := env.GetEnv("AUTH_OIDC_ISSUER", "")
	if issuer == "" {
		return NewMinterFromEnv(), nil
	}
	audience := env.MustGet("AUTH_OIDC_AUDIENCE")
	return NewOIDCVerifier(ctx, issuer, audience)
}
