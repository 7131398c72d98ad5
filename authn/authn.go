// Package authn validates the identity tokens that clients carry in their
// "token" cookie.
package authn

import (
	"context"
	"fmt"

	"google.golang.org/api/idtoken"
)

// Identity is the verified identity extracted from a token.
type Identity struct {
	UserID string
	Email  string
}

// Verifier checks an opaque identity token and returns the identity it
// asserts.  Verification failures (bad signature, expired, malformed) are
// returned as errors; callers surface the reason to the client as the 401
// detail.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// GoogleVerifier validates Google-signed ID tokens.
type GoogleVerifier struct {
	audience string
}

func NewGoogleVerifier(audience string) *GoogleVerifier {
	return &GoogleVerifier{audience: audience}
}

func (v *GoogleVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	payload, err := idtoken.Validate(ctx, token, v.audience)
	if err != nil {
		return nil, fmt.Errorf("while validating ID token: %w", err)
	}

	identity := &Identity{UserID: payload.Subject}
	if email, ok := payload.Claims["email"].(string); ok {
		identity.Email = email
	}

	return identity, nil
}
