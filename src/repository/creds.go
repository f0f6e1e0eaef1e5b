package repository

import (
	"context"
	"errors"
	"fmt"

	app "silkyroad/src/app"

	"github.com/golang-jwt/jwt/v5"
)

type (
	// AuthDB resolves a session access token into the identity it was issued to.
	AuthDB interface {
		VerifyUser(ctx context.Context, accessToken string) (*app.Identity, error)
	}

	// TokenVerifier checks access tokens locally with the project JWT secret and
	// falls back to the auth API when no secret is configured.
	TokenVerifier struct {
		secret []byte
		remote *AuthClient
	}

	accessClaims struct {
		Email string `json:"email"`
		Role  string `json:"role"`
		jwt.RegisteredClaims
	}
)

const authenticatedAudience = "authenticated"

func NewTokenVerifier(secret string, remote *AuthClient) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret), remote: remote}
}

func (v *TokenVerifier) VerifyUser(ctx context.Context, accessToken string) (*app.Identity, error) {
	if accessToken == "" {
		return nil, app.ErrUnauthenticated
	}
	if len(v.secret) == 0 {
		if v.remote == nil {
			return nil, fmt.Errorf("no token verification configured: %w", app.ErrUnauthenticated)
		}
		identity, err := v.remote.GetUser(ctx, accessToken)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", app.ErrUnauthenticated, err)
		}
		return identity, nil
	}

	var claims accessClaims
	_, err := jwt.ParseWithClaims(accessToken, &claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(authenticatedAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", app.ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", app.ErrUnauthenticated)
	}
	return &app.Identity{ID: claims.Subject, Email: claims.Email, Role: claims.Role}, nil
}

// IsUnauthenticated reports whether err came from a rejected token.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, app.ErrUnauthenticated)
}
