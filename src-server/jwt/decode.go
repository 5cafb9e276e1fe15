package jwt

import (
	"errors"
	"fmt"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// Decode verifies signature, algorithm, issuer and expiry. Every rejection
// wraps ErrInvalidToken.
func Decode(token string, secret string) (*Payload, error) {
	if secret == "" {
		return nil, fmt.Errorf("Decode: secret is empty")
	}
	payload := new(Payload)
	if _, err := gojwt.ParseWithClaims(token, payload,
		func(t *gojwt.Token) (any, error) { return []byte(secret), nil },
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithIssuer(ISSUER),
		gojwt.WithExpirationRequired(),
	); err != nil {
		return nil, fmt.Errorf("Decode: %w", errors.Join(ErrInvalidToken, err))
	}
	if payload.SessionSecret == "" {
		return nil, fmt.Errorf("Decode: %w: no session", ErrInvalidToken)
	}
	return payload, nil
}
