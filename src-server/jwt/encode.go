package jwt

import (
	"fmt"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// Encode signs payload with HS256.
func Encode(payload Payload, secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("Encode: secret is empty")
	}
	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, payload).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("Encode: %w", err)
	}
	return token, nil
}
