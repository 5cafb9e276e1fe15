package jwt

import (
	"errors"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

const ISSUER = "parish"

var ErrInvalidToken = errors.New("invalid session token")

// Payload of the session cookie. The cookie only names a session row, the
// row and the user are re-read on every request.
type Payload struct {
	gojwt.RegisteredClaims

	SessionSecret string `json:"sid"`
	UserID        int64  `json:"uid"`
}

func NewPayload(sessionSecret string, userID int64, issuedAt, expiresAt time.Time) Payload {
	return Payload{
		RegisteredClaims: gojwt.RegisteredClaims{
			Issuer:    ISSUER,
			IssuedAt:  gojwt.NewNumericDate(issuedAt),
			ExpiresAt: gojwt.NewNumericDate(expiresAt),
		},
		SessionSecret: sessionSecret,
		UserID:        userID,
	}
}
