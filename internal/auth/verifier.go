package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingToken is returned when no credential was presented at all.
	ErrMissingToken = errors.New("missing token")
	// ErrInvalidToken is returned when a credential was presented but fails
	// verification, including malformed encodings.
	ErrInvalidToken = errors.New("invalid token")
)

// Verifier validates a bearer credential and extracts the user identity.
// It runs once per connection attempt, before any room operation.
type Verifier interface {
	Verify(token string) (string, error)
}

// JWTVerifier validates HS256-signed tokens issued by the identity service.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// Verify checks signature and expiry and returns the user ID claim.
func (v *JWTVerifier) Verify(token string) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	uid, _ := claims["sub"].(string)
	if uid == "" {
		uid, _ = claims["user_id"].(string)
	}
	if uid == "" {
		return "", fmt.Errorf("%w: no subject claim", ErrInvalidToken)
	}
	return uid, nil
}
