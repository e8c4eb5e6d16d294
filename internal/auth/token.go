// ABOUTME: JWT access token creation and verification for openmcp
// ABOUTME: Uses HS256 signing with the configured secret

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken = fmt.Errorf("%w: could not validate credentials", ErrUnauthorized)
	ErrExpiredToken = fmt.Errorf("%w: token expired", ErrUnauthorized)
)

// tokenIssuer signs and verifies HS256 JWTs. It is an optional credential
// mechanism layered alongside API keys; the tool-call path does not use it.
type tokenIssuer struct {
	secret []byte
	expiry time.Duration
}

func newTokenIssuer(secret []byte, expiry time.Duration) *tokenIssuer {
	if expiry <= 0 {
		expiry = 30 * time.Minute
	}
	return &tokenIssuer{secret: secret, expiry: expiry}
}

// CreateAccessToken signs the given claims into a JWT with an expiry claim
// derived from the configured access token lifetime.
func (m *Manager) CreateAccessToken(claims map[string]any) (string, error) {
	return m.issuer.create(claims)
}

// VerifyToken validates the token signature and expiry and returns its claims.
// Fails with an ErrUnauthorized-wrapped error on any mismatch.
func (m *Manager) VerifyToken(tokenString string) (map[string]any, error) {
	return m.issuer.verify(tokenString)
}

func (i *tokenIssuer) create(claims map[string]any) (string, error) {
	mapClaims := jwt.MapClaims{}
	for k, v := range claims {
		mapClaims[k] = v
	}
	mapClaims["exp"] = time.Now().Add(i.expiry).Unix()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, mapClaims)
	return token.SignedString(i.secret)
}

func (i *tokenIssuer) verify(tokenString string) (map[string]any, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method is HS256
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	return map[string]any(claims), nil
}
