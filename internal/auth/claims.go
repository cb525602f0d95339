package auth

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSubject is the identity embedded by the token issuer.
type TokenSubject struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Claims is the JWT payload produced by the login service.
type Claims struct {
	jwt.RegisteredClaims
	Result TokenSubject `json:"result"`
}

// ParseToken verifies an HS256 token and returns its claims.
// Signature, expiry and a non-zero subject id are checked.
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Result.ID == 0 {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	return claims, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <t>" value.
// A bare token without the scheme is accepted as well.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	if strings.ContainsRune(header, ' ') {
		return ""
	}
	return header
}
