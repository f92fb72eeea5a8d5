package auth

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenClaims is the subset of the storefront JWT the cart cares about.
type AccessTokenClaims struct {
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Identity returns the user id claim, falling back to the subject.
func (c *AccessTokenClaims) Identity() string {
	if c == nil {
		return ""
	}
	if c.UserID != "" {
		return c.UserID
	}
	return c.Subject
}

// ParseUnverified decodes the token payload without checking the signature.
// The signing key stays with the API; the claims are only used for log
// context and display, never for authorization.
func ParseUnverified(tokenString string) (*AccessTokenClaims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, fmt.Errorf("access token is empty")
	}
	claims := &AccessTokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("decoding access token: %w", err)
	}
	return claims, nil
}
