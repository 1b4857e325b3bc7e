// Package token resolves the GitHub token used by the HTTPS transport.
//
// Tokens are read from GIT_TOKEN_* environment variables, which works the
// same way in CI runners, containers and local shells:
//
//	export GIT_TOKEN_GITHUB="ghp_abc..."
//	export GIT_TOKEN_GITHUB='{"Value":"ghp_abc...","ExpiresAt":"2026-12-31T00:00:00Z"}'
package token

import (
	"errors"
	"time"
)

// Provider represents a Git provider type
type Provider string

// ProviderGitHub is the only provider a deployment remote can live on.
const ProviderGitHub Provider = "GITHUB"

// Common errors that may be returned by token operations
var (
	ErrTokenNotFound = errors.New("token not found")
	ErrTokenInvalid  = errors.New("token is invalid")
	ErrTokenExpired  = errors.New("token has expired")
)

// Token represents an authentication token with metadata
type Token struct {
	// Value is the actual token string
	Value string `json:"Value"`

	// ExpiresAt indicates when the token will expire
	// Zero value means the token does not expire
	ExpiresAt time.Time `json:"ExpiresAt"`
}

// IsExpired checks if a token has expired
func IsExpired(token Token) bool {
	if token.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(token.ExpiresAt)
}

// IsValid performs basic validation of a token
func IsValid(token Token) bool {
	return token.Value != ""
}
