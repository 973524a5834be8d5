package domain

import (
	"context"
	"time"
)

// TokenVerifier resolves a bearer access token to an Identity.
// Errors are ErrInvalidToken or ErrIdentityNotFound (possibly wrapped),
// or an infrastructure error from the user store.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// TokenPair is returned on login.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// RefreshClaims is the verified content of a refresh token.
type RefreshClaims struct {
	UserID    int64
	TokenID   string
	ExpiresAt time.Time
}

type TokenIssuer interface {
	IssuePair(userID int64) (TokenPair, error)
	IssueAccess(userID int64) (string, error)
	ParseRefresh(token string) (RefreshClaims, error)
}

// TokenBlacklist records revoked refresh token IDs until they expire.
type TokenBlacklist interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}
