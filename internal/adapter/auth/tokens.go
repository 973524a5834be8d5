package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/streamrelay/internal/domain"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

type claims struct {
	UserID    int64  `json:"user_id"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenManager issues and parses HS256 access and refresh tokens.
type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	clock      clockwork.Clock
}

var _ domain.TokenIssuer = (*TokenManager)(nil)

func NewTokenManager(secret string, accessTTL, refreshTTL time.Duration, clock clockwork.Clock) *TokenManager {
	return &TokenManager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		clock:      clock,
	}
}

func (m *TokenManager) IssuePair(userID int64) (domain.TokenPair, error) {
	access, err := m.issue(userID, tokenTypeAccess, m.accessTTL)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refresh, err := m.issue(userID, tokenTypeRefresh, m.refreshTTL)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (m *TokenManager) IssueAccess(userID int64) (string, error) {
	return m.issue(userID, tokenTypeAccess, m.accessTTL)
}

func (m *TokenManager) issue(userID int64, tokenType string, ttl time.Duration) (string, error) {
	now := m.clock.Now()
	c := claims{
		UserID:    userID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

// ParseAccess validates an access token and returns the user ID it carries.
func (m *TokenManager) ParseAccess(token string) (int64, error) {
	c, err := m.parse(token, tokenTypeAccess)
	if err != nil {
		return 0, err
	}
	return c.UserID, nil
}

func (m *TokenManager) ParseRefresh(token string) (domain.RefreshClaims, error) {
	c, err := m.parse(token, tokenTypeRefresh)
	if err != nil {
		return domain.RefreshClaims{}, err
	}
	return domain.RefreshClaims{
		UserID:    c.UserID,
		TokenID:   c.ID,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}

func (m *TokenManager) parse(token, wantType string) (*claims, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", domain.ErrInvalidToken)
	}

	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: expired", domain.ErrInvalidToken)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("%w: not valid", domain.ErrInvalidToken)
	}
	if c.TokenType != wantType {
		return nil, fmt.Errorf("%w: expected %s token, got %q", domain.ErrInvalidToken, wantType, c.TokenType)
	}
	if c.UserID <= 0 {
		return nil, fmt.Errorf("%w: missing user_id", domain.ErrInvalidToken)
	}
	return &c, nil
}
