package app

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/pscheid92/streamrelay/internal/domain"
)

const (
	maxUsernameLength = 150
	minPasswordLength = 8
	maxPasswordLength = 72 // bcrypt ignores anything longer
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

type RegisterRequest struct {
	Username   string
	Email      string
	Password   string
	IsStreamer bool
}

func (r RegisterRequest) validate() error {
	switch {
	case r.Username == "":
		return domain.InvalidInput("username", "This field is required.")
	case utf8.RuneCountInString(r.Username) > maxUsernameLength:
		return domain.InvalidInput("username", fmt.Sprintf("Ensure this field has no more than %d characters.", maxUsernameLength))
	case !usernamePattern.MatchString(r.Username):
		return domain.InvalidInput("username", "Enter a valid username. It may contain only letters, numbers, and @/./+/-/_ characters.")
	}

	if r.Email == "" {
		return domain.InvalidInput("email", "This field is required.")
	}
	if addr, err := mail.ParseAddress(r.Email); err != nil || addr.Address != r.Email {
		return domain.InvalidInput("email", "Enter a valid email address.")
	}

	switch {
	case r.Password == "":
		return domain.InvalidInput("password", "This field is required.")
	case len(r.Password) < minPasswordLength:
		return domain.InvalidInput("password", fmt.Sprintf("Ensure this field has at least %d characters.", minPasswordLength))
	case len(r.Password) > maxPasswordLength:
		return domain.InvalidInput("password", fmt.Sprintf("Ensure this field has no more than %d bytes.", maxPasswordLength))
	}
	return nil
}

// Register creates an account. Duplicate usernames and emails surface as
// ErrUsernameTaken and ErrEmailTaken.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*domain.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if err := req.validate(); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.users.Create(ctx, domain.NewUser{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		IsStreamer:   req.IsStreamer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Login exchanges credentials for a token pair. Unknown users and wrong
// passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (domain.TokenPair, error) {
	if username == "" || password == "" {
		return domain.TokenPair{}, domain.ErrInvalidCredentials
	}

	user, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.TokenPair{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("failed to load user: %w", err)
	}

	if err := s.passwords.Compare(user.PasswordHash, password); err != nil {
		return domain.TokenPair{}, domain.ErrInvalidCredentials
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("failed to issue tokens: %w", err)
	}
	return pair, nil
}

// Refresh issues a new access token for a valid, unrevoked refresh token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return "", err
	}

	revoked, err := s.blacklist.IsRevoked(ctx, claims.TokenID)
	if err != nil {
		return "", fmt.Errorf("failed to check token revocation: %w", err)
	}
	if revoked {
		return "", domain.ErrTokenRevoked
	}

	if _, err := s.users.GetByID(ctx, claims.UserID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", domain.ErrIdentityNotFound
		}
		return "", fmt.Errorf("failed to load user: %w", err)
	}

	access, err := s.tokens.IssueAccess(claims.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to issue access token: %w", err)
	}
	return access, nil
}

// Logout revokes the caller's refresh token until it would have expired.
// A token belonging to another user is treated as invalid.
func (s *Service) Logout(ctx context.Context, userID int64, refreshToken string) error {
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return err
	}
	if claims.UserID != userID {
		return fmt.Errorf("refresh token issued to another user: %w", domain.ErrInvalidToken)
	}

	if err := s.blacklist.Revoke(ctx, claims.TokenID, claims.ExpiresAt); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// CurrentUser returns the account behind an authenticated identity.
func (s *Service) CurrentUser(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load current user: %w", err)
	}
	return user, nil
}
