package domain

import (
	"context"
	"time"
)

type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	IsStreamer   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity is the resolved owner of a verified bearer token.
type Identity struct {
	UserID   int64
	Username string
}

type NewUser struct {
	Username     string
	Email        string
	PasswordHash string
	IsStreamer   bool
}

type UserRepository interface {
	Create(ctx context.Context, u NewUser) (*User, error)
	GetByID(ctx context.Context, userID int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
}
