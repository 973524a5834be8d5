package domain

import (
	"context"
	"time"
)

type Stream struct {
	ID          int64
	Title       string
	Description string
	StreamerID  int64
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type StreamRepository interface {
	Create(ctx context.Context, streamerID int64, title, description string) (*Stream, error)
	GetByID(ctx context.Context, streamID int64) (*Stream, error)
	List(ctx context.Context) ([]*Stream, error)
	SetActive(ctx context.Context, streamID int64, active bool) (*Stream, error)
}

// DonationStatus is the lifecycle state of a donation.
type DonationStatus string

const (
	DonationPending   DonationStatus = "pending"
	DonationCompleted DonationStatus = "completed"
)

type Donation struct {
	ID            int64
	StreamID      int64
	DonorID       int64
	Amount        string // NUMERIC(10,2) rendered by the database, e.g. "50000.00"
	Message       string
	PaymentMethod string
	Status        DonationStatus
	TransactionID string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type NewDonation struct {
	StreamID      int64
	DonorID       int64
	Amount        string
	Message       string
	PaymentMethod string
}

type DonationRepository interface {
	Create(ctx context.Context, d NewDonation) (*Donation, error)
	GetByID(ctx context.Context, donationID int64) (*Donation, error)
	SetStatus(ctx context.Context, donationID int64, status DonationStatus) (*Donation, error)
	ListByStream(ctx context.Context, streamID int64) ([]*Donation, error)
}

type Comment struct {
	ID        int64
	StreamID  int64
	UserID    int64
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CommentRepository interface {
	Create(ctx context.Context, streamID, userID int64, content string) (*Comment, error)
	ListByStream(ctx context.Context, streamID int64) ([]*Comment, error)
}
