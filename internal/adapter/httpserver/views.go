package httpserver

import (
	"time"

	"github.com/pscheid92/streamrelay/internal/domain"
)

type userView struct {
	ID         int64  `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	IsStreamer bool   `json:"is_streamer"`
}

func newUserView(u *domain.User) userView {
	return userView{ID: u.ID, Username: u.Username, Email: u.Email, IsStreamer: u.IsStreamer}
}

type streamView struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Streamer    int64     `json:"streamer"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newStreamView(s *domain.Stream) streamView {
	return streamView{
		ID:          s.ID,
		Title:       s.Title,
		Description: s.Description,
		Streamer:    s.StreamerID,
		IsActive:    s.IsActive,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

type donationView struct {
	ID            int64     `json:"id"`
	Amount        string    `json:"amount"`
	Message       string    `json:"message"`
	Stream        int64     `json:"stream"`
	Donor         int64     `json:"donor"`
	PaymentMethod string    `json:"payment_method"`
	Status        string    `json:"status"`
	TransactionID string    `json:"transaction_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func newDonationView(d *domain.Donation) donationView {
	return donationView{
		ID:            d.ID,
		Amount:        d.Amount,
		Message:       d.Message,
		Stream:        d.StreamID,
		Donor:         d.DonorID,
		PaymentMethod: d.PaymentMethod,
		Status:        string(d.Status),
		TransactionID: d.TransactionID,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

type commentView struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	User      int64     `json:"user"`
	Stream    int64     `json:"stream"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newCommentView(c *domain.Comment) commentView {
	return commentView{
		ID:        c.ID,
		Content:   c.Content,
		User:      c.UserID,
		Stream:    c.StreamID,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func mapViews[T, V any](items []T, view func(T) V) []V {
	out := make([]V, 0, len(items))
	for _, item := range items {
		out = append(out, view(item))
	}
	return out
}
