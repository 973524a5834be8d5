package app

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/pscheid92/streamrelay/internal/domain"
)

const maxPaymentMethodLength = 50

// Matches NUMERIC(10,2): up to eight integer digits and two decimals.
var amountPattern = regexp.MustCompile(`^\d{1,8}(\.\d{1,2})?$`)

type DonationRequest struct {
	StreamID      int64
	Amount        string
	Message       string
	PaymentMethod string
}

func (r DonationRequest) validate() error {
	if r.StreamID <= 0 {
		return domain.InvalidInput("stream_id", "This field is required.")
	}
	if !amountPattern.MatchString(r.Amount) {
		return domain.InvalidInput("amount", "Ensure there are no more than 8 digits before and 2 after the decimal point.")
	}
	if strings.Trim(r.Amount, "0.") == "" {
		return domain.InvalidInput("amount", "Ensure this value is greater than 0.")
	}
	if r.PaymentMethod == "" {
		return domain.InvalidInput("payment_method", "This field is required.")
	}
	if utf8.RuneCountInString(r.PaymentMethod) > maxPaymentMethodLength {
		return domain.InvalidInput("payment_method", fmt.Sprintf("Ensure this field has no more than %d characters.", maxPaymentMethodLength))
	}
	return nil
}

// CreateDonation stores a pending donation and announces it to the
// stream's viewers once committed.
func (s *Service) CreateDonation(ctx context.Context, donorID int64, req DonationRequest) (*domain.Donation, error) {
	req.Amount = strings.TrimSpace(req.Amount)
	req.PaymentMethod = strings.TrimSpace(req.PaymentMethod)
	if err := req.validate(); err != nil {
		return nil, err
	}

	donation, err := s.donations.Create(ctx, domain.NewDonation{
		StreamID:      req.StreamID,
		DonorID:       donorID,
		Amount:        req.Amount,
		Message:       req.Message,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create donation: %w", err)
	}

	s.publisher.PublishDonation(ctx, donation)
	return donation, nil
}

func (s *Service) GetDonation(ctx context.Context, donationID int64) (*domain.Donation, error) {
	return s.donations.GetByID(ctx, donationID)
}

// ListDonations returns a stream's donations, newest first.
func (s *Service) ListDonations(ctx context.Context, streamID int64) ([]*domain.Donation, error) {
	if _, err := s.streams.GetByID(ctx, streamID); err != nil {
		return nil, err
	}
	return s.donations.ListByStream(ctx, streamID)
}

// ConfirmDonation marks a donation completed. Confirming twice is harmless.
func (s *Service) ConfirmDonation(ctx context.Context, donationID int64) (*domain.Donation, error) {
	donation, err := s.donations.SetStatus(ctx, donationID, domain.DonationCompleted)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm donation: %w", err)
	}
	return donation, nil
}
