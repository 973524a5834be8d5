package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/streamrelay/internal/domain"
)

// Amounts travel as text so NUMERIC precision is never routed through float64.
const donationColumns = `id, stream_id, donor_id, amount::text, message, payment_method, status, transaction_id::text, created_at, updated_at`

type DonationRepo struct {
	pool *pgxpool.Pool
}

var _ domain.DonationRepository = (*DonationRepo)(nil)

func NewDonationRepo(pool *pgxpool.Pool) *DonationRepo {
	return &DonationRepo{pool: pool}
}

func scanDonation(row pgx.Row) (*domain.Donation, error) {
	var d domain.Donation
	var status string
	err := row.Scan(&d.ID, &d.StreamID, &d.DonorID, &d.Amount, &d.Message, &d.PaymentMethod,
		&status, &d.TransactionID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	d.Status = domain.DonationStatus(status)
	return &d, nil
}

func (r *DonationRepo) Create(ctx context.Context, nd domain.NewDonation) (*domain.Donation, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO donations (stream_id, donor_id, amount, message, payment_method)
		VALUES ($1, $2, $3::text::numeric, $4, $5)
		RETURNING `+donationColumns,
		nd.StreamID, nd.DonorID, nd.Amount, nd.Message, nd.PaymentMethod)

	d, err := scanDonation(row)
	if constraint, ok := constraintViolation(err, pgForeignKeyViolation); ok {
		if constraint == "donations_donor_id_fkey" {
			return nil, domain.ErrUserNotFound
		}
		return nil, domain.ErrStreamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create donation: %w", err)
	}
	return d, nil
}

func (r *DonationRepo) GetByID(ctx context.Context, donationID int64) (*domain.Donation, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+donationColumns+` FROM donations WHERE id = $1`, donationID)
	d, err := scanDonation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrDonationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get donation: %w", err)
	}
	return d, nil
}

func (r *DonationRepo) SetStatus(ctx context.Context, donationID int64, status domain.DonationStatus) (*domain.Donation, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE donations SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+donationColumns,
		donationID, string(status))

	d, err := scanDonation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrDonationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update donation status: %w", err)
	}
	return d, nil
}

// ListByStream returns a stream's donations newest first.
func (r *DonationRepo) ListByStream(ctx context.Context, streamID int64) ([]*domain.Donation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+donationColumns+` FROM donations
		WHERE stream_id = $1
		ORDER BY created_at DESC, id DESC`, streamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list donations: %w", err)
	}
	defer rows.Close()

	donations := []*domain.Donation{}
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan donation: %w", err)
		}
		donations = append(donations, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list donations: %w", err)
	}
	return donations, nil
}
