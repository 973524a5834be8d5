package postgres

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pscheid92/streamrelay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDonationRepo_CreateKeepsPrecision(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewDonationRepo(pool)
	ctx := context.Background()
	streamer := createTestUser(t, pool, "streamer", true)
	donor := createTestUser(t, pool, "donor", false)
	stream := createTestStream(t, pool, streamer.ID)

	d, err := repo.Create(ctx, domain.NewDonation{
		StreamID:      stream.ID,
		DonorID:       donor.ID,
		Amount:        "50000",
		Message:       "keep it up",
		PaymentMethod: "bank_transfer",
	})
	require.NoError(t, err)

	assert.Equal(t, "50000.00", d.Amount)
	assert.Equal(t, domain.DonationPending, d.Status)
	_, err = uuid.Parse(d.TransactionID)
	assert.NoError(t, err)

	got, err := repo.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.TransactionID, got.TransactionID)
	assert.Equal(t, "keep it up", got.Message)
}

func TestDonationRepo_SetStatus(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewDonationRepo(pool)
	ctx := context.Background()
	streamer := createTestUser(t, pool, "streamer", true)
	stream := createTestStream(t, pool, streamer.ID)

	d, err := repo.Create(ctx, domain.NewDonation{StreamID: stream.ID, DonorID: streamer.ID, Amount: "12.5", PaymentMethod: "credit_card"})
	require.NoError(t, err)
	assert.Equal(t, "12.50", d.Amount)

	confirmed, err := repo.SetStatus(ctx, d.ID, domain.DonationCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.DonationCompleted, confirmed.Status)

	_, err = repo.SetStatus(ctx, 9999, domain.DonationCompleted)
	assert.ErrorIs(t, err, domain.ErrDonationNotFound)
}

func TestDonationRepo_MissingReferences(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewDonationRepo(pool)
	ctx := context.Background()
	donor := createTestUser(t, pool, "donor", false)
	stream := createTestStream(t, pool, donor.ID)

	_, err := repo.Create(ctx, domain.NewDonation{StreamID: 9999, DonorID: donor.ID, Amount: "1", PaymentMethod: "x"})
	assert.ErrorIs(t, err, domain.ErrStreamNotFound)

	_, err = repo.Create(ctx, domain.NewDonation{StreamID: stream.ID, DonorID: 9999, Amount: "1", PaymentMethod: "x"})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = repo.GetByID(ctx, 9999)
	assert.ErrorIs(t, err, domain.ErrDonationNotFound)
}

func TestDonationRepo_ListByStream(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewDonationRepo(pool)
	ctx := context.Background()
	streamer := createTestUser(t, pool, "streamer", true)
	stream := createTestStream(t, pool, streamer.ID)
	other := createTestStream(t, pool, streamer.ID)

	first, err := repo.Create(ctx, domain.NewDonation{StreamID: stream.ID, DonorID: streamer.ID, Amount: "1", PaymentMethod: "x"})
	require.NoError(t, err)
	second, err := repo.Create(ctx, domain.NewDonation{StreamID: stream.ID, DonorID: streamer.ID, Amount: "2", PaymentMethod: "x"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, domain.NewDonation{StreamID: other.ID, DonorID: streamer.ID, Amount: "3", PaymentMethod: "x"})
	require.NoError(t, err)

	donations, err := repo.ListByStream(ctx, stream.ID)
	require.NoError(t, err)
	require.Len(t, donations, 2)
	assert.Equal(t, second.ID, donations[0].ID)
	assert.Equal(t, first.ID, donations[1].ID)

	empty, err := repo.ListByStream(ctx, 9999)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
