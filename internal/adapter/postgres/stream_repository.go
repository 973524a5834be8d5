package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/streamrelay/internal/domain"
)

const streamColumns = `id, title, description, streamer_id, is_active, created_at, updated_at`

type StreamRepo struct {
	pool *pgxpool.Pool
}

var _ domain.StreamRepository = (*StreamRepo)(nil)

func NewStreamRepo(pool *pgxpool.Pool) *StreamRepo {
	return &StreamRepo{pool: pool}
}

func scanStream(row pgx.Row) (*domain.Stream, error) {
	var s domain.Stream
	if err := row.Scan(&s.ID, &s.Title, &s.Description, &s.StreamerID, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *StreamRepo) Create(ctx context.Context, streamerID int64, title, description string) (*domain.Stream, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO streams (streamer_id, title, description)
		VALUES ($1, $2, $3)
		RETURNING `+streamColumns,
		streamerID, title, description)

	s, err := scanStream(row)
	if _, ok := constraintViolation(err, pgForeignKeyViolation); ok {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}
	return s, nil
}

func (r *StreamRepo) GetByID(ctx context.Context, streamID int64) (*domain.Stream, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+streamColumns+` FROM streams WHERE id = $1`, streamID)
	s, err := scanStream(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrStreamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stream: %w", err)
	}
	return s, nil
}

func (r *StreamRepo) List(ctx context.Context) ([]*domain.Stream, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+streamColumns+` FROM streams ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list streams: %w", err)
	}
	defer rows.Close()

	streams := []*domain.Stream{}
	for rows.Next() {
		s, err := scanStream(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stream: %w", err)
		}
		streams = append(streams, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list streams: %w", err)
	}
	return streams, nil
}

func (r *StreamRepo) SetActive(ctx context.Context, streamID int64, active bool) (*domain.Stream, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE streams SET is_active = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+streamColumns,
		streamID, active)

	s, err := scanStream(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrStreamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update stream: %w", err)
	}
	return s, nil
}
