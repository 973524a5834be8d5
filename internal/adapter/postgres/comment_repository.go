package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/streamrelay/internal/domain"
)

const commentColumns = `id, stream_id, user_id, content, created_at, updated_at`

type CommentRepo struct {
	pool *pgxpool.Pool
}

var _ domain.CommentRepository = (*CommentRepo)(nil)

func NewCommentRepo(pool *pgxpool.Pool) *CommentRepo {
	return &CommentRepo{pool: pool}
}

func scanComment(row pgx.Row) (*domain.Comment, error) {
	var c domain.Comment
	if err := row.Scan(&c.ID, &c.StreamID, &c.UserID, &c.Content, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CommentRepo) Create(ctx context.Context, streamID, userID int64, content string) (*domain.Comment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO comments (stream_id, user_id, content)
		VALUES ($1, $2, $3)
		RETURNING `+commentColumns,
		streamID, userID, content)

	c, err := scanComment(row)
	if constraint, ok := constraintViolation(err, pgForeignKeyViolation); ok {
		if constraint == "comments_user_id_fkey" {
			return nil, domain.ErrUserNotFound
		}
		return nil, domain.ErrStreamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	return c, nil
}

// ListByStream returns a stream's comments oldest first.
func (r *CommentRepo) ListByStream(ctx context.Context, streamID int64) ([]*domain.Comment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+commentColumns+` FROM comments
		WHERE stream_id = $1
		ORDER BY created_at, id`, streamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := []*domain.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return comments, nil
}
