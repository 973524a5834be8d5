package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/pscheid92/streamrelay/internal/domain"
)

// CreateComment stores a comment and announces it to the stream's viewers
// once committed.
func (s *Service) CreateComment(ctx context.Context, userID, streamID int64, content string) (*domain.Comment, error) {
	if streamID <= 0 {
		return nil, domain.InvalidInput("stream_id", "This field is required.")
	}
	if strings.TrimSpace(content) == "" {
		return nil, domain.InvalidInput("content", "This field may not be blank.")
	}

	comment, err := s.comments.Create(ctx, streamID, userID, content)
	if err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	s.publisher.PublishComment(ctx, comment)
	return comment, nil
}

func (s *Service) ListComments(ctx context.Context, streamID int64) ([]*domain.Comment, error) {
	if _, err := s.streams.GetByID(ctx, streamID); err != nil {
		return nil, err
	}
	return s.comments.ListByStream(ctx, streamID)
}
