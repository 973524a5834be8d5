package app

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pscheid92/streamrelay/internal/domain"
)

const maxTitleLength = 255

func (s *Service) CreateStream(ctx context.Context, userID int64, title, description string) (*domain.Stream, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, domain.InvalidInput("title", "This field is required.")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return nil, domain.InvalidInput("title", fmt.Sprintf("Ensure this field has no more than %d characters.", maxTitleLength))
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.IsStreamer {
		return nil, domain.ErrNotStreamer
	}

	stream, err := s.streams.Create(ctx, userID, title, description)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}
	return stream, nil
}

func (s *Service) ListStreams(ctx context.Context) ([]*domain.Stream, error) {
	return s.streams.List(ctx)
}

func (s *Service) GetStream(ctx context.Context, streamID int64) (*domain.Stream, error) {
	return s.streams.GetByID(ctx, streamID)
}

// StartStream marks a stream live. Only its streamer may do so.
func (s *Service) StartStream(ctx context.Context, userID, streamID int64) (*domain.Stream, error) {
	return s.setActive(ctx, userID, streamID, true)
}

func (s *Service) StopStream(ctx context.Context, userID, streamID int64) (*domain.Stream, error) {
	return s.setActive(ctx, userID, streamID, false)
}

func (s *Service) setActive(ctx context.Context, userID, streamID int64, active bool) (*domain.Stream, error) {
	stream, err := s.streams.GetByID(ctx, streamID)
	if err != nil {
		return nil, err
	}
	if stream.StreamerID != userID {
		return nil, domain.ErrNotStreamOwner
	}

	updated, err := s.streams.SetActive(ctx, streamID, active)
	if err != nil {
		return nil, fmt.Errorf("failed to update stream: %w", err)
	}
	return updated, nil
}

// ViewerCounts reports authenticated viewers of a stream on this instance
// and across every live instance.
type ViewerCounts struct {
	Local int `json:"local"`
	Total int `json:"total"`
}

// Viewers falls back to the local count when the shared presence store is
// unavailable.
func (s *Service) Viewers(ctx context.Context, streamID int64) (ViewerCounts, error) {
	if _, err := s.streams.GetByID(ctx, streamID); err != nil {
		return ViewerCounts{}, err
	}

	id := strconv.FormatInt(streamID, 10)
	counts := ViewerCounts{Local: s.viewers.Count(id)}

	total, err := s.presence.TotalCount(ctx, id)
	if err != nil {
		slog.WarnContext(ctx, "Presence lookup failed, reporting local viewers only", "stream_id", id, "error", err)
		total = counts.Local
	}
	// The shared count lags local joins by up to one write.
	counts.Total = max(total, counts.Local)
	return counts, nil
}
