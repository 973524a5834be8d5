package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/streamrelay/internal/adapter/metrics"
	"github.com/pscheid92/streamrelay/internal/domain"
	"github.com/pscheid92/streamrelay/internal/platform/correlation"
	apperrors "github.com/pscheid92/streamrelay/internal/platform/errors"
)

const (
	headerCorrelationID = "X-Correlation-ID"
	identityKey         = "identity"
)

func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := correlation.NewID()
		ctx := correlation.WithID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		c.Response().Header().Set(headerCorrelationID, id)
		return next(c)
	}
}

// requireAuth resolves the bearer access token with the same verifier the
// stream socket uses.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := bearerToken(c.Request())
		if !ok {
			return apperrors.UnauthorizedError("Authentication credentials were not provided.")
		}

		identity, err := s.verifier.Verify(c.Request().Context(), token)
		if errors.Is(err, domain.ErrInvalidToken) || errors.Is(err, domain.ErrIdentityNotFound) {
			return apperrors.UnauthorizedError("Given token not valid for any token type.")
		}
		if err != nil {
			return apperrors.InternalError("failed to verify token", err)
		}

		c.Set(identityKey, identity)
		return next(c)
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get(echo.HeaderAuthorization), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func identityFrom(c echo.Context) (domain.Identity, error) {
	identity, ok := c.Get(identityKey).(domain.Identity)
	if !ok {
		return domain.Identity{}, apperrors.InternalError("missing identity in context", nil)
	}
	return identity, nil
}

// ErrorHandlingMiddleware renders every handler error as the response
// envelope. m may be nil.
func ErrorHandlingMiddleware(m *metrics.HTTPMetrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}
			if c.Response().Committed {
				slog.DebugContext(c.Request().Context(), "Error after response was committed", "error", err)
				return nil
			}

			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				return writeHTTPError(c, httpErr)
			}

			structuredErr := toStructuredError(err)
			logError(c, structuredErr)
			if m != nil {
				m.ErrorsTotal.WithLabelValues(string(structuredErr.Type)).Inc()
			}

			if err := c.JSON(structuredErr.HTTPStatus(), structuredErr.ToResponse()); err != nil {
				return fmt.Errorf("failed to write error response: %w", err)
			}
			return nil
		}
	}
}

// toStructuredError maps domain errors to their client-facing form.
// Anything unrecognised becomes an internal error.
func toStructuredError(err error) *apperrors.Error {
	var structured *apperrors.Error
	if errors.As(err, &structured) {
		return structured
	}

	var invalid *domain.InvalidInputError
	if errors.As(err, &invalid) {
		return apperrors.ValidationError(invalid.Error()).WithField("field", invalid.Field)
	}

	switch {
	case errors.Is(err, domain.ErrUsernameTaken):
		return apperrors.ValidationError("Username is already taken.")
	case errors.Is(err, domain.ErrEmailTaken):
		return apperrors.ValidationError("Email is already registered.")
	case errors.Is(err, domain.ErrInvalidCredentials):
		return apperrors.ValidationError("Invalid username or password.")
	case errors.Is(err, domain.ErrInvalidToken),
		errors.Is(err, domain.ErrTokenRevoked),
		errors.Is(err, domain.ErrIdentityNotFound):
		return apperrors.UnauthorizedError("Token is invalid or expired.")
	case errors.Is(err, domain.ErrNotStreamOwner):
		return apperrors.ForbiddenError("You do not have permission to perform this action.")
	case errors.Is(err, domain.ErrNotStreamer):
		return apperrors.ForbiddenError("Only streamers can create streams.")
	case errors.Is(err, domain.ErrStreamNotFound):
		return apperrors.NotFoundError("Stream not found.")
	case errors.Is(err, domain.ErrDonationNotFound):
		return apperrors.NotFoundError("Donation not found.")
	case errors.Is(err, domain.ErrUserNotFound):
		return apperrors.NotFoundError("User not found.")
	}

	return apperrors.AsStructuredError(err)
}

func writeHTTPError(c echo.Context, httpErr *echo.HTTPError) error {
	message := http.StatusText(httpErr.Code)
	if msg, ok := httpErr.Message.(string); ok && msg != "" {
		message = msg
	}
	if err := c.JSON(httpErr.Code, apperrors.Response{Code: httpErr.Code, Message: message}); err != nil {
		return fmt.Errorf("failed to write error response: %w", err)
	}
	return nil
}

func logError(c echo.Context, err *apperrors.Error) {
	attrs := []any{
		"error_type", err.Type,
		"message", err.Message,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", err.HTTPStatus(),
	}

	for k, v := range err.Context {
		attrs = append(attrs, k, v)
	}

	if identity, ok := c.Get(identityKey).(domain.Identity); ok {
		attrs = append(attrs, "user_id", identity.UserID)
	}

	ctx := c.Request().Context()
	switch err.Type {
	case apperrors.TypeValidation, apperrors.TypeNotFound, apperrors.TypeUnauthorized, apperrors.TypeForbidden:
		slog.InfoContext(ctx, "Request rejected", attrs...)
	case apperrors.TypeConflict:
		slog.WarnContext(ctx, "Conflict", attrs...)
	case apperrors.TypeInternal:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.ErrorContext(ctx, "Internal error", attrs...)
	case apperrors.TypeExternal:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.ErrorContext(ctx, "External service error", attrs...)
	default:
		slog.ErrorContext(ctx, "Unknown error type", attrs...)
	}
}
