package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/pscheid92/streamrelay/internal/domain"
	"golang.org/x/sync/singleflight"
)

const lookupTimeout = 3 * time.Second

type userLookup interface {
	GetByID(ctx context.Context, userID int64) (*domain.User, error)
}

// Verifier resolves access tokens to identities. Concurrent lookups of the
// same user share one store round trip.
type Verifier struct {
	tokens *TokenManager
	users  userLookup
	group  singleflight.Group
}

var _ domain.TokenVerifier = (*Verifier)(nil)

func NewVerifier(tokens *TokenManager, users userLookup) *Verifier {
	return &Verifier{tokens: tokens, users: users}
}

func (v *Verifier) Verify(ctx context.Context, token string) (domain.Identity, error) {
	userID, err := v.tokens.ParseAccess(token)
	if err != nil {
		return domain.Identity{}, err
	}

	key := strconv.FormatInt(userID, 10)
	result, err, _ := v.group.Do(key, func() (any, error) {
		// Detached so one caller's disconnect does not fail the others.
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()
		return v.users.GetByID(lookupCtx, userID)
	})
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.Identity{}, fmt.Errorf("%w: user %d", domain.ErrIdentityNotFound, userID)
	}
	if err != nil {
		return domain.Identity{}, fmt.Errorf("failed to look up user %d: %w", userID, err)
	}

	user := result.(*domain.User)
	return domain.Identity{UserID: user.ID, Username: user.Username}, nil
}
