package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pscheid92/streamrelay/internal/domain"
)

// --- Mock implementations ---

type mockUserRepo struct {
	createFn        func(ctx context.Context, u domain.NewUser) (*domain.User, error)
	getByIDFn       func(ctx context.Context, userID int64) (*domain.User, error)
	getByUsernameFn func(ctx context.Context, username string) (*domain.User, error)
}

func (m *mockUserRepo) Create(ctx context.Context, u domain.NewUser) (*domain.User, error) {
	if m.createFn != nil {
		return m.createFn(ctx, u)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockUserRepo) GetByID(ctx context.Context, userID int64) (*domain.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, userID)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	if m.getByUsernameFn != nil {
		return m.getByUsernameFn(ctx, username)
	}
	return nil, fmt.Errorf("not implemented")
}

type mockStreamRepo struct {
	createFn    func(ctx context.Context, streamerID int64, title, description string) (*domain.Stream, error)
	getByIDFn   func(ctx context.Context, streamID int64) (*domain.Stream, error)
	listFn      func(ctx context.Context) ([]*domain.Stream, error)
	setActiveFn func(ctx context.Context, streamID int64, active bool) (*domain.Stream, error)
}

func (m *mockStreamRepo) Create(ctx context.Context, streamerID int64, title, description string) (*domain.Stream, error) {
	if m.createFn != nil {
		return m.createFn(ctx, streamerID, title, description)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockStreamRepo) GetByID(ctx context.Context, streamID int64) (*domain.Stream, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, streamID)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockStreamRepo) List(ctx context.Context) ([]*domain.Stream, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockStreamRepo) SetActive(ctx context.Context, streamID int64, active bool) (*domain.Stream, error) {
	if m.setActiveFn != nil {
		return m.setActiveFn(ctx, streamID, active)
	}
	return nil, fmt.Errorf("not implemented")
}

type mockDonationRepo struct {
	createFn    func(ctx context.Context, d domain.NewDonation) (*domain.Donation, error)
	getByIDFn   func(ctx context.Context, donationID int64) (*domain.Donation, error)
	setStatusFn func(ctx context.Context, donationID int64, status domain.DonationStatus) (*domain.Donation, error)
	listFn      func(ctx context.Context, streamID int64) ([]*domain.Donation, error)
}

func (m *mockDonationRepo) ListByStream(ctx context.Context, streamID int64) ([]*domain.Donation, error) {
	if m.listFn != nil {
		return m.listFn(ctx, streamID)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockDonationRepo) Create(ctx context.Context, d domain.NewDonation) (*domain.Donation, error) {
	if m.createFn != nil {
		return m.createFn(ctx, d)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockDonationRepo) GetByID(ctx context.Context, donationID int64) (*domain.Donation, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, donationID)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockDonationRepo) SetStatus(ctx context.Context, donationID int64, status domain.DonationStatus) (*domain.Donation, error) {
	if m.setStatusFn != nil {
		return m.setStatusFn(ctx, donationID, status)
	}
	return nil, fmt.Errorf("not implemented")
}

type mockCommentRepo struct {
	createFn       func(ctx context.Context, streamID, userID int64, content string) (*domain.Comment, error)
	listByStreamFn func(ctx context.Context, streamID int64) ([]*domain.Comment, error)
}

func (m *mockCommentRepo) Create(ctx context.Context, streamID, userID int64, content string) (*domain.Comment, error) {
	if m.createFn != nil {
		return m.createFn(ctx, streamID, userID, content)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockCommentRepo) ListByStream(ctx context.Context, streamID int64) ([]*domain.Comment, error) {
	if m.listByStreamFn != nil {
		return m.listByStreamFn(ctx, streamID)
	}
	return nil, fmt.Errorf("not implemented")
}

// mockHasher "hashes" by prefixing, so tests can assert on stored values.
type mockHasher struct {
	hashErr error
}

func (m *mockHasher) Hash(password string) (string, error) {
	if m.hashErr != nil {
		return "", m.hashErr
	}
	return "hashed:" + password, nil
}

func (m *mockHasher) Compare(hash, password string) error {
	if hash != "hashed:"+password {
		return fmt.Errorf("mismatch")
	}
	return nil
}

type mockTokenIssuer struct {
	issuePairFn    func(userID int64) (domain.TokenPair, error)
	issueAccessFn  func(userID int64) (string, error)
	parseRefreshFn func(token string) (domain.RefreshClaims, error)
}

func (m *mockTokenIssuer) IssuePair(userID int64) (domain.TokenPair, error) {
	if m.issuePairFn != nil {
		return m.issuePairFn(userID)
	}
	return domain.TokenPair{
		AccessToken:  fmt.Sprintf("access-%d", userID),
		RefreshToken: fmt.Sprintf("refresh-%d", userID),
	}, nil
}

func (m *mockTokenIssuer) IssueAccess(userID int64) (string, error) {
	if m.issueAccessFn != nil {
		return m.issueAccessFn(userID)
	}
	return fmt.Sprintf("access-%d", userID), nil
}

func (m *mockTokenIssuer) ParseRefresh(token string) (domain.RefreshClaims, error) {
	if m.parseRefreshFn != nil {
		return m.parseRefreshFn(token)
	}
	return domain.RefreshClaims{}, domain.ErrInvalidToken
}

type mockBlacklist struct {
	mu        sync.Mutex
	revoked   map[string]time.Time
	isRevoked func(ctx context.Context, tokenID string) (bool, error)
	revokeErr error
}

func newMockBlacklist() *mockBlacklist {
	return &mockBlacklist{revoked: make(map[string]time.Time)}
}

func (m *mockBlacklist) Revoke(_ context.Context, tokenID string, expiresAt time.Time) error {
	if m.revokeErr != nil {
		return m.revokeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[tokenID] = expiresAt
	return nil
}

func (m *mockBlacklist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if m.isRevoked != nil {
		return m.isRevoked(ctx, tokenID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[tokenID]
	return ok, nil
}

type mockPublisher struct {
	mu        sync.Mutex
	donations []*domain.Donation
	comments  []*domain.Comment
}

func (m *mockPublisher) PublishDonation(_ context.Context, d *domain.Donation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.donations = append(m.donations, d)
}

func (m *mockPublisher) PublishComment(_ context.Context, c *domain.Comment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.comments = append(m.comments, c)
}

type mockRegistry struct {
	counts map[string]int
}

func (m *mockRegistry) Join(string, string) bool  { return true }
func (m *mockRegistry) Leave(string, string) bool { return true }
func (m *mockRegistry) Count(streamID string) int { return m.counts[streamID] }

type mockPresence struct {
	mu           sync.Mutex
	local        map[string]int
	totalCountFn func(ctx context.Context, streamID string) (int, error)
	setErr       error
}

func (m *mockPresence) SetLocalCount(_ context.Context, streamID string, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.local == nil {
		m.local = make(map[string]int)
	}
	m.local[streamID] = count
	return m.setErr
}

func (m *mockPresence) TotalCount(ctx context.Context, streamID string) (int, error) {
	if m.totalCountFn != nil {
		return m.totalCountFn(ctx, streamID)
	}
	return 0, nil
}

// --- Test helpers ---

type testDeps struct {
	users     *mockUserRepo
	streams   *mockStreamRepo
	donations *mockDonationRepo
	comments  *mockCommentRepo
	tokens    *mockTokenIssuer
	blacklist *mockBlacklist
	publisher *mockPublisher
	registry  *mockRegistry
	presence  *mockPresence
}

func newTestService() (*Service, *testDeps) {
	d := &testDeps{
		users:     &mockUserRepo{},
		streams:   &mockStreamRepo{},
		donations: &mockDonationRepo{},
		comments:  &mockCommentRepo{},
		tokens:    &mockTokenIssuer{},
		blacklist: newMockBlacklist(),
		publisher: &mockPublisher{},
		registry:  &mockRegistry{counts: make(map[string]int)},
		presence:  &mockPresence{},
	}
	svc := NewService(
		Repositories{Users: d.users, Streams: d.streams, Donations: d.donations, Comments: d.comments},
		Credentials{Passwords: &mockHasher{}, Tokens: d.tokens, Blacklist: d.blacklist},
		d.publisher, d.registry, d.presence,
	)
	return svc, d
}

func stream(id, streamerID int64) *domain.Stream {
	return &domain.Stream{ID: id, Title: "Test stream", StreamerID: streamerID}
}
