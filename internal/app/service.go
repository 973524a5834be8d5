package app

import (
	"github.com/pscheid92/streamrelay/internal/domain"
)

// Repositories groups the persistent stores the service writes through.
type Repositories struct {
	Users     domain.UserRepository
	Streams   domain.StreamRepository
	Donations domain.DonationRepository
	Comments  domain.CommentRepository
}

// Credentials groups the password and token collaborators used by the
// account use cases.
type Credentials struct {
	Passwords domain.PasswordHasher
	Tokens    domain.TokenIssuer
	Blacklist domain.TokenBlacklist
}

// Service is the application layer. It is the only component that
// references multiple domain components.
type Service struct {
	users     domain.UserRepository
	streams   domain.StreamRepository
	donations domain.DonationRepository
	comments  domain.CommentRepository

	passwords domain.PasswordHasher
	tokens    domain.TokenIssuer
	blacklist domain.TokenBlacklist

	publisher domain.EventPublisher
	viewers   domain.GroupRegistry
	presence  domain.PresenceStore
}

func NewService(repos Repositories, creds Credentials, publisher domain.EventPublisher, viewers domain.GroupRegistry, presence domain.PresenceStore) *Service {
	return &Service{
		users:     repos.Users,
		streams:   repos.Streams,
		donations: repos.Donations,
		comments:  repos.Comments,
		passwords: creds.Passwords,
		tokens:    creds.Tokens,
		blacklist: creds.Blacklist,
		publisher: publisher,
		viewers:   viewers,
		presence:  presence,
	}
}
