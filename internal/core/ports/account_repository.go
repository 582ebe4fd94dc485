package ports

import (
	"context"
	"time"

	"github.com/anonychat/anonychat-api/internal/core/domain"
)

// CodeRedemption describes what a successful code redemption changes besides
// consuming the code.
type CodeRedemption struct {
	MarkVerified bool
	PasswordHash string // empty = keep current password
}

// AccountRepository defines persistence operations for accounts and their inboxes.
// Every mutating method is scoped by the account id it receives.
type AccountRepository interface {
	// Create inserts a new account. A clash on the username or email index
	// returns domain.ErrUsernameTaken or domain.ErrEmailTaken.
	Create(ctx context.Context, account *domain.Account) (*domain.Account, error)

	FindByID(ctx context.Context, id string) (*domain.Account, error)
	// FindByUsername matches the username exactly.
	FindByUsername(ctx context.Context, username string) (*domain.Account, error)
	// FindByUsernameFold matches the username case-insensitively.
	FindByUsernameFold(ctx context.Context, username string) (*domain.Account, error)
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	// FindByIdentifier matches either the exact username or the email.
	FindByIdentifier(ctx context.Context, identifier string) (*domain.Account, error)
	FindByUsernameAndEmail(ctx context.Context, username, email string) (*domain.Account, error)

	// ReplaceRegistration overwrites the credentials and code of an unverified account.
	ReplaceRegistration(ctx context.Context, id, username, passwordHash, code string, expiry time.Time) error
	// DeleteUnverified removes the account only while it is unverified.
	// Returns domain.ErrAccountNotFound otherwise.
	DeleteUnverified(ctx context.Context, id string) error
	SetVerificationCode(ctx context.Context, id, code string, expiry time.Time) error
	// RedeemCode atomically consumes code if it still matches and has not expired
	// at now, applying change in the same update. Returns domain.ErrInvalidCode
	// when the guard does not match.
	RedeemCode(ctx context.Context, id, code string, now time.Time, change CodeRedemption) error

	SetAcceptingMessages(ctx context.Context, id string, accept bool) (*domain.Account, error)

	AppendMessage(ctx context.Context, accountID string, msg *domain.Message) error
	ListMessages(ctx context.Context, accountID string) ([]domain.Message, error)
	DeleteMessage(ctx context.Context, accountID, messageID string) error
}
