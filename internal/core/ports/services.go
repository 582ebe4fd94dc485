package ports

import (
	"context"

	"github.com/anonychat/anonychat-api/internal/core/domain"
)

// RegisterInput carries signup data from the transport layer.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// Eligibility is the public view of a username for message delivery.
type Eligibility struct {
	Exists          bool
	AcceptsMessages bool
}

// AccountService covers registration and account preferences.
type AccountService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.Account, error)
	CheckEligibility(ctx context.Context, username string) (Eligibility, error)
	CheckUsernameAvailable(ctx context.Context, username string) error
	AcceptingMessages(ctx context.Context, accountID string) (bool, error)
	SetAcceptingMessages(ctx context.Context, accountID string, accept bool) (bool, error)
}

// ResetPasswordInput carries the data needed to redeem a password reset code.
type ResetPasswordInput struct {
	Username    string
	Code        string
	NewPassword string
}

// VerificationService issues and redeems verification codes.
type VerificationService interface {
	IssueCode(ctx context.Context, account *domain.Account, purpose domain.CodePurpose) error
	VerifyEmail(ctx context.Context, username, code string) error
	ResendVerification(ctx context.Context, username, email string) error
	RequestPasswordReset(ctx context.Context, identifier string) error
	ResetPassword(ctx context.Context, in ResetPasswordInput) error
}

// DeliverInput is a public message submission.
type DeliverInput struct {
	Username string
	Content  string
	// ClientKey identifies the sender for throttling (typically the remote IP).
	ClientKey string
}

// MessageService is the inbox: public delivery plus owner-scoped reads and deletes.
type MessageService interface {
	Deliver(ctx context.Context, in DeliverInput) (*domain.Message, error)
	List(ctx context.Context, accountID string) ([]domain.Message, error)
	Delete(ctx context.Context, accountID, messageID string) error
}

// Session is the result of a successful sign-in.
type Session struct {
	Token    string
	Identity domain.Identity
}

// SessionService authenticates callers and issues/validates session tokens.
type SessionService interface {
	Authenticate(ctx context.Context, identifier, password string) (*Session, error)
	ParseToken(token string) (domain.Identity, error)
}

// InsightService wraps the generative-AI features.
type InsightService interface {
	SuggestMessages(ctx context.Context) ([]string, error)
	SummarizeMessages(ctx context.Context, accountID string) (string, error)
}
