package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/anonychat/anonychat-api/internal/core/domain"
	"github.com/anonychat/anonychat-api/internal/core/ports"
	"github.com/anonychat/anonychat-api/pkg/metrics"
)

// AccountService implements registration, eligibility and the acceptance flag.
type AccountService struct {
	repo  ports.AccountRepository
	codes *VerificationService
	log   zerolog.Logger
	now   func() time.Time
}

func NewAccountService(repo ports.AccountRepository, codes *VerificationService, log zerolog.Logger) *AccountService {
	return &AccountService{
		repo:  repo,
		codes: codes,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Register creates an unverified account, or refreshes an abandoned unverified
// signup that used the same email, and emails a verification code. An
// unverified account holding the username under another email is released.
func (s *AccountService) Register(ctx context.Context, in ports.RegisterInput) (*domain.Account, error) {
	email := domain.NormalizeEmail(in.Email)
	if !domain.ValidUsername(in.Username) {
		return nil, fmt.Errorf("%w: username must be %d-%d letters, digits or underscores",
			domain.ErrValidation, domain.UsernameMinLen, domain.UsernameMaxLen)
	}
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", domain.ErrValidation)
	}
	if len(in.Password) < domain.PasswordMinLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, domain.PasswordMinLen)
	}

	holder, err := s.repo.FindByUsernameFold(ctx, in.Username)
	switch {
	case err == nil && holder.IsVerified:
		metrics.AccountsRegisteredTotal.WithLabelValues("conflict").Inc()
		return nil, domain.ErrUsernameTaken
	case err != nil && !errors.Is(err, domain.ErrAccountNotFound):
		return nil, fmt.Errorf("register: %w", err)
	}

	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, fmt.Errorf("register: %w", err)
	}
	if existing != nil && existing.IsVerified {
		metrics.AccountsRegisteredTotal.WithLabelValues("conflict").Inc()
		return nil, domain.ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("register: hash: %w", err)
	}

	if holder != nil && !holder.IsVerified && (existing == nil || existing.ID != holder.ID) {
		if err := s.release(ctx, holder); err != nil {
			return nil, err
		}
	}

	var account *domain.Account
	if existing != nil {
		account, err = s.replace(ctx, existing, in.Username, string(hash))
	} else {
		account, err = s.create(ctx, in.Username, email, string(hash))
	}
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			metrics.AccountsRegisteredTotal.WithLabelValues("conflict").Inc()
		}
		return nil, err
	}

	if err := s.codes.send(ctx, account, domain.PurposeVerifyEmail); err != nil {
		return nil, err
	}
	return account, nil
}

// release deletes an unverified account so its username can be claimed.
// Losing the race to a verification leaves the holder in place and the
// following insert reports the clash.
func (s *AccountService) release(ctx context.Context, holder *domain.Account) error {
	err := s.repo.DeleteUnverified(ctx, holder.ID)
	switch {
	case err == nil:
		metrics.AccountsRegisteredTotal.WithLabelValues("released").Inc()
		s.log.Info().Str("account_id", holder.ID).Str("username", holder.Username).Msg("stale unverified account released")
		return nil
	case errors.Is(err, domain.ErrAccountNotFound):
		return nil
	default:
		return fmt.Errorf("register: release username: %w", err)
	}
}

func (s *AccountService) create(ctx context.Context, username, email, hash string) (*domain.Account, error) {
	code, expiry, err := s.codes.prepareCode(ctx, "")
	if err != nil {
		return nil, err
	}

	now := s.now()
	created, err := s.repo.Create(ctx, &domain.Account{
		Username:           username,
		Email:              email,
		PasswordHash:       hash,
		VerifyCode:         code,
		VerifyCodeExpiry:   expiry,
		IsVerified:         false,
		IsAcceptingMessage: true,
		Messages:           []domain.Message{},
		CreatedAt:          now,
		UpdatedAt:          now,
	})
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	metrics.AccountsRegisteredTotal.WithLabelValues("created").Inc()
	s.log.Info().Str("account_id", created.ID).Str("username", created.Username).Msg("account created")
	return created, nil
}

func (s *AccountService) replace(ctx context.Context, existing *domain.Account, username, hash string) (*domain.Account, error) {
	code, expiry, err := s.codes.prepareCode(ctx, existing.ID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.ReplaceRegistration(ctx, existing.ID, username, hash, code, expiry); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	existing.Username = username
	existing.PasswordHash = hash
	existing.VerifyCode = code
	existing.VerifyCodeExpiry = expiry

	metrics.AccountsRegisteredTotal.WithLabelValues("replaced").Inc()
	s.log.Info().Str("account_id", existing.ID).Str("username", username).Msg("unverified account re-registered")
	return existing, nil
}

// CheckEligibility reports whether username can currently receive messages.
// Unverified accounts are reported exactly like missing ones.
func (s *AccountService) CheckEligibility(ctx context.Context, username string) (ports.Eligibility, error) {
	account, err := s.repo.FindByUsernameFold(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return ports.Eligibility{}, nil
		}
		return ports.Eligibility{}, fmt.Errorf("check eligibility: %w", err)
	}
	if !account.IsVerified {
		return ports.Eligibility{}, nil
	}
	return ports.Eligibility{Exists: true, AcceptsMessages: account.IsAcceptingMessage}, nil
}

// CheckUsernameAvailable fails with domain.ErrUsernameTaken when a verified
// account already holds username.
func (s *AccountService) CheckUsernameAvailable(ctx context.Context, username string) error {
	account, err := s.repo.FindByUsernameFold(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil
		}
		return fmt.Errorf("check username: %w", err)
	}
	if account.IsVerified {
		return domain.ErrUsernameTaken
	}
	return nil
}

func (s *AccountService) AcceptingMessages(ctx context.Context, accountID string) (bool, error) {
	account, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		return false, fmt.Errorf("accepting messages: %w", err)
	}
	return account.IsAcceptingMessage, nil
}

// SetAcceptingMessages updates the caller's own acceptance flag.
func (s *AccountService) SetAcceptingMessages(ctx context.Context, accountID string, accept bool) (bool, error) {
	account, err := s.repo.SetAcceptingMessages(ctx, accountID, accept)
	if err != nil {
		return false, fmt.Errorf("set accepting messages: %w", err)
	}
	s.log.Info().Str("account_id", accountID).Bool("accepting", account.IsAcceptingMessage).Msg("acceptance flag updated")
	return account.IsAcceptingMessage, nil
}
