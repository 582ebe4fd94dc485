package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/anonychat/anonychat-api/internal/core/domain"
	"github.com/anonychat/anonychat-api/internal/core/ports"
	"github.com/anonychat/anonychat-api/pkg/metrics"
)

const (
	defaultCodeTTL     = 10 * time.Minute
	defaultIssueLimit  = 5
	defaultIssueWindow = time.Hour
)

// VerificationOptions tunes code lifetime and issuance throttling.
type VerificationOptions struct {
	CodeTTL     time.Duration
	IssueLimit  int
	IssueWindow time.Duration
}

// VerificationService issues, emails and redeems six-digit verification codes.
type VerificationService struct {
	repo     ports.AccountRepository
	mailer   ports.Mailer
	throttle ports.Throttle // optional
	opts     VerificationOptions
	log      zerolog.Logger

	now     func() time.Time
	newCode func() (string, error)
}

func NewVerificationService(
	repo ports.AccountRepository,
	mailer ports.Mailer,
	throttle ports.Throttle,
	opts VerificationOptions,
	log zerolog.Logger,
) *VerificationService {
	if opts.CodeTTL <= 0 {
		opts.CodeTTL = defaultCodeTTL
	}
	if opts.IssueLimit <= 0 {
		opts.IssueLimit = defaultIssueLimit
	}
	if opts.IssueWindow <= 0 {
		opts.IssueWindow = defaultIssueWindow
	}
	return &VerificationService{
		repo:     repo,
		mailer:   mailer,
		throttle: throttle,
		opts:     opts,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		newCode:  generateCode,
	}
}

// IssueCode draws a fresh code, stores it on the account and emails it.
// The account is updated in place with the new code and expiry.
func (s *VerificationService) IssueCode(ctx context.Context, account *domain.Account, purpose domain.CodePurpose) error {
	code, expiry, err := s.prepareCode(ctx, account.ID)
	if err != nil {
		return err
	}

	if err := s.repo.SetVerificationCode(ctx, account.ID, code, expiry); err != nil {
		return fmt.Errorf("issue code: %w", err)
	}
	account.VerifyCode = code
	account.VerifyCodeExpiry = expiry

	return s.send(ctx, account, purpose)
}

// prepareCode applies the issuance throttle and draws a code and its expiry.
// An empty accountID skips the throttle (first signup has no id yet).
func (s *VerificationService) prepareCode(ctx context.Context, accountID string) (string, time.Time, error) {
	if accountID != "" {
		if err := s.allowIssue(ctx, accountID); err != nil {
			return "", time.Time{}, err
		}
	}
	code, err := s.newCode()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate code: %w", err)
	}
	return code, s.now().Add(s.opts.CodeTTL), nil
}

func (s *VerificationService) send(ctx context.Context, account *domain.Account, purpose domain.CodePurpose) error {
	err := s.mailer.SendCode(ctx, ports.CodeMail{
		To:       account.Email,
		Username: account.Username,
		Code:     account.VerifyCode,
		Purpose:  purpose,
		TTL:      s.opts.CodeTTL,
	})
	if err != nil {
		s.log.Error().Err(err).Str("account_id", account.ID).Str("purpose", string(purpose)).Msg("failed to send code email")
		return fmt.Errorf("%w: %v", domain.ErrMailDelivery, err)
	}

	metrics.CodesIssuedTotal.WithLabelValues(string(purpose)).Inc()
	s.log.Info().Str("account_id", account.ID).Str("purpose", string(purpose)).Msg("verification code issued")
	return nil
}

func (s *VerificationService) allowIssue(ctx context.Context, accountID string) error {
	if s.throttle == nil {
		return nil
	}
	ok, err := s.throttle.Allow(ctx, "code_issue:"+accountID, s.opts.IssueLimit, s.opts.IssueWindow)
	if err != nil {
		metrics.ThrottleDecisionsTotal.WithLabelValues("code_issue", "error").Inc()
		s.log.Warn().Err(err).Str("account_id", accountID).Msg("throttle check failed, issuing anyway")
		return nil
	}
	if !ok {
		metrics.ThrottleDecisionsTotal.WithLabelValues("code_issue", "limited").Inc()
		return fmt.Errorf("%w: too many verification codes requested, try again later", domain.ErrTooManyRequests)
	}
	metrics.ThrottleDecisionsTotal.WithLabelValues("code_issue", "allowed").Inc()
	return nil
}

// VerifyEmail redeems a verify-email code for username and marks the account verified.
func (s *VerificationService) VerifyEmail(ctx context.Context, username, code string) error {
	account, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("verify email: %w", err)
	}
	return s.redeem(ctx, account, code, domain.PurposeVerifyEmail, ports.CodeRedemption{MarkVerified: true})
}

// ResendVerification issues a new verify-email code when username and email
// belong to the same account.
func (s *VerificationService) ResendVerification(ctx context.Context, username, email string) error {
	account, err := s.repo.FindByUsernameAndEmail(ctx, username, domain.NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("resend verification: %w", err)
	}
	return s.IssueCode(ctx, account, domain.PurposeVerifyEmail)
}

// RequestPasswordReset issues a password-reset code. An unknown identifier is
// not an error so callers cannot probe for accounts.
func (s *VerificationService) RequestPasswordReset(ctx context.Context, identifier string) error {
	account, err := s.repo.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			s.log.Debug().Msg("password reset requested for unknown identifier")
			return nil
		}
		return fmt.Errorf("request password reset: %w", err)
	}
	return s.IssueCode(ctx, account, domain.PurposePasswordReset)
}

// ResetPassword redeems a password-reset code and replaces the password hash.
func (s *VerificationService) ResetPassword(ctx context.Context, in ports.ResetPasswordInput) error {
	if len(in.NewPassword) < domain.PasswordMinLen {
		return fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, domain.PasswordMinLen)
	}

	account, err := s.repo.FindByUsername(ctx, in.Username)
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	// Check before hashing so a wrong code does not cost a bcrypt round.
	if err := s.checkCode(account, in.Code, domain.PurposePasswordReset); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("reset password: hash: %w", err)
	}
	return s.redeem(ctx, account, in.Code, domain.PurposePasswordReset, ports.CodeRedemption{PasswordHash: string(hash)})
}

func (s *VerificationService) redeem(
	ctx context.Context,
	account *domain.Account,
	code string,
	purpose domain.CodePurpose,
	change ports.CodeRedemption,
) error {
	now := s.now()
	if err := s.checkCode(account, code, purpose); err != nil {
		return err
	}

	if err := s.repo.RedeemCode(ctx, account.ID, code, now, change); err != nil {
		if errors.Is(err, domain.ErrInvalidCode) {
			// Lost a race with another redemption of the same code.
			metrics.CodeRedemptionsTotal.WithLabelValues(string(purpose), "invalid").Inc()
			return domain.ErrInvalidCode
		}
		return fmt.Errorf("redeem code: %w", err)
	}

	metrics.CodeRedemptionsTotal.WithLabelValues(string(purpose), "ok").Inc()
	s.log.Info().Str("account_id", account.ID).Str("purpose", string(purpose)).Msg("verification code redeemed")
	return nil
}

func (s *VerificationService) checkCode(account *domain.Account, code string, purpose domain.CodePurpose) error {
	err := account.CheckCode(code, s.now())
	switch {
	case errors.Is(err, domain.ErrInvalidCode):
		metrics.CodeRedemptionsTotal.WithLabelValues(string(purpose), "invalid").Inc()
	case errors.Is(err, domain.ErrCodeExpired):
		metrics.CodeRedemptionsTotal.WithLabelValues(string(purpose), "expired").Inc()
	}
	return err
}

// generateCode returns a uniformly random integer in [CodeMin, CodeMax] as text.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(domain.CodeMax-domain.CodeMin+1))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+domain.CodeMin, 10), nil
}
