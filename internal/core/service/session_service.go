package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/anonychat/anonychat-api/internal/core/domain"
	"github.com/anonychat/anonychat-api/internal/core/ports"
	"github.com/anonychat/anonychat-api/pkg/metrics"
)

const (
	claimUsername  = "username"
	claimVerified  = "is_verified"
	claimAccepting = "is_accepting_message"
)

// SessionService implements sign-in and session token handling.
type SessionService struct {
	repo      ports.AccountRepository
	jwtSecret string
	tokenTTL  time.Duration
	log       zerolog.Logger
}

func NewSessionService(repo ports.AccountRepository, jwtSecret string, tokenTTL time.Duration, log zerolog.Logger) *SessionService {
	if tokenTTL <= 0 {
		tokenTTL = 30 * 24 * time.Hour
	}
	return &SessionService{repo: repo, jwtSecret: jwtSecret, tokenTTL: tokenTTL, log: log}
}

// Authenticate checks identifier/password and returns a signed session.
// The password is checked before the verification flag so an unverified
// account is only revealed to someone who knows its password.
func (s *SessionService) Authenticate(ctx context.Context, identifier, password string) (*ports.Session, error) {
	if identifier == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	account, err := s.repo.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			metrics.SessionsTotal.WithLabelValues("invalid_credentials").Inc()
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		metrics.SessionsTotal.WithLabelValues("invalid_credentials").Inc()
		return nil, domain.ErrInvalidCredentials
	}
	if !account.IsVerified {
		metrics.SessionsTotal.WithLabelValues("not_verified").Inc()
		return nil, domain.ErrAccountNotVerified
	}

	identity := domain.IdentityOf(account)
	token, err := s.generateToken(identity)
	if err != nil {
		return nil, fmt.Errorf("authenticate: sign token: %w", err)
	}

	metrics.SessionsTotal.WithLabelValues("ok").Inc()
	s.log.Info().Str("account_id", account.ID).Msg("session issued")

	return &ports.Session{Token: token, Identity: identity}, nil
}

// ParseToken validates an HS256 session token and returns its claims.
func (s *SessionService) ParseToken(token string) (domain.Identity, error) {
	claims := jwt.MapClaims{}
	tkn, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return []byte(s.jwtSecret), nil
	}, jwt.WithExpirationRequired())
	if err != nil || !tkn.Valid {
		return domain.Identity{}, domain.ErrUnauthorized
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Identity{}, domain.ErrUnauthorized
	}

	username, _ := claims[claimUsername].(string)
	verified, _ := claims[claimVerified].(bool)
	accepting, _ := claims[claimAccepting].(bool)

	return domain.Identity{
		ID:                 sub,
		Username:           username,
		IsVerified:         verified,
		IsAcceptingMessage: accepting,
	}, nil
}

func (s *SessionService) generateToken(id domain.Identity) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":          id.ID,
		claimUsername:  id.Username,
		claimVerified:  id.IsVerified,
		claimAccepting: id.IsAcceptingMessage,
		"iat":          now.Unix(),
		"exp":          now.Add(s.tokenTTL).Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(s.jwtSecret))
}
