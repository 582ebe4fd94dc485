package domain

import (
	"crypto/subtle"
	"regexp"
	"strings"
	"time"
)

// CodePurpose says what a verification code was issued for. It only changes the
// email wording and what a successful redemption does; the code itself is shared.
type CodePurpose string

const (
	PurposeVerifyEmail   CodePurpose = "verify-email"
	PurposePasswordReset CodePurpose = "password-reset"
)

const (
	CodeMin = 100000
	CodeMax = 999999

	// ConsumedCode replaces a redeemed code so it can never match a six-digit input again.
	ConsumedCode = "USED"

	UsernameMinLen = 3
	UsernameMaxLen = 20
	PasswordMinLen = 6
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// Account is the aggregate root: credentials, verification state, the
// acceptance flag and the inbox.
type Account struct {
	ID                 string    `json:"id"`
	Username           string    `json:"username"`
	Email              string    `json:"email"`
	PasswordHash       string    `json:"-"`
	VerifyCode         string    `json:"-"`
	VerifyCodeExpiry   time.Time `json:"-"`
	IsVerified         bool      `json:"isVerified"`
	IsAcceptingMessage bool      `json:"isAcceptingMessage"`
	Messages           []Message `json:"messages,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// CheckCode reports whether code redeems the account's current verification
// code at instant now. A mismatch wins over expiry so callers never learn
// that a wrong guess would have been late anyway.
func (a *Account) CheckCode(code string, now time.Time) error {
	if a.VerifyCode == "" || a.VerifyCode == ConsumedCode ||
		subtle.ConstantTimeCompare([]byte(a.VerifyCode), []byte(code)) != 1 {
		return ErrInvalidCode
	}
	if !now.Before(a.VerifyCodeExpiry) {
		return ErrCodeExpired
	}
	return nil
}

// CanReceive reports whether public delivery to this account should succeed.
// Unverified accounts are reported as missing.
func (a *Account) CanReceive() error {
	if !a.IsVerified {
		return ErrAccountNotFound
	}
	if !a.IsAcceptingMessage {
		return ErrNotAcceptingMessages
	}
	return nil
}

// Identity is the minimal claim set carried by a session.
type Identity struct {
	ID                 string `json:"id"`
	Username           string `json:"username"`
	IsVerified         bool   `json:"isVerified"`
	IsAcceptingMessage bool   `json:"isAcceptingMessage"`
}

// IdentityOf projects an account onto its session claims.
func IdentityOf(a *Account) Identity {
	return Identity{
		ID:                 a.ID,
		Username:           a.Username,
		IsVerified:         a.IsVerified,
		IsAcceptingMessage: a.IsAcceptingMessage,
	}
}

// NormalizeEmail trims and lower-cases an email address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FoldUsername is the key used for case-insensitive username uniqueness.
func FoldUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// ValidUsername reports whether username satisfies the length and charset rules.
func ValidUsername(username string) bool {
	n := len(username)
	return n >= UsernameMinLen && n <= UsernameMaxLen && usernamePattern.MatchString(username)
}
