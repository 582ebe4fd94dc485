package ports

import (
	"context"
	"time"

	"github.com/anonychat/anonychat-api/internal/core/domain"
)

// CodeMail is everything the mailer needs to render a verification-code email.
type CodeMail struct {
	To       string
	Username string
	Code     string
	Purpose  domain.CodePurpose
	TTL      time.Duration
}

// Mailer delivers verification-code emails.
type Mailer interface {
	SendCode(ctx context.Context, mail CodeMail) error
}

// Throttle is a fixed-window rate limiter keyed by an arbitrary string.
type Throttle interface {
	// Allow records one hit for key and reports whether it is within limit
	// for the current window.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// TextGenerator produces free text from a prompt (generative-AI provider).
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
