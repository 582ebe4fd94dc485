package domain

import (
	"fmt"
	"time"
	"unicode/utf8"
)

const (
	MessageMinLen = 1
	MessageMaxLen = 500
)

// Message is an anonymous message owned by the account it was delivered to.
// It is never mutated after it is stored.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// ValidateMessageContent enforces the 1–500 character bound, counted in code points.
func ValidateMessageContent(content string) error {
	n := utf8.RuneCountInString(content)
	if n < MessageMinLen || n > MessageMaxLen {
		return fmt.Errorf("%w: message content must be between %d and %d characters",
			ErrValidation, MessageMinLen, MessageMaxLen)
	}
	return nil
}
