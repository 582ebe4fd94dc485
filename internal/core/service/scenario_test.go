package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonychat/anonychat-api/internal/core/domain"
	"github.com/anonychat/anonychat-api/internal/core/ports"
)

// TestAnonymousInboxLifecycle walks one account from signup to an emptied inbox.
func TestAnonymousInboxLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newAccountFixture("314159")
	sessions := NewSessionService(f.repo, "lifecycle-secret", time.Hour, zerolog.Nop())
	messages := NewMessageService(f.repo, f.throttle, DeliveryOptions{}, zerolog.Nop())
	messages.now = fixedClock(testNow)

	account, err := f.accounts.Register(ctx, ports.RegisterInput{Username: "alice", Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = sessions.Authenticate(ctx, "alice", "secret1")
	require.ErrorIs(t, err, domain.ErrAccountNotVerified)

	_, err = messages.Deliver(ctx, ports.DeliverInput{Username: "alice", Content: "too early"})
	require.ErrorIs(t, err, domain.ErrAccountNotFound)

	require.NoError(t, f.codes.VerifyEmail(ctx, "alice", f.mailer.last().Code))

	session, err := sessions.Authenticate(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)
	id, err := sessions.ParseToken(session.Token)
	require.NoError(t, err)
	assert.Equal(t, account.ID, id.ID)

	elig, err := f.accounts.CheckEligibility(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, ports.Eligibility{Exists: true, AcceptsMessages: true}, elig)

	msg, err := messages.Deliver(ctx, ports.DeliverInput{Username: "alice", Content: "You're great!"})
	require.NoError(t, err)

	_, err = f.accounts.SetAcceptingMessages(ctx, id.ID, false)
	require.NoError(t, err)
	_, err = messages.Deliver(ctx, ports.DeliverInput{Username: "alice", Content: "blocked"})
	require.ErrorIs(t, err, domain.ErrNotAcceptingMessages)

	inbox, err := messages.List(ctx, id.ID)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, "You're great!", inbox[0].Content)

	require.NoError(t, messages.Delete(ctx, id.ID, msg.ID))
	inbox, err = messages.List(ctx, id.ID)
	require.NoError(t, err)
	assert.Empty(t, inbox)

	_, err = f.accounts.Register(ctx, ports.RegisterInput{Username: "Alice", Email: "new@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, domain.ErrUsernameTaken)
}
