package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonychat/anonychat-api/internal/core/domain"
)

func TestStripCodeFence(t *testing.T) {
	tests := map[string]string{
		`["a","b"]`:                 `["a","b"]`,
		"```json\n[\"a\"]\n```":     `["a"]`,
		"```\n[\"a\"]\n```":         `["a"]`,
		"  ```JSON\n[]\n```  ":      `[]`,
		"plain text, no fence here": "plain text, no fence here",
	}
	for in, want := range tests {
		assert.Equal(t, want, stripCodeFence(in), in)
	}
}

func TestInsightService_SuggestMessages(t *testing.T) {
	gen := &stubGenerator{out: "```json\n[\"What inspires you?\", \"Favorite book?\"]\n```"}
	svc := NewInsightService(newStubAccountRepo(), gen, zerolog.Nop())

	got, err := svc.SuggestMessages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"What inspires you?", "Favorite book?"}, got)
}

func TestInsightService_SuggestMessages_Failures(t *testing.T) {
	ctx := context.Background()

	svc := NewInsightService(newStubAccountRepo(), &stubGenerator{out: "sure! here are some"}, zerolog.Nop())
	_, err := svc.SuggestMessages(ctx)
	assert.ErrorIs(t, err, domain.ErrUpstream)

	svc = NewInsightService(newStubAccountRepo(), &stubGenerator{err: errBoom}, zerolog.Nop())
	_, err = svc.SuggestMessages(ctx)
	assert.ErrorIs(t, err, domain.ErrUpstream)

	svc = NewInsightService(newStubAccountRepo(), nil, zerolog.Nop())
	_, err = svc.SuggestMessages(ctx)
	assert.ErrorIs(t, err, domain.ErrAIUnavailable)
}

func TestInsightService_SummarizeMessages(t *testing.T) {
	repo := newStubAccountRepo()
	acc := repo.seed(&domain.Account{
		Username: "alice", Email: "a@example.com", IsVerified: true,
		Messages: []domain.Message{
			{ID: "m1", Content: "older message", CreatedAt: testNow.Add(-time.Hour)},
			{ID: "m2", Content: "newer message", CreatedAt: testNow},
		},
	})
	gen := &stubGenerator{out: "  - mostly friendly\n"}
	svc := NewInsightService(repo, gen, zerolog.Nop())

	summary, err := svc.SummarizeMessages(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "- mostly friendly", summary)

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "newer message\nolder message")
}

func TestInsightService_SummarizeMessages_Failures(t *testing.T) {
	ctx := context.Background()
	repo := newStubAccountRepo()
	empty := repo.seed(&domain.Account{Username: "empty", Email: "e@example.com"})
	tiny := repo.seed(&domain.Account{
		Username: "tiny", Email: "t@example.com",
		Messages: []domain.Message{{ID: "m1", Content: "hi", CreatedAt: testNow}},
	})
	gen := &stubGenerator{out: "summary"}
	svc := NewInsightService(repo, gen, zerolog.Nop())

	_, err := svc.SummarizeMessages(ctx, empty.ID)
	assert.ErrorIs(t, err, domain.ErrNoMessages)

	_, err = svc.SummarizeMessages(ctx, tiny.ID)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.SummarizeMessages(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	assert.Empty(t, gen.prompts)

	gen.out = "   "
	long := repo.seed(&domain.Account{
		Username: "long", Email: "l@example.com",
		Messages: []domain.Message{{ID: "m1", Content: "a long enough message", CreatedAt: testNow}},
	})
	_, err = svc.SummarizeMessages(ctx, long.ID)
	assert.ErrorIs(t, err, domain.ErrUpstream)
}
