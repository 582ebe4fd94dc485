package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/anonychat/anonychat-api/internal/core/domain"
	"github.com/anonychat/anonychat-api/internal/core/ports"
	"github.com/anonychat/anonychat-api/pkg/metrics"
)

const minSummaryInput = 10

const suggestPrompt = `Generate 5 open-ended, friendly, and constructive feedback prompts for an anonymous messaging platform.
Each prompt should be 30-100 characters. Respond ONLY as a JSON array of strings.
Do NOT include any explanation or markdown formatting.`

const summaryPrompt = `Summarize the following anonymous messages sent to a user on a messaging platform.
Please identify:
- Main themes or topics in the messages
- Overall tone (positive, negative, neutral, mixed)
- Any frequently asked questions or recurring topics
- Any notable or interesting patterns

Format the summary as 3-5 clear bullet points.
Be concise, insightful, and focus on the most meaningful observations.

Messages:
%s
`

// InsightService provides AI message suggestions and inbox summaries.
type InsightService struct {
	repo ports.AccountRepository
	gen  ports.TextGenerator // nil when no provider is configured
	log  zerolog.Logger
}

func NewInsightService(repo ports.AccountRepository, gen ports.TextGenerator, log zerolog.Logger) *InsightService {
	return &InsightService{repo: repo, gen: gen, log: log}
}

// SuggestMessages asks the provider for conversation starters.
func (s *InsightService) SuggestMessages(ctx context.Context) ([]string, error) {
	text, err := s.generate(ctx, "suggest", suggestPrompt)
	if err != nil {
		return nil, err
	}

	var questions []string
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &questions); err != nil {
		s.log.Warn().Err(err).Str("output", text).Msg("unparseable suggestions from AI provider")
		return nil, fmt.Errorf("%w: AI provider returned malformed suggestions", domain.ErrUpstream)
	}
	return questions, nil
}

// SummarizeMessages summarizes the caller's inbox, newest messages first.
func (s *InsightService) SummarizeMessages(ctx context.Context, accountID string) (string, error) {
	msgs, err := s.repo.ListMessages(ctx, accountID)
	if err != nil {
		return "", fmt.Errorf("summarize messages: %w", err)
	}
	if len(msgs) == 0 {
		return "", domain.ErrNoMessages
	}

	sorted := make([]domain.Message, len(msgs))
	copy(sorted, msgs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.After(sorted[j].CreatedAt) })

	lines := make([]string, len(sorted))
	for i, m := range sorted {
		lines[i] = m.Content
	}
	joined := strings.Join(lines, "\n")
	if len(joined) < minSummaryInput {
		return "", fmt.Errorf("%w: not enough message content to generate a summary", domain.ErrValidation)
	}

	summary, err := s.generate(ctx, "summarize", fmt.Sprintf(summaryPrompt, joined))
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(summary) == "" {
		return "", fmt.Errorf("%w: no output from AI provider", domain.ErrUpstream)
	}
	return summary, nil
}

func (s *InsightService) generate(ctx context.Context, operation, prompt string) (string, error) {
	if s.gen == nil {
		return "", domain.ErrAIUnavailable
	}

	start := time.Now()
	text, err := s.gen.Generate(ctx, prompt)
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.AIRequestDuration.WithLabelValues(operation, result).Observe(time.Since(start).Seconds())

	if err != nil {
		s.log.Error().Err(err).Str("operation", operation).Msg("AI provider call failed")
		return "", fmt.Errorf("%w: AI provider request failed", domain.ErrUpstream)
	}
	return strings.TrimSpace(text), nil
}

// stripCodeFence removes a surrounding ``` or ```json Markdown fence.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(strings.TrimPrefix(s, "json"), "JSON")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
