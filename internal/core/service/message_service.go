package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/anonychat/anonychat-api/internal/core/domain"
	"github.com/anonychat/anonychat-api/internal/core/ports"
	"github.com/anonychat/anonychat-api/pkg/metrics"
)

const (
	defaultDeliveryLimit  = 30
	defaultDeliveryWindow = time.Minute
)

// DeliveryOptions tunes public delivery throttling.
type DeliveryOptions struct {
	Limit  int
	Window time.Duration
}

// MessageService implements public delivery and the owner's inbox operations.
type MessageService struct {
	repo     ports.AccountRepository
	throttle ports.Throttle // optional
	opts     DeliveryOptions
	log      zerolog.Logger
	now      func() time.Time
}

func NewMessageService(repo ports.AccountRepository, throttle ports.Throttle, opts DeliveryOptions, log zerolog.Logger) *MessageService {
	if opts.Limit <= 0 {
		opts.Limit = defaultDeliveryLimit
	}
	if opts.Window <= 0 {
		opts.Window = defaultDeliveryWindow
	}
	return &MessageService{
		repo:     repo,
		throttle: throttle,
		opts:     opts,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Deliver appends an anonymous message to the inbox of in.Username.
func (s *MessageService) Deliver(ctx context.Context, in ports.DeliverInput) (*domain.Message, error) {
	if err := domain.ValidateMessageContent(in.Content); err != nil {
		metrics.MessagesRejectedTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	target, err := s.repo.FindByUsernameFold(ctx, in.Username)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			metrics.MessagesRejectedTotal.WithLabelValues("not_found").Inc()
		}
		return nil, fmt.Errorf("deliver: %w", err)
	}

	if err := target.CanReceive(); err != nil {
		if errors.Is(err, domain.ErrNotAcceptingMessages) {
			metrics.MessagesRejectedTotal.WithLabelValues("not_accepting").Inc()
		} else {
			metrics.MessagesRejectedTotal.WithLabelValues("not_found").Inc()
		}
		return nil, err
	}

	if err := s.allow(ctx, in.ClientKey, target.ID); err != nil {
		return nil, err
	}

	msg := &domain.Message{Content: in.Content, CreatedAt: s.now()}
	if err := s.repo.AppendMessage(ctx, target.ID, msg); err != nil {
		return nil, fmt.Errorf("deliver: %w", err)
	}

	metrics.MessagesDeliveredTotal.Inc()
	s.log.Info().Str("account_id", target.ID).Str("message_id", msg.ID).Msg("message delivered")
	return msg, nil
}

func (s *MessageService) allow(ctx context.Context, clientKey, targetID string) error {
	if s.throttle == nil || clientKey == "" {
		return nil
	}
	ok, err := s.throttle.Allow(ctx, "delivery:"+clientKey+":"+targetID, s.opts.Limit, s.opts.Window)
	if err != nil {
		metrics.ThrottleDecisionsTotal.WithLabelValues("delivery", "error").Inc()
		s.log.Warn().Err(err).Str("account_id", targetID).Msg("throttle check failed, delivering anyway")
		return nil
	}
	if !ok {
		metrics.ThrottleDecisionsTotal.WithLabelValues("delivery", "limited").Inc()
		metrics.MessagesRejectedTotal.WithLabelValues("throttled").Inc()
		return fmt.Errorf("%w: too many messages sent, slow down", domain.ErrTooManyRequests)
	}
	metrics.ThrottleDecisionsTotal.WithLabelValues("delivery", "allowed").Inc()
	return nil
}

// List returns the caller's messages in arrival order.
func (s *MessageService) List(ctx context.Context, accountID string) ([]domain.Message, error) {
	msgs, err := s.repo.ListMessages(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// Delete removes one message from the caller's inbox. Deleting a message that
// is already gone succeeds.
func (s *MessageService) Delete(ctx context.Context, accountID, messageID string) error {
	if messageID == "" {
		return domain.ErrInvalidMessageID
	}
	if err := s.repo.DeleteMessage(ctx, accountID, messageID); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}

	metrics.MessagesDeletedTotal.Inc()
	s.log.Info().Str("account_id", accountID).Str("message_id", messageID).Msg("message deleted")
	return nil
}
