package messages

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ebuka-odih/nyem-sub003/internal/domain/model"
	"github.com/ebuka-odih/nyem-sub003/internal/domain/rules"
	"github.com/ebuka-odih/nyem-sub003/internal/pkg/validate"
	pgrepo "github.com/ebuka-odih/nyem-sub003/internal/repo/postgres"
	ratesvc "github.com/ebuka-odih/nyem-sub003/internal/services/rate"
)

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("conversation not found")
	ErrForbidden  = errors.New("forbidden")
)

type TxRunner interface {
	WithTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error
}

type ConversationStore interface {
	Get(ctx context.Context, tx pgx.Tx, conversationID int64) (model.Conversation, error)
}

type MessageStore interface {
	Create(ctx context.Context, tx pgx.Tx, msg model.Message) (model.Message, error)
	ListByConversation(ctx context.Context, conversationID, beforeID int64, limit int) ([]model.Message, error)
}

type BlockStore interface {
	ExistsBetween(ctx context.Context, tx pgx.Tx, userA, userB int64) (bool, error)
}

type Notifier interface {
	MessageSent(ctx context.Context, msg model.Message)
}

type RateLimiter interface {
	Allow(ctx context.Context, userID int64) (int64, bool, error)
}

type Config struct {
	MaxLength int
}

type Service struct {
	tx            TxRunner
	conversations ConversationStore
	messages      MessageStore
	blocks        BlockStore
	notifier      Notifier
	rateLimiter   RateLimiter
	cfg           Config
	now           func() time.Time
}

type Dependencies struct {
	Tx            TxRunner
	Conversations ConversationStore
	Messages      MessageStore
	Blocks        BlockStore
	Notifier      Notifier
	RateLimiter   RateLimiter
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = rules.MaxMessageLength
	}

	return &Service{
		tx:            deps.Tx,
		conversations: deps.Conversations,
		messages:      deps.Messages,
		blocks:        deps.Blocks,
		notifier:      deps.Notifier,
		rateLimiter:   deps.RateLimiter,
		cfg:           cfg,
		now:           time.Now,
	}
}

// Send stores a message from senderID to the other participant of the
// conversation and announces it to both of them.
func (s *Service) Send(ctx context.Context, senderID, conversationID int64, text string) (model.Message, error) {
	if !validate.PositiveIDs(senderID, conversationID) {
		return model.Message{}, ErrValidation
	}
	normalized, ok := rules.NormalizeMessageText(text, s.cfg.MaxLength)
	if !ok {
		return model.Message{}, ErrValidation
	}
	if s.tx == nil || s.conversations == nil || s.messages == nil || s.blocks == nil {
		return model.Message{}, fmt.Errorf("message dependencies are not configured")
	}

	if s.rateLimiter != nil {
		retryAfter, allowed, err := s.rateLimiter.Allow(ctx, senderID)
		if err != nil {
			return model.Message{}, fmt.Errorf("apply message rate limiter: %w", err)
		}
		if !allowed {
			return model.Message{}, ratesvc.TooFastError{RetryAfterSec: retryAfter}
		}
	}

	var stored model.Message
	if err := s.tx.WithTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		conversation, err := s.participantConversation(txCtx, tx, senderID, conversationID)
		if err != nil {
			return err
		}
		receiverID := conversation.OtherParticipant(senderID)

		blocked, err := s.blocks.ExistsBetween(txCtx, tx, senderID, receiverID)
		if err != nil {
			return err
		}
		if blocked {
			return ErrForbidden
		}

		stored, err = s.messages.Create(txCtx, tx, model.Message{
			ConversationID: conversationID,
			SenderID:       senderID,
			ReceiverID:     receiverID,
			Text:           normalized,
			CreatedAt:      s.now().UTC(),
		})
		return err
	}); err != nil {
		return model.Message{}, err
	}

	if s.notifier != nil {
		s.notifier.MessageSent(ctx, stored)
	}
	return stored, nil
}

// List returns a newest-first page of the conversation for a participant.
func (s *Service) List(ctx context.Context, userID, conversationID, beforeID int64, limit int) ([]model.Message, error) {
	if userID <= 0 || conversationID <= 0 || beforeID < 0 {
		return nil, ErrValidation
	}
	if s.conversations == nil || s.messages == nil {
		return nil, fmt.Errorf("message dependencies are not configured")
	}

	if _, err := s.participantConversation(ctx, nil, userID, conversationID); err != nil {
		return nil, err
	}
	return s.messages.ListByConversation(ctx, conversationID, beforeID, limit)
}

func (s *Service) participantConversation(ctx context.Context, tx pgx.Tx, userID, conversationID int64) (model.Conversation, error) {
	conversation, err := s.conversations.Get(ctx, tx, conversationID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrConversationNotFound) {
			return model.Conversation{}, ErrNotFound
		}
		return model.Conversation{}, err
	}
	if !conversation.HasParticipant(userID) {
		return model.Conversation{}, ErrForbidden
	}
	return conversation, nil
}
