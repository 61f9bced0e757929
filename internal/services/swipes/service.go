package swipes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ebuka-odih/nyem-sub003/internal/domain/enums"
	"github.com/ebuka-odih/nyem-sub003/internal/domain/model"
	"github.com/ebuka-odih/nyem-sub003/internal/pkg/validate"
	pgrepo "github.com/ebuka-odih/nyem-sub003/internal/repo/postgres"
	matchsvc "github.com/ebuka-odih/nyem-sub003/internal/services/matches"
	ratesvc "github.com/ebuka-odih/nyem-sub003/internal/services/rate"
)

var (
	ErrValidation       = errors.New("validation error")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrForbidden        = errors.New("forbidden")
	ErrDuplicateSwipe   = errors.New("swipe already recorded")
	ErrItemNotFound     = errors.New("item not found")
)

type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error
	WithSavepoint(ctx context.Context, tx pgx.Tx, fn func(context.Context, pgx.Tx) error) error
}

type ItemStore interface {
	GetOwner(ctx context.Context, tx pgx.Tx, itemID int64) (int64, error)
}

type BlockStore interface {
	ExistsBetween(ctx context.Context, tx pgx.Tx, userA, userB int64) (bool, error)
}

type SwipeStore interface {
	LockPair(ctx context.Context, tx pgx.Tx, userA, userB int64) error
	Get(ctx context.Context, tx pgx.Tx, actorUserID, targetItemID int64) (model.Swipe, error)
	Create(ctx context.Context, tx pgx.Tx, swipe model.Swipe) (model.Swipe, error)
	Overwrite(ctx context.Context, tx pgx.Tx, swipe model.Swipe) (model.Swipe, error)
}

type MatchDetector interface {
	OnRightSwipe(ctx context.Context, tx pgx.Tx, swipe model.Swipe, targetOwnerID int64) (matchsvc.Outcome, error)
}

type Notifier interface {
	MatchCreated(ctx context.Context, match model.Match, conversation model.Conversation, conversationCreated bool)
}

type RateLimiter interface {
	Allow(ctx context.Context, userID int64) (int64, bool, error)
}

type Config struct {
	ConflictPolicy enums.SwipeConflictPolicy
}

// SwipeResult is what a recorded swipe led to. MatchErr is set when the swipe
// was stored but match detection failed; replaying the same swipe retries it.
type SwipeResult struct {
	Swipe    model.Swipe
	Replayed bool
	Outcome  matchsvc.Outcome
	MatchErr error
}

type Service struct {
	tx          UnitOfWork
	items       ItemStore
	blocks      BlockStore
	swipes      SwipeStore
	detector    MatchDetector
	notifier    Notifier
	rateLimiter RateLimiter
	cfg         Config
	now         func() time.Time
	logger      *zap.Logger
}

type Dependencies struct {
	Tx          UnitOfWork
	Items       ItemStore
	Blocks      BlockStore
	Swipes      SwipeStore
	Detector    MatchDetector
	Notifier    Notifier
	RateLimiter RateLimiter
	Logger      *zap.Logger
}

func NewService(deps Dependencies, cfg Config) *Service {
	if _, ok := enums.ParseSwipeConflictPolicy(string(cfg.ConflictPolicy)); !ok {
		cfg.ConflictPolicy = enums.SwipeConflictReject
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		tx:          deps.Tx,
		items:       deps.Items,
		blocks:      deps.Blocks,
		swipes:      deps.Swipes,
		detector:    deps.Detector,
		notifier:    deps.Notifier,
		rateLimiter: deps.RateLimiter,
		cfg:         cfg,
		now:         time.Now,
		logger:      logger,
	}
}

// Record stores one swipe of actorUserID on targetItemID. A right swipe runs
// match detection in the same transaction; listeners are notified only after
// commit and only for a newly created match.
func (s *Service) Record(ctx context.Context, actorUserID, targetItemID int64, direction enums.SwipeDirection, offeredItemID *int64) (SwipeResult, error) {
	if !validate.PositiveIDs(actorUserID, targetItemID) {
		return SwipeResult{}, ErrValidation
	}
	if _, ok := enums.ParseSwipeDirection(string(direction)); !ok {
		return SwipeResult{}, ErrValidation
	}
	if offeredItemID != nil && (*offeredItemID <= 0 || *offeredItemID == targetItemID) {
		return SwipeResult{}, ErrValidation
	}
	if s.tx == nil || s.items == nil || s.blocks == nil || s.swipes == nil || s.detector == nil {
		return SwipeResult{}, fmt.Errorf("swipe dependencies are not configured")
	}

	if s.rateLimiter != nil {
		retryAfter, allowed, err := s.rateLimiter.Allow(ctx, actorUserID)
		if err != nil {
			return SwipeResult{}, fmt.Errorf("apply swipe rate limiter: %w", err)
		}
		if !allowed {
			return SwipeResult{}, ratesvc.TooFastError{RetryAfterSec: retryAfter}
		}
	}

	candidate := model.Swipe{
		ActorUserID:   actorUserID,
		TargetItemID:  targetItemID,
		Direction:     direction,
		OfferedItemID: offeredItemID,
		CreatedAt:     s.now().UTC(),
	}

	var result SwipeResult
	if err := s.tx.WithTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		ownerID, err := s.ownerOf(txCtx, tx, targetItemID)
		if err != nil {
			return err
		}
		if ownerID == actorUserID {
			return ErrInvalidOperation
		}
		if offeredItemID != nil {
			offeredOwner, err := s.ownerOf(txCtx, tx, *offeredItemID)
			if err != nil {
				return err
			}
			if offeredOwner != actorUserID {
				return ErrValidation
			}
		}

		blocked, err := s.blocks.ExistsBetween(txCtx, tx, actorUserID, ownerID)
		if err != nil {
			return err
		}
		if blocked {
			return ErrForbidden
		}

		if err := s.swipes.LockPair(txCtx, tx, actorUserID, ownerID); err != nil {
			return err
		}

		stored, replayed, err := s.store(txCtx, tx, candidate)
		if err != nil {
			return err
		}
		result = SwipeResult{Swipe: stored, Replayed: replayed}

		if stored.Direction != enums.SwipeDirectionRight {
			return nil
		}

		detectErr := s.tx.WithSavepoint(txCtx, tx, func(spCtx context.Context, sp pgx.Tx) error {
			outcome, err := s.detector.OnRightSwipe(spCtx, sp, stored, ownerID)
			if err != nil {
				return err
			}
			result.Outcome = outcome
			return nil
		})
		if detectErr != nil {
			result.Outcome = matchsvc.Outcome{}
			result.MatchErr = detectErr
			s.logger.Error("match detection failed",
				zap.Int64("swipe_id", stored.ID),
				zap.Int64("actor_user_id", actorUserID),
				zap.Int64("target_item_id", targetItemID),
				zap.Error(detectErr),
			)
		}
		return nil
	}); err != nil {
		return SwipeResult{}, err
	}

	if result.Outcome.Created && s.notifier != nil {
		s.notifier.MatchCreated(ctx, result.Outcome.Match, result.Outcome.Conversation, result.Outcome.ConversationCreated)
	}
	return result, nil
}

func (s *Service) store(ctx context.Context, tx pgx.Tx, candidate model.Swipe) (model.Swipe, bool, error) {
	existing, err := s.swipes.Get(ctx, tx, candidate.ActorUserID, candidate.TargetItemID)
	if err != nil && !errors.Is(err, pgrepo.ErrSwipeNotFound) {
		return model.Swipe{}, false, err
	}

	if err == nil {
		if existing.SameIntent(candidate) {
			return existing, true, nil
		}
		if s.cfg.ConflictPolicy != enums.SwipeConflictOverwrite {
			return model.Swipe{}, false, ErrDuplicateSwipe
		}
		updated, err := s.swipes.Overwrite(ctx, tx, candidate)
		if err != nil {
			return model.Swipe{}, false, err
		}
		return updated, false, nil
	}

	created, err := s.swipes.Create(ctx, tx, candidate)
	if err != nil {
		if errors.Is(err, pgrepo.ErrSwipeExists) {
			return model.Swipe{}, false, ErrDuplicateSwipe
		}
		return model.Swipe{}, false, err
	}
	return created, false, nil
}

func (s *Service) ownerOf(ctx context.Context, tx pgx.Tx, itemID int64) (int64, error) {
	ownerID, err := s.items.GetOwner(ctx, tx, itemID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrItemNotFound) {
			return 0, ErrItemNotFound
		}
		return 0, err
	}
	return ownerID, nil
}
