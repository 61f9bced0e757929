package matches

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ebuka-odih/nyem-sub003/internal/domain/enums"
	"github.com/ebuka-odih/nyem-sub003/internal/domain/model"
	pgrepo "github.com/ebuka-odih/nyem-sub003/internal/repo/postgres"
)

type SwipeLookup interface {
	FindReciprocal(ctx context.Context, tx pgx.Tx, actorUserID, itemOwnerID int64, preferItemID *int64) (model.Swipe, error)
}

type MatchStore interface {
	Insert(ctx context.Context, tx pgx.Tx, key model.MatchKey, now time.Time) (model.Match, error)
	GetByKey(ctx context.Context, tx pgx.Tx, key model.MatchKey) (model.Match, error)
	FindByPair(ctx context.Context, tx pgx.Tx, userA, userB int64) (model.Match, error)
	LinkConversation(ctx context.Context, tx pgx.Tx, matchID, conversationID int64) error
	ListForUser(ctx context.Context, userID int64, limit int) ([]model.Match, error)
}

type ConversationStore interface {
	Create(ctx context.Context, tx pgx.Tx, userA, userB int64, now time.Time) (model.Conversation, error)
	LatestByPair(ctx context.Context, tx pgx.Tx, userA, userB int64) (model.Conversation, error)
	Get(ctx context.Context, tx pgx.Tx, conversationID int64) (model.Conversation, error)
}

type DetectorConfig struct {
	// ReuseConversation links a new match to the pair's latest conversation
	// instead of opening a new one.
	ReuseConversation bool
	// OnePerPair resolves any later reciprocal swipe between two users to
	// their first match.
	OnePerPair bool
}

// Outcome describes what a right swipe led to. Created is false when the
// match already existed, including when a concurrent swipe created it first.
type Outcome struct {
	Matched             bool
	Created             bool
	ConversationCreated bool
	Match               model.Match
	Conversation        model.Conversation
}

type Detector struct {
	swipes        SwipeLookup
	matches       MatchStore
	conversations ConversationStore
	cfg           DetectorConfig
	now           func() time.Time
	logger        *zap.Logger
}

type DetectorDependencies struct {
	Swipes        SwipeLookup
	Matches       MatchStore
	Conversations ConversationStore
	Logger        *zap.Logger
}

func NewDetector(deps DetectorDependencies, cfg DetectorConfig) *Detector {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		swipes:        deps.Swipes,
		matches:       deps.Matches,
		conversations: deps.Conversations,
		cfg:           cfg,
		now:           time.Now,
		logger:        logger,
	}
}

// OnRightSwipe runs inside the swipe's transaction. targetOwnerID owns the
// swiped item; a match exists once that owner right-swiped any item of the
// actor.
func (d *Detector) OnRightSwipe(ctx context.Context, tx pgx.Tx, swipe model.Swipe, targetOwnerID int64) (Outcome, error) {
	if swipe.Direction != enums.SwipeDirectionRight {
		return Outcome{}, nil
	}
	if swipe.ActorUserID <= 0 || swipe.TargetItemID <= 0 || targetOwnerID <= 0 || swipe.ActorUserID == targetOwnerID {
		return Outcome{}, ErrValidation
	}
	if d.swipes == nil || d.matches == nil || d.conversations == nil {
		return Outcome{}, fmt.Errorf("match detector dependencies are not configured")
	}

	if d.cfg.OnePerPair {
		existing, err := d.matches.FindByPair(ctx, tx, swipe.ActorUserID, targetOwnerID)
		switch {
		case err == nil:
			return d.existingOutcome(ctx, tx, existing)
		case !errors.Is(err, pgrepo.ErrMatchNotFound):
			return Outcome{}, err
		}
	}

	reciprocal, err := d.swipes.FindReciprocal(ctx, tx, targetOwnerID, swipe.ActorUserID, swipe.OfferedItemID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrSwipeNotFound) {
			return Outcome{}, nil
		}
		return Outcome{}, err
	}

	key := model.CanonicalMatchKey(swipe.ActorUserID, reciprocal.TargetItemID, targetOwnerID, swipe.TargetItemID)
	now := d.now().UTC()

	match, err := d.matches.Insert(ctx, tx, key, now)
	if err != nil {
		if errors.Is(err, pgrepo.ErrMatchExists) {
			existing, getErr := d.matches.GetByKey(ctx, tx, key)
			if getErr != nil {
				return Outcome{}, fmt.Errorf("load existing match after conflict: %w", getErr)
			}
			d.logger.Debug("match already exists", zap.Int64("match_id", existing.ID))
			return d.existingOutcome(ctx, tx, existing)
		}
		return Outcome{}, err
	}

	conversation, created, err := d.conversationFor(ctx, tx, key, now)
	if err != nil {
		return Outcome{}, err
	}
	if err := d.matches.LinkConversation(ctx, tx, match.ID, conversation.ID); err != nil {
		return Outcome{}, err
	}
	match.ConversationID = conversation.ID

	return Outcome{
		Matched:             true,
		Created:             true,
		ConversationCreated: created,
		Match:               match,
		Conversation:        conversation,
	}, nil
}

func (d *Detector) conversationFor(ctx context.Context, tx pgx.Tx, key model.MatchKey, now time.Time) (model.Conversation, bool, error) {
	if d.cfg.ReuseConversation {
		conversation, err := d.conversations.LatestByPair(ctx, tx, key.User1ID, key.User2ID)
		if err == nil {
			return conversation, false, nil
		}
		if !errors.Is(err, pgrepo.ErrConversationNotFound) {
			return model.Conversation{}, false, err
		}
	}

	conversation, err := d.conversations.Create(ctx, tx, key.User1ID, key.User2ID, now)
	if err != nil {
		return model.Conversation{}, false, err
	}
	return conversation, true, nil
}

func (d *Detector) existingOutcome(ctx context.Context, tx pgx.Tx, match model.Match) (Outcome, error) {
	out := Outcome{Matched: true, Match: match}
	if match.ConversationID <= 0 {
		return out, nil
	}

	conversation, err := d.conversations.Get(ctx, tx, match.ConversationID)
	if err != nil {
		return Outcome{}, fmt.Errorf("load match conversation: %w", err)
	}
	out.Conversation = conversation
	return out, nil
}
