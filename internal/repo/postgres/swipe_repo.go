package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ebuka-odih/nyem-sub003/internal/domain/enums"
	"github.com/ebuka-odih/nyem-sub003/internal/domain/model"
)

const swipeColumns = `id, actor_user_id, target_item_id, direction, offered_item_id, created_at`

type SwipeRepo struct {
	pool *pgxpool.Pool
}

func NewSwipeRepo(pool *pgxpool.Pool) *SwipeRepo {
	return &SwipeRepo{pool: pool}
}

// LockPair takes a transaction-scoped advisory lock on the unordered user
// pair. Two swipe transactions between the same users run one after the
// other, so the later one always sees the earlier swipe.
func (r *SwipeRepo) LockPair(ctx context.Context, tx pgx.Tx, userA, userB int64) error {
	if userA <= 0 || userB <= 0 {
		return fmt.Errorf("invalid pair lock payload")
	}
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}

	user1, user2 := model.CanonicalPair(userA, userB)
	if _, err := tx.Exec(ctx, `
SELECT pg_advisory_xact_lock(hashtextextended($1, 0))
`, fmt.Sprintf("swap-pair:%d:%d", user1, user2)); err != nil {
		return fmt.Errorf("lock user pair: %w", err)
	}

	return nil
}

func (r *SwipeRepo) Get(ctx context.Context, tx pgx.Tx, actorUserID, targetItemID int64) (model.Swipe, error) {
	if actorUserID <= 0 || targetItemID <= 0 {
		return model.Swipe{}, fmt.Errorf("invalid swipe lookup payload")
	}
	if tx == nil {
		return model.Swipe{}, fmt.Errorf("transaction is required")
	}

	rec, err := scanSwipe(tx.QueryRow(ctx, `
SELECT `+swipeColumns+`
FROM swipes
WHERE actor_user_id = $1 AND target_item_id = $2
FOR UPDATE
`, actorUserID, targetItemID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Swipe{}, ErrSwipeNotFound
		}
		return model.Swipe{}, fmt.Errorf("get swipe: %w", err)
	}

	return rec, nil
}

func (r *SwipeRepo) Create(ctx context.Context, tx pgx.Tx, swipe model.Swipe) (model.Swipe, error) {
	if swipe.ActorUserID <= 0 || swipe.TargetItemID <= 0 || swipe.Direction == "" {
		return model.Swipe{}, fmt.Errorf("invalid swipe payload")
	}
	if tx == nil {
		return model.Swipe{}, fmt.Errorf("transaction is required")
	}
	if swipe.CreatedAt.IsZero() {
		swipe.CreatedAt = time.Now().UTC()
	}

	rec, err := scanSwipe(tx.QueryRow(ctx, `
INSERT INTO swipes (
	actor_user_id,
	target_item_id,
	direction,
	offered_item_id,
	created_at
) VALUES ($1, $2, $3, $4, $5)
RETURNING `+swipeColumns+`
`, swipe.ActorUserID, swipe.TargetItemID, string(swipe.Direction), swipe.OfferedItemID, swipe.CreatedAt.UTC()))
	if err != nil {
		if isUniqueViolation(err, "swipes_actor_target_key") {
			return model.Swipe{}, ErrSwipeExists
		}
		return model.Swipe{}, fmt.Errorf("create swipe: %w", err)
	}

	return rec, nil
}

func (r *SwipeRepo) Overwrite(ctx context.Context, tx pgx.Tx, swipe model.Swipe) (model.Swipe, error) {
	if swipe.ActorUserID <= 0 || swipe.TargetItemID <= 0 || swipe.Direction == "" {
		return model.Swipe{}, fmt.Errorf("invalid swipe payload")
	}
	if tx == nil {
		return model.Swipe{}, fmt.Errorf("transaction is required")
	}
	if swipe.CreatedAt.IsZero() {
		swipe.CreatedAt = time.Now().UTC()
	}

	rec, err := scanSwipe(tx.QueryRow(ctx, `
UPDATE swipes
SET
	direction = $3,
	offered_item_id = $4,
	created_at = $5
WHERE actor_user_id = $1 AND target_item_id = $2
RETURNING `+swipeColumns+`
`, swipe.ActorUserID, swipe.TargetItemID, string(swipe.Direction), swipe.OfferedItemID, swipe.CreatedAt.UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Swipe{}, ErrSwipeNotFound
		}
		return model.Swipe{}, fmt.Errorf("overwrite swipe: %w", err)
	}

	return rec, nil
}

// FindReciprocal returns the earliest right swipe by actorUserID on any item
// owned by itemOwnerID, preferring the swipe on preferItemID when present.
func (r *SwipeRepo) FindReciprocal(ctx context.Context, tx pgx.Tx, actorUserID, itemOwnerID int64, preferItemID *int64) (model.Swipe, error) {
	if actorUserID <= 0 || itemOwnerID <= 0 {
		return model.Swipe{}, fmt.Errorf("invalid reciprocal lookup payload")
	}
	if tx == nil {
		return model.Swipe{}, fmt.Errorf("transaction is required")
	}

	rec, err := scanSwipe(tx.QueryRow(ctx, `
SELECT s.id, s.actor_user_id, s.target_item_id, s.direction, s.offered_item_id, s.created_at
FROM swipes s
JOIN items i ON i.id = s.target_item_id
WHERE
	s.actor_user_id = $1
	AND i.owner_user_id = $2
	AND s.direction = 'right'
ORDER BY COALESCE(s.target_item_id = $3, FALSE) DESC, s.created_at ASC, s.id ASC
LIMIT 1
`, actorUserID, itemOwnerID, preferItemID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Swipe{}, ErrSwipeNotFound
		}
		return model.Swipe{}, fmt.Errorf("find reciprocal swipe: %w", err)
	}

	return rec, nil
}

// DeleteExpiredWishlist removes up-swipes created before cutoff that never
// turned into a match on the swiped item for the same actor.
func (r *SwipeRepo) DeleteExpiredWishlist(ctx context.Context, cutoff time.Time) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	result, err := r.pool.Exec(ctx, `
DELETE FROM swipes s
WHERE
	s.direction = 'up'
	AND s.created_at < $1
	AND NOT EXISTS (
		SELECT 1
		FROM matches m
		WHERE
			(m.user1_id = s.actor_user_id AND m.item2_id = s.target_item_id)
			OR (m.user2_id = s.actor_user_id AND m.item1_id = s.target_item_id)
	)
`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired wishlist swipes: %w", err)
	}

	return result.RowsAffected(), nil
}

func scanSwipe(row pgx.Row) (model.Swipe, error) {
	var (
		rec       model.Swipe
		direction string
	)
	if err := row.Scan(
		&rec.ID,
		&rec.ActorUserID,
		&rec.TargetItemID,
		&direction,
		&rec.OfferedItemID,
		&rec.CreatedAt,
	); err != nil {
		return model.Swipe{}, err
	}
	rec.Direction = enums.SwipeDirection(direction)
	return rec, nil
}
