package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BlockRepo struct {
	pool *pgxpool.Pool
}

func NewBlockRepo(pool *pgxpool.Pool) *BlockRepo {
	return &BlockRepo{pool: pool}
}

func (r *BlockRepo) Upsert(ctx context.Context, tx pgx.Tx, actorUserID, targetUserID int64, reason string) error {
	if actorUserID <= 0 || targetUserID <= 0 || actorUserID == targetUserID {
		return fmt.Errorf("invalid block payload")
	}
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO blocks (
	actor_user_id,
	target_user_id,
	reason,
	created_at
) VALUES ($1, $2, $3, NOW())
ON CONFLICT (actor_user_id, target_user_id) DO UPDATE SET
	reason = EXCLUDED.reason
`, actorUserID, targetUserID, strings.TrimSpace(reason)); err != nil {
		return fmt.Errorf("upsert block: %w", err)
	}

	return nil
}

// ExistsBetween reports a block in either direction.
func (r *BlockRepo) ExistsBetween(ctx context.Context, tx pgx.Tx, userA, userB int64) (bool, error) {
	if userA <= 0 || userB <= 0 {
		return false, fmt.Errorf("invalid block lookup payload")
	}
	if tx == nil {
		return false, fmt.Errorf("transaction is required")
	}

	var exists bool
	if err := tx.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1
	FROM blocks
	WHERE
		(actor_user_id = $1 AND target_user_id = $2)
		OR (actor_user_id = $2 AND target_user_id = $1)
)
`, userA, userB).Scan(&exists); err != nil {
		return false, fmt.Errorf("lookup block: %w", err)
	}

	return exists, nil
}
