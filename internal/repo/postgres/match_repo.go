package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ebuka-odih/nyem-sub003/internal/domain/model"
)

const matchColumns = `id, user1_id, user2_id, item1_id, item2_id, COALESCE(conversation_id, 0), created_at`

type MatchRepo struct {
	pool *pgxpool.Pool
}

func NewMatchRepo(pool *pgxpool.Pool) *MatchRepo {
	return &MatchRepo{pool: pool}
}

// Insert creates the match for key. When a row with the same key already
// exists it returns ErrMatchExists and leaves the existing row untouched.
func (r *MatchRepo) Insert(ctx context.Context, tx pgx.Tx, key model.MatchKey, now time.Time) (model.Match, error) {
	if key.User1ID <= 0 || key.User2ID <= 0 || key.Item1ID <= 0 || key.Item2ID <= 0 || key.User1ID >= key.User2ID {
		return model.Match{}, fmt.Errorf("invalid match payload")
	}
	if tx == nil {
		return model.Match{}, fmt.Errorf("transaction is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	rec, err := scanMatch(tx.QueryRow(ctx, `
INSERT INTO matches (
	user1_id,
	user2_id,
	item1_id,
	item2_id,
	created_at
) VALUES ($1, $2, $3, $4, $5)
ON CONFLICT ON CONSTRAINT matches_key DO NOTHING
RETURNING `+matchColumns+`
`, key.User1ID, key.User2ID, key.Item1ID, key.Item2ID, now.UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Match{}, ErrMatchExists
		}
		return model.Match{}, fmt.Errorf("create match: %w", err)
	}

	return rec, nil
}

func (r *MatchRepo) GetByKey(ctx context.Context, tx pgx.Tx, key model.MatchKey) (model.Match, error) {
	if tx == nil {
		return model.Match{}, fmt.Errorf("transaction is required")
	}

	rec, err := scanMatch(tx.QueryRow(ctx, `
SELECT `+matchColumns+`
FROM matches
WHERE user1_id = $1 AND user2_id = $2 AND item1_id = $3 AND item2_id = $4
`, key.User1ID, key.User2ID, key.Item1ID, key.Item2ID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Match{}, ErrMatchNotFound
		}
		return model.Match{}, fmt.Errorf("get match by key: %w", err)
	}

	return rec, nil
}

// FindByPair returns the earliest match between the two users on any items.
func (r *MatchRepo) FindByPair(ctx context.Context, tx pgx.Tx, userA, userB int64) (model.Match, error) {
	if userA <= 0 || userB <= 0 {
		return model.Match{}, fmt.Errorf("invalid match pair")
	}
	if tx == nil {
		return model.Match{}, fmt.Errorf("transaction is required")
	}

	user1, user2 := model.CanonicalPair(userA, userB)
	rec, err := scanMatch(tx.QueryRow(ctx, `
SELECT `+matchColumns+`
FROM matches
WHERE user1_id = $1 AND user2_id = $2
ORDER BY created_at ASC, id ASC
LIMIT 1
`, user1, user2))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Match{}, ErrMatchNotFound
		}
		return model.Match{}, fmt.Errorf("find match by pair: %w", err)
	}

	return rec, nil
}

func (r *MatchRepo) LinkConversation(ctx context.Context, tx pgx.Tx, matchID, conversationID int64) error {
	if matchID <= 0 || conversationID <= 0 {
		return fmt.Errorf("invalid match conversation link")
	}
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}

	result, err := tx.Exec(ctx, `
UPDATE matches
SET conversation_id = $2
WHERE id = $1 AND conversation_id IS NULL
`, matchID, conversationID)
	if err != nil {
		return fmt.Errorf("link match conversation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrMatchNotFound
	}

	return nil
}

func (r *MatchRepo) ListForUser(ctx context.Context, userID int64, limit int) ([]model.Match, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("invalid user id")
	}
	if limit <= 0 {
		limit = 100
	}
	if r.pool == nil {
		return []model.Match{}, nil
	}

	rows, err := r.pool.Query(ctx, `
SELECT
	m.id,
	m.user1_id,
	m.user2_id,
	m.item1_id,
	m.item2_id,
	COALESCE(m.conversation_id, 0),
	m.created_at
FROM matches m
WHERE
	(m.user1_id = $1 OR m.user2_id = $1)
	AND NOT EXISTS (
		SELECT 1
		FROM blocks b
		WHERE b.actor_user_id = CASE WHEN m.user1_id = $1 THEN m.user2_id ELSE m.user1_id END
			AND b.target_user_id = $1
	)
ORDER BY m.created_at DESC, m.id DESC
LIMIT $2
`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	items := make([]model.Match, 0, limit)
	for rows.Next() {
		item, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		items = append(items, item)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate matches: %w", rows.Err())
	}

	return items, nil
}

func scanMatch(row pgx.Row) (model.Match, error) {
	var rec model.Match
	if err := row.Scan(
		&rec.ID,
		&rec.User1ID,
		&rec.User2ID,
		&rec.Item1ID,
		&rec.Item2ID,
		&rec.ConversationID,
		&rec.CreatedAt,
	); err != nil {
		return model.Match{}, err
	}
	return rec, nil
}
