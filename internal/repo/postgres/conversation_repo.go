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

type ConversationRepo struct {
	pool *pgxpool.Pool
}

func NewConversationRepo(pool *pgxpool.Pool) *ConversationRepo {
	return &ConversationRepo{pool: pool}
}

func (r *ConversationRepo) Create(ctx context.Context, tx pgx.Tx, userA, userB int64, now time.Time) (model.Conversation, error) {
	if userA <= 0 || userB <= 0 || userA == userB {
		return model.Conversation{}, fmt.Errorf("invalid conversation payload")
	}
	if tx == nil {
		return model.Conversation{}, fmt.Errorf("transaction is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	user1, user2 := model.CanonicalPair(userA, userB)
	var rec model.Conversation
	err := tx.QueryRow(ctx, `
INSERT INTO conversations (
	user1_id,
	user2_id,
	created_at
) VALUES ($1, $2, $3)
RETURNING id, user1_id, user2_id, created_at
`, user1, user2, now.UTC()).Scan(
		&rec.ID,
		&rec.User1ID,
		&rec.User2ID,
		&rec.CreatedAt,
	)
	if err != nil {
		return model.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}

	return rec, nil
}

func (r *ConversationRepo) LatestByPair(ctx context.Context, tx pgx.Tx, userA, userB int64) (model.Conversation, error) {
	if userA <= 0 || userB <= 0 {
		return model.Conversation{}, fmt.Errorf("invalid conversation pair")
	}
	if tx == nil {
		return model.Conversation{}, fmt.Errorf("transaction is required")
	}

	user1, user2 := model.CanonicalPair(userA, userB)
	var rec model.Conversation
	err := tx.QueryRow(ctx, `
SELECT id, user1_id, user2_id, created_at
FROM conversations
WHERE user1_id = $1 AND user2_id = $2
ORDER BY created_at DESC, id DESC
LIMIT 1
`, user1, user2).Scan(
		&rec.ID,
		&rec.User1ID,
		&rec.User2ID,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Conversation{}, ErrConversationNotFound
		}
		return model.Conversation{}, fmt.Errorf("get latest conversation by pair: %w", err)
	}

	return rec, nil
}

func (r *ConversationRepo) Get(ctx context.Context, tx pgx.Tx, conversationID int64) (model.Conversation, error) {
	if conversationID <= 0 {
		return model.Conversation{}, fmt.Errorf("invalid conversation id")
	}

	var row pgx.Row
	query := `
SELECT id, user1_id, user2_id, created_at
FROM conversations
WHERE id = $1
`
	switch {
	case tx != nil:
		row = tx.QueryRow(ctx, query, conversationID)
	case r.pool != nil:
		row = r.pool.QueryRow(ctx, query, conversationID)
	default:
		return model.Conversation{}, fmt.Errorf("postgres pool is nil")
	}

	var rec model.Conversation
	if err := row.Scan(&rec.ID, &rec.User1ID, &rec.User2ID, &rec.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Conversation{}, ErrConversationNotFound
		}
		return model.Conversation{}, fmt.Errorf("get conversation: %w", err)
	}

	return rec, nil
}
