package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ebuka-odih/nyem-sub003/internal/domain/model"
)

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

func (r *MessageRepo) Create(ctx context.Context, tx pgx.Tx, msg model.Message) (model.Message, error) {
	if msg.ConversationID <= 0 || msg.SenderID <= 0 || msg.ReceiverID <= 0 || strings.TrimSpace(msg.Text) == "" {
		return model.Message{}, fmt.Errorf("invalid message payload")
	}
	if tx == nil {
		return model.Message{}, fmt.Errorf("transaction is required")
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	var rec model.Message
	err := tx.QueryRow(ctx, `
INSERT INTO messages (
	conversation_id,
	sender_id,
	receiver_id,
	text,
	created_at
) VALUES ($1, $2, $3, $4, $5)
RETURNING id, conversation_id, sender_id, receiver_id, text, created_at
`, msg.ConversationID, msg.SenderID, msg.ReceiverID, msg.Text, msg.CreatedAt.UTC()).Scan(
		&rec.ID,
		&rec.ConversationID,
		&rec.SenderID,
		&rec.ReceiverID,
		&rec.Text,
		&rec.CreatedAt,
	)
	if err != nil {
		return model.Message{}, fmt.Errorf("create message: %w", err)
	}

	return rec, nil
}

// ListByConversation pages backwards from beforeID (exclusive); zero starts
// from the newest message.
func (r *MessageRepo) ListByConversation(ctx context.Context, conversationID, beforeID int64, limit int) ([]model.Message, error) {
	if conversationID <= 0 {
		return nil, fmt.Errorf("invalid conversation id")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if r.pool == nil {
		return []model.Message{}, nil
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, conversation_id, sender_id, receiver_id, text, created_at
FROM messages
WHERE conversation_id = $1 AND ($2 = 0 OR id < $2)
ORDER BY id DESC
LIMIT $3
`, conversationID, beforeID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	items := make([]model.Message, 0, limit)
	for rows.Next() {
		var item model.Message
		if err := rows.Scan(
			&item.ID,
			&item.ConversationID,
			&item.SenderID,
			&item.ReceiverID,
			&item.Text,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		items = append(items, item)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate messages: %w", rows.Err())
	}

	return items, nil
}
