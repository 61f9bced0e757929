package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ebuka-odih/nyem-sub003/internal/domain/model"
)

type ItemRepo struct {
	pool *pgxpool.Pool
}

func NewItemRepo(pool *pgxpool.Pool) *ItemRepo {
	return &ItemRepo{pool: pool}
}

// GetOwner locks the item row for share so it cannot be deleted while the
// swipe that references it is being written.
func (r *ItemRepo) GetOwner(ctx context.Context, tx pgx.Tx, itemID int64) (int64, error) {
	if itemID <= 0 {
		return 0, fmt.Errorf("invalid item id")
	}
	if tx == nil {
		return 0, fmt.Errorf("transaction is required")
	}

	var ownerID int64
	err := tx.QueryRow(ctx, `
SELECT owner_user_id
FROM items
WHERE id = $1
FOR SHARE
`, itemID).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrItemNotFound
		}
		return 0, fmt.Errorf("get item owner: %w", err)
	}

	return ownerID, nil
}

func (r *ItemRepo) GetSummaries(ctx context.Context, itemIDs []int64) (map[int64]model.ItemSummary, error) {
	out := make(map[int64]model.ItemSummary, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, owner_user_id, title, photo_key
FROM items
WHERE id = ANY($1)
`, itemIDs)
	if err != nil {
		return nil, fmt.Errorf("list item summaries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item model.ItemSummary
		if err := rows.Scan(&item.ID, &item.OwnerUserID, &item.Title, &item.PhotoKey); err != nil {
			return nil, fmt.Errorf("scan item summary: %w", err)
		}
		out[item.ID] = item
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate item summaries: %w", rows.Err())
	}

	return out, nil
}
