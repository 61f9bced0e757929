package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ebuka-odih/nyem-sub003/internal/domain/model"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) GetSummaries(ctx context.Context, userIDs []int64) (map[int64]model.UserSummary, error) {
	out := make(map[int64]model.UserSummary, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, display_name, photo_key
FROM users
WHERE id = ANY($1)
`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("list user summaries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var user model.UserSummary
		if err := rows.Scan(&user.ID, &user.DisplayName, &user.PhotoKey); err != nil {
			return nil, fmt.Errorf("scan user summary: %w", err)
		}
		out[user.ID] = user
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate user summaries: %w", rows.Err())
	}

	return out, nil
}
