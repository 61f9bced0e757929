package matches

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ebuka-odih/nyem-sub003/internal/domain/model"
	"github.com/ebuka-odih/nyem-sub003/internal/pkg/validate"
)

var (
	ErrValidation = errors.New("validation error")
)

type TxRunner interface {
	WithTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error
}

type BlockStore interface {
	Upsert(ctx context.Context, tx pgx.Tx, actorUserID, targetUserID int64, reason string) error
}

type Service struct {
	tx         TxRunner
	matchStore MatchStore
	blockStore BlockStore
}

type Dependencies struct {
	Tx         TxRunner
	MatchStore MatchStore
	BlockStore BlockStore
}

// MatchItem is a match as seen by one of its participants.
type MatchItem struct {
	model.Match
	CounterpartID int64
	MyItemID      int64
	TheirItemID   int64
}

func NewService(deps Dependencies) *Service {
	return &Service{
		tx:         deps.Tx,
		matchStore: deps.MatchStore,
		blockStore: deps.BlockStore,
	}
}

func (s *Service) List(ctx context.Context, userID int64, limit int) ([]MatchItem, error) {
	if userID <= 0 {
		return nil, ErrValidation
	}
	if s.matchStore == nil {
		return nil, fmt.Errorf("match store is nil")
	}

	rows, err := s.matchStore.ListForUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	items := make([]MatchItem, 0, len(rows))
	for _, row := range rows {
		item := MatchItem{Match: row, CounterpartID: row.Counterpart(userID)}
		if row.User1ID == userID {
			item.MyItemID, item.TheirItemID = row.Item1ID, row.Item2ID
		} else {
			item.MyItemID, item.TheirItemID = row.Item2ID, row.Item1ID
		}
		items = append(items, item)
	}
	return items, nil
}

// Block records that userID no longer wants to interact with targetID.
// Existing matches stay; swipes and messages between them are refused.
func (s *Service) Block(ctx context.Context, userID, targetID int64, reason string) error {
	if !validate.PositiveIDs(userID, targetID) || userID == targetID {
		return ErrValidation
	}
	if s.tx == nil || s.blockStore == nil {
		return fmt.Errorf("block dependencies are not configured")
	}

	return s.tx.WithTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		return s.blockStore.Upsert(txCtx, tx, userID, targetID, reason)
	})
}
