package cleanup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ebuka-odih/nyem-sub003/internal/domain/rules"
)

type wishlistCleaner interface {
	DeleteExpiredWishlist(ctx context.Context, cutoff time.Time) (int64, error)
}

// Job purges wishlist swipes that were never turned into a match.
type Job struct {
	wishlist wishlistCleaner
	ttl      time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

func New(wishlist wishlistCleaner, ttl time.Duration, logger *zap.Logger) *Job {
	if ttl <= 0 {
		ttl = rules.WishlistTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		wishlist: wishlist,
		ttl:      ttl,
		now:      time.Now,
		logger:   logger,
	}
}

func (j *Job) Run(ctx context.Context) error {
	if j.wishlist == nil {
		return nil
	}

	cutoff := rules.WishlistCutoff(j.now().UTC(), j.ttl)
	rows, err := j.wishlist.DeleteExpiredWishlist(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("cleanup expired wishlist swipes: %w", err)
	}
	if rows > 0 {
		j.logger.Info("cleanup expired wishlist swipes completed", zap.Int64("deleted", rows), zap.Time("cutoff", cutoff))
	}
	return nil
}
