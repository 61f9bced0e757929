package rules

import "time"

const (
	WishlistTTL = 24 * time.Hour
)

// WishlistCutoff returns the creation time before which an up-swipe is stale.
func WishlistCutoff(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		ttl = WishlistTTL
	}
	return now.UTC().Add(-ttl)
}

func WishlistExpired(createdAt, now time.Time, ttl time.Duration) bool {
	return createdAt.Before(WishlistCutoff(now, ttl))
}
