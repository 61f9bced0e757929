package model

import (
	"time"

	"github.com/ebuka-odih/nyem-sub003/internal/domain/enums"
)

type Swipe struct {
	ID            int64                `json:"id"`
	ActorUserID   int64                `json:"actor_user_id"`
	TargetItemID  int64                `json:"target_item_id"`
	Direction     enums.SwipeDirection `json:"direction"`
	OfferedItemID *int64               `json:"offered_item_id,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
}

// SameIntent reports whether two swipes carry the same direction and offer.
func (s Swipe) SameIntent(other Swipe) bool {
	if s.Direction != other.Direction {
		return false
	}
	switch {
	case s.OfferedItemID == nil && other.OfferedItemID == nil:
		return true
	case s.OfferedItemID == nil || other.OfferedItemID == nil:
		return false
	default:
		return *s.OfferedItemID == *other.OfferedItemID
	}
}
