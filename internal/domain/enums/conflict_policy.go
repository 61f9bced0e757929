package enums

import "strings"

// SwipeConflictPolicy decides what happens when an actor swipes an item they
// already swiped with a different direction or offer.
type SwipeConflictPolicy string

const (
	SwipeConflictReject    SwipeConflictPolicy = "reject"
	SwipeConflictOverwrite SwipeConflictPolicy = "overwrite"
)

func ParseSwipeConflictPolicy(raw string) (SwipeConflictPolicy, bool) {
	switch p := SwipeConflictPolicy(strings.ToLower(strings.TrimSpace(raw))); p {
	case SwipeConflictReject, SwipeConflictOverwrite:
		return p, true
	default:
		return "", false
	}
}
