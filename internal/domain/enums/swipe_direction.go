package enums

import "strings"

type SwipeDirection string

const (
	SwipeDirectionLeft  SwipeDirection = "left"
	SwipeDirectionRight SwipeDirection = "right"
	// SwipeDirectionUp puts the item on the actor's wishlist.
	SwipeDirectionUp SwipeDirection = "up"
)

func ParseSwipeDirection(raw string) (SwipeDirection, bool) {
	switch d := SwipeDirection(strings.ToLower(strings.TrimSpace(raw))); d {
	case SwipeDirectionLeft, SwipeDirectionRight, SwipeDirectionUp:
		return d, true
	default:
		return "", false
	}
}
