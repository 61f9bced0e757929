package dto

type SwipeRequest struct {
	TargetItemID  int64  `json:"target_item_id"`
	Direction     string `json:"direction"`
	OfferedItemID *int64 `json:"offered_item_id,omitempty"`
}

type SwipeResponse struct {
	OK             bool   `json:"ok"`
	SwipeID        int64  `json:"swipe_id"`
	Direction      string `json:"direction"`
	Replayed       bool   `json:"replayed"`
	Matched        bool   `json:"matched"`
	MatchCreated   bool   `json:"match_created"`
	MatchID        *int64 `json:"match_id,omitempty"`
	ConversationID *int64 `json:"conversation_id,omitempty"`
	MatchError     string `json:"match_error,omitempty"`
}
