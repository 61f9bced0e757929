package dto

import "time"

type MatchItemResponse struct {
	ID             int64     `json:"id"`
	CounterpartID  int64     `json:"counterpart_id"`
	MyItemID       int64     `json:"my_item_id"`
	TheirItemID    int64     `json:"their_item_id"`
	ConversationID int64     `json:"conversation_id"`
	CreatedAt      time.Time `json:"created_at"`
}

type MatchesResponse struct {
	Items []MatchItemResponse `json:"items"`
}

type BlockRequest struct {
	TargetUserID int64  `json:"target_user_id"`
	Reason       string `json:"reason"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}
