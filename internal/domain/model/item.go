package model

type ItemSummary struct {
	ID          int64  `json:"id"`
	OwnerUserID int64  `json:"owner_user_id"`
	Title       string `json:"title"`
	PhotoKey    string `json:"photo_key"`
}
