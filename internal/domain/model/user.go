package model

type UserSummary struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	PhotoKey    string `json:"photo_key"`
}
