package dto

type PresenceResponse struct {
	UserID      int64 `json:"user_id"`
	Online      bool  `json:"online"`
	Connections int   `json:"connections"`
}
