package model

import "time"

type Conversation struct {
	ID        int64     `json:"id"`
	User1ID   int64     `json:"user1_id"`
	User2ID   int64     `json:"user2_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (c Conversation) HasParticipant(userID int64) bool {
	return userID > 0 && (c.User1ID == userID || c.User2ID == userID)
}

func (c Conversation) OtherParticipant(userID int64) int64 {
	if c.User1ID == userID {
		return c.User2ID
	}
	return c.User1ID
}

// CanonicalPair returns the two user ids in ascending order.
func CanonicalPair(userA, userB int64) (int64, int64) {
	if userA > userB {
		return userB, userA
	}
	return userA, userB
}
