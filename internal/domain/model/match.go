package model

import "time"

// Match links two users and the two items they want to trade. User1ID is
// always the smaller user id and Item1ID is the item owned by User1ID.
type Match struct {
	ID             int64     `json:"id"`
	User1ID        int64     `json:"user1_id"`
	User2ID        int64     `json:"user2_id"`
	Item1ID        int64     `json:"item1_id"`
	Item2ID        int64     `json:"item2_id"`
	ConversationID int64     `json:"conversation_id"`
	CreatedAt      time.Time `json:"created_at"`
}

type MatchKey struct {
	User1ID int64
	User2ID int64
	Item1ID int64
	Item2ID int64
}

// CanonicalMatchKey orders the pair so that the smaller user id comes first,
// carrying each user's item along with them.
func CanonicalMatchKey(userA, itemA, userB, itemB int64) MatchKey {
	if userA > userB {
		userA, userB = userB, userA
		itemA, itemB = itemB, itemA
	}
	return MatchKey{User1ID: userA, User2ID: userB, Item1ID: itemA, Item2ID: itemB}
}

func (m Match) Key() MatchKey {
	return MatchKey{User1ID: m.User1ID, User2ID: m.User2ID, Item1ID: m.Item1ID, Item2ID: m.Item2ID}
}

func (m Match) Involves(userID int64) bool {
	return m.User1ID == userID || m.User2ID == userID
}

func (m Match) Counterpart(userID int64) int64 {
	if m.User1ID == userID {
		return m.User2ID
	}
	return m.User1ID
}
