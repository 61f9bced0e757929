// Package events defines the closed set of realtime events pushed to clients
// and the JSON frames that carry them.
package events

import (
	"strconv"
	"time"
)

type Type string

const (
	TypeMatchCreated        Type = "match.created"
	TypeConversationCreated Type = "conversation.created"
	TypeMessageSent         Type = "message.sent"
)

func ParseType(raw string) (Type, bool) {
	switch t := Type(raw); t {
	case TypeMatchCreated, TypeConversationCreated, TypeMessageSent:
		return t, true
	default:
		return "", false
	}
}

// Event is implemented only by the payload types of this package.
type Event interface {
	Type() Type
	// Channels lists the subscription channels the event is routed to on
	// the client side.
	Channels() []string
	// Recipients lists the user ids the relay delivers the event to.
	Recipients() []int64
	sealed()
}

type UserCard struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	Photo       string `json:"photo,omitempty"`
}

type ItemCard struct {
	ID          int64  `json:"id"`
	OwnerUserID int64  `json:"owner_user_id"`
	Title       string `json:"title"`
	Photo       string `json:"photo,omitempty"`
}

// MatchCreated is identical for both participants; user1/item1 always refer
// to the smaller user id.
type MatchCreated struct {
	MatchID        int64     `json:"match_id"`
	ConversationID int64     `json:"conversation_id"`
	User1          UserCard  `json:"user1"`
	User2          UserCard  `json:"user2"`
	Item1          ItemCard  `json:"item1"`
	Item2          ItemCard  `json:"item2"`
	CreatedAt      time.Time `json:"created_at"`
}

func (MatchCreated) Type() Type { return TypeMatchCreated }
func (MatchCreated) sealed()    {}

func (e MatchCreated) Channels() []string {
	return []string{UserChannel(e.User1.ID), UserChannel(e.User2.ID), ConversationChannel(e.ConversationID)}
}

func (e MatchCreated) Recipients() []int64 {
	return []int64{e.User1.ID, e.User2.ID}
}

type ConversationCreated struct {
	ConversationID int64     `json:"conversation_id"`
	MatchID        int64     `json:"match_id"`
	User1          UserCard  `json:"user1"`
	User2          UserCard  `json:"user2"`
	CreatedAt      time.Time `json:"created_at"`
}

func (ConversationCreated) Type() Type { return TypeConversationCreated }
func (ConversationCreated) sealed()    {}

func (e ConversationCreated) Channels() []string {
	return []string{UserChannel(e.User1.ID), UserChannel(e.User2.ID), ConversationChannel(e.ConversationID)}
}

func (e ConversationCreated) Recipients() []int64 {
	return []int64{e.User1.ID, e.User2.ID}
}

type MessageBody struct {
	ID         int64     `json:"id"`
	SenderID   int64     `json:"sender_id"`
	ReceiverID int64     `json:"receiver_id"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}

type MessageSent struct {
	ConversationID int64       `json:"conversation_id"`
	Message        MessageBody `json:"message"`
	Sender         UserCard    `json:"sender"`
}

func (MessageSent) Type() Type { return TypeMessageSent }
func (MessageSent) sealed()    {}

func (e MessageSent) Channels() []string {
	return []string{
		ConversationChannel(e.ConversationID),
		UserChannel(e.Message.SenderID),
		UserChannel(e.Message.ReceiverID),
	}
}

// Recipients includes the sender so their other sessions stay in sync.
func (e MessageSent) Recipients() []int64 {
	return []int64{e.Message.SenderID, e.Message.ReceiverID}
}

func ConversationChannel(conversationID int64) string {
	return "conversation." + strconv.FormatInt(conversationID, 10)
}

func UserChannel(userID int64) string {
	return "user." + strconv.FormatInt(userID, 10)
}
