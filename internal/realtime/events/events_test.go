package events

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func TestEncodeDecodeMessageSent(t *testing.T) {
	at := time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)
	ev := MessageSent{
		ConversationID: 9,
		Message:        MessageBody{ID: 3, SenderID: 1, ReceiverID: 2, Text: "still available?", CreatedAt: at},
		Sender:         UserCard{ID: 1, DisplayName: "Ada"},
	}

	raw, err := Encode(ev)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	frame, err := ParseFrame(raw)
	if err != nil {
		t.Fatalf("parse frame: %v", err)
	}
	if frame.Type != "message.sent" {
		t.Fatalf("unexpected frame type: %s", frame.Type)
	}

	decoded, err := Decode(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := decoded.(MessageSent)
	if !ok {
		t.Fatalf("unexpected event type %T", decoded)
	}
	if !reflect.DeepEqual(got, ev) {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, ev)
	}
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	if _, err := Decode(Frame{Type: "profile.updated", Data: json.RawMessage(`{}`)}); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}

func TestChannelsRouteByEmbeddedIDs(t *testing.T) {
	match := MatchCreated{MatchID: 1, ConversationID: 10, User1: UserCard{ID: 3}, User2: UserCard{ID: 8}}
	want := []string{"user.3", "user.8", "conversation.10"}
	if got := match.Channels(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected match channels: %v", got)
	}

	msg := MessageSent{ConversationID: 10, Message: MessageBody{SenderID: 8, ReceiverID: 3}}
	want = []string{"conversation.10", "user.8", "user.3"}
	if got := msg.Channels(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected message channels: %v", got)
	}
	if got := msg.Recipients(); !reflect.DeepEqual(got, []int64{8, 3}) {
		t.Fatalf("unexpected message recipients: %v", got)
	}
}

func TestAuthRequestAcceptsStringAndNumberIDs(t *testing.T) {
	for _, raw := range []string{`{"type":"auth","userId":42}`, `{"type":"auth","userId":"42"}`} {
		var req AuthRequest
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			t.Fatalf("unmarshal %s: %v", raw, err)
		}
		if req.UserID != 42 {
			t.Fatalf("unexpected user id from %s: %d", raw, req.UserID)
		}
	}

	var req AuthRequest
	if err := json.Unmarshal([]byte(`{"type":"auth","userId":"abc"}`), &req); err == nil {
		t.Fatalf("expected error for non numeric user id")
	}
}
