package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Frame types that are not domain events.
const (
	FrameAuth        = "auth"
	FrameAuthSuccess = "auth_success"
	FrameAuthError   = "auth_error"
)

// Frame is one JSON text message on the client connection.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// AuthRequest is the first frame a client sends. Token is only checked when
// the relay is configured to require one.
type AuthRequest struct {
	Type   string `json:"type"`
	UserID UserID `json:"userId"`
	Token  string `json:"token,omitempty"`
}

type AuthError struct {
	Message string `json:"message"`
}

// UserID accepts both JSON numbers and numeric strings.
type UserID int64

func (id *UserID) UnmarshalJSON(raw []byte) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		raw = []byte(strings.TrimSpace(s))
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid user id %q", string(raw))
	}
	*id = UserID(n)
	return nil
}

func EncodeData(ev Event) (json.RawMessage, error) {
	if ev == nil {
		return nil, fmt.Errorf("event is nil")
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", ev.Type(), err)
	}
	return data, nil
}

// EncodeFrame wraps already-encoded event data into a frame.
func EncodeFrame(frameType string, data json.RawMessage) ([]byte, error) {
	raw, err := json.Marshal(Frame{Type: frameType, Data: data})
	if err != nil {
		return nil, fmt.Errorf("marshal %s frame: %w", frameType, err)
	}
	return raw, nil
}

func Encode(ev Event) ([]byte, error) {
	data, err := EncodeData(ev)
	if err != nil {
		return nil, err
	}
	return EncodeFrame(string(ev.Type()), data)
}

func ParseFrame(raw []byte) (Frame, error) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	if frame.Type == "" {
		return Frame{}, fmt.Errorf("frame type is required")
	}
	return frame, nil
}

// Decode turns a frame carrying a domain event back into its typed payload.
func Decode(frame Frame) (Event, error) {
	t, ok := ParseType(frame.Type)
	if !ok {
		return nil, fmt.Errorf("unknown event type %q", frame.Type)
	}

	switch t {
	case TypeMatchCreated:
		var ev MatchCreated
		if err := json.Unmarshal(frame.Data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", t, err)
		}
		return ev, nil
	case TypeConversationCreated:
		var ev ConversationCreated
		if err := json.Unmarshal(frame.Data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", t, err)
		}
		return ev, nil
	case TypeMessageSent:
		var ev MessageSent
		if err := json.Unmarshal(frame.Data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", t, err)
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", frame.Type)
	}
}
