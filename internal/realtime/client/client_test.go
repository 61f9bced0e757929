package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ebuka-odih/nyem-sub003/internal/realtime/events"
	"github.com/ebuka-odih/nyem-sub003/internal/relay"
)

type recorder struct {
	mu  sync.Mutex
	got []events.Event
}

func (r *recorder) handle(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, ev)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func (r *recorder) last() events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.got[len(r.got)-1]
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func startRelay(t *testing.T) (*relay.Relay, string) {
	t.Helper()
	r := relay.New(relay.Dependencies{}, relay.Config{HeartbeatInterval: time.Hour})
	srv := httptest.NewServer(http.HandlerFunc(r.ServeWS))
	t.Cleanup(func() {
		_ = r.Shutdown(context.Background())
		srv.Close()
	})
	return r, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func runClient(t *testing.T, c *Client) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func deliver(t *testing.T, r *relay.Relay, ev events.Event) {
	t.Helper()
	data, err := events.EncodeData(ev)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := r.Deliver(context.Background(), ev.Type(), data, ev.Recipients()); err != nil {
		t.Fatalf("deliver: %v", err)
	}
}

func messageTo(conversationID, senderID, receiverID int64, text string) events.MessageSent {
	return events.MessageSent{
		ConversationID: conversationID,
		Message:        events.MessageBody{ID: 1, SenderID: senderID, ReceiverID: receiverID, Text: text},
		Sender:         events.UserCard{ID: senderID},
	}
}

func TestRoutesEventsToChannelSubscribers(t *testing.T) {
	r, url := startRelay(t)
	c := New(Config{URL: url, UserID: 1, ReconnectDelay: 10 * time.Millisecond}, nil)

	conversation := &recorder{}
	user := &recorder{}
	other := &recorder{}
	c.Subscribe(events.ConversationChannel(5), conversation.handle)
	c.Subscribe(events.UserChannel(1), user.handle)
	c.Subscribe(events.ConversationChannel(6), other.handle)

	runClient(t, c)
	waitFor(t, "authentication", c.Authenticated)

	deliver(t, r, messageTo(5, 2, 1, "hi"))
	waitFor(t, "conversation event", func() bool { return conversation.count() == 1 })
	waitFor(t, "user event", func() bool { return user.count() == 1 })

	msg, ok := conversation.last().(events.MessageSent)
	if !ok || msg.Message.Text != "hi" {
		t.Fatalf("unexpected event: %#v", conversation.last())
	}

	deliver(t, r, events.MatchCreated{
		MatchID:        3,
		ConversationID: 7,
		User1:          events.UserCard{ID: 1},
		User2:          events.UserCard{ID: 2},
	})
	waitFor(t, "match event", func() bool { return user.count() == 2 })
	if _, ok := user.last().(events.MatchCreated); !ok {
		t.Fatalf("expected MatchCreated, got %#v", user.last())
	}
	if other.count() != 0 {
		t.Fatalf("unrelated channel received %d events", other.count())
	}
}

func TestUnsubscribeRemovesOnlyThatHandler(t *testing.T) {
	r, url := startRelay(t)
	c := New(Config{URL: url, UserID: 1, ReconnectDelay: 10 * time.Millisecond}, nil)

	kept := &recorder{}
	removed := &recorder{}
	channel := events.ConversationChannel(5)
	c.Subscribe(channel, kept.handle)
	unsubscribe := c.Subscribe(channel, removed.handle)
	unsubscribe()
	unsubscribe()

	runClient(t, c)
	waitFor(t, "authentication", c.Authenticated)

	deliver(t, r, messageTo(5, 2, 1, "hi"))
	waitFor(t, "kept handler", func() bool { return kept.count() == 1 })
	time.Sleep(20 * time.Millisecond)
	if removed.count() != 0 {
		t.Fatalf("unsubscribed handler received %d events", removed.count())
	}
}

func TestEmptyChannelIsDropped(t *testing.T) {
	c := New(Config{URL: "ws://unused"}, nil)

	first := c.Subscribe("user.1", func(events.Event) {})
	second := c.Subscribe("user.1", func(events.Event) {})
	first()
	if got := c.Channels(); len(got) != 1 {
		t.Fatalf("expected channel to remain, got %v", got)
	}
	second()
	if got := c.Channels(); len(got) != 0 {
		t.Fatalf("expected no channels, got %v", got)
	}
}

func TestReconnectKeepsSubscriptions(t *testing.T) {
	r, url := startRelay(t)
	c := New(Config{URL: url, UserID: 1, ReconnectDelay: 10 * time.Millisecond}, nil)

	got := &recorder{}
	c.Subscribe(events.ConversationChannel(5), got.handle)
	runClient(t, c)
	waitFor(t, "authentication", c.Authenticated)

	// Dropping every server-side connection forces a reconnect.
	if err := r.Shutdown(context.Background()); err != nil {
		t.Fatalf("drop connections: %v", err)
	}
	waitFor(t, "re-registration", func() bool { return r.Registry().Count(1) == 1 && c.Authenticated() })

	deliver(t, r, messageTo(5, 2, 1, "after reconnect"))
	waitFor(t, "event after reconnect", func() bool { return got.count() == 1 })
}

func TestRunStopsDuringReconnectDelay(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	c := New(Config{URL: url, UserID: 1, ReconnectDelay: time.Hour}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}

func TestEventsBeforeAuthSuccessAreIgnored(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ws, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		var auth events.AuthRequest
		if err := ws.ReadJSON(&auth); err != nil || auth.Type != events.FrameAuth || auth.UserID != 1 {
			return
		}
		early, _ := events.Encode(messageTo(5, 2, 1, "early"))
		_ = ws.WriteMessage(websocket.TextMessage, early)
		ack, _ := events.EncodeFrame(events.FrameAuthSuccess, nil)
		_ = ws.WriteMessage(websocket.TextMessage, ack)
		late, _ := events.Encode(messageTo(5, 2, 1, "late"))
		_ = ws.WriteMessage(websocket.TextMessage, late)

		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := New(Config{URL: "ws" + strings.TrimPrefix(srv.URL, "http"), UserID: 1, ReconnectDelay: time.Hour}, nil)
	got := &recorder{}
	c.Subscribe(events.ConversationChannel(5), got.handle)
	runClient(t, c)

	waitFor(t, "late event", func() bool { return got.count() == 1 })
	time.Sleep(20 * time.Millisecond)
	if got.count() != 1 {
		t.Fatalf("expected only the post-auth event, got %d", got.count())
	}
	if msg := got.last().(events.MessageSent); msg.Message.Text != "late" {
		t.Fatalf("unexpected event text %q", msg.Message.Text)
	}
}

func TestAuthErrorTriggersReconnect(t *testing.T) {
	var (
		mu       sync.Mutex
		attempts int
	)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ws, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		mu.Lock()
		attempts++
		mu.Unlock()

		var auth events.AuthRequest
		if err := ws.ReadJSON(&auth); err != nil {
			return
		}
		data, _ := json.Marshal(events.AuthError{Message: "unauthorized"})
		frame, _ := events.EncodeFrame(events.FrameAuthError, data)
		_ = ws.WriteMessage(websocket.TextMessage, frame)
		_, _, _ = ws.ReadMessage()
	}))
	defer srv.Close()

	c := New(Config{URL: "ws" + strings.TrimPrefix(srv.URL, "http"), UserID: 1, ReconnectDelay: 10 * time.Millisecond}, nil)
	runClient(t, c)

	waitFor(t, "second attempt", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return attempts >= 2
	})
	if c.Authenticated() {
		t.Fatalf("client must not be authenticated after auth_error")
	}
}
