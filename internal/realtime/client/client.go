// Package client keeps one relay connection per process and routes incoming
// events to local channel subscribers.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ebuka-odih/nyem-sub003/internal/realtime/events"
)

const defaultReconnectDelay = 3 * time.Second

var ErrAuthRejected = errors.New("relay rejected authentication")

type Handler func(events.Event)

type Config struct {
	URL            string
	UserID         int64
	Token          string
	ReconnectDelay time.Duration
}

type subscription struct {
	id      uint64
	handler Handler
}

// Client is safe for concurrent use. Subscriptions outlive connections.
type Client struct {
	cfg    Config
	dialer *websocket.Dialer
	logger *zap.Logger

	mu       sync.RWMutex
	channels map[string][]subscription
	nextID   uint64

	authenticated atomic.Bool
}

func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:      cfg,
		dialer:   websocket.DefaultDialer,
		logger:   logger,
		channels: make(map[string][]subscription),
	}
}

// Subscribe adds handler to channel and returns a function that removes
// exactly that handler.
func (c *Client) Subscribe(channel string, handler Handler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	c.channels[channel] = append(c.channels[channel], subscription{id: id, handler: handler})

	var once sync.Once
	return func() {
		once.Do(func() { c.unsubscribe(channel, id) })
	}
}

func (c *Client) unsubscribe(channel string, id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	subs := c.channels[channel]
	for i, sub := range subs {
		if sub.id != id {
			continue
		}
		subs = append(subs[:i:i], subs[i+1:]...)
		break
	}
	if len(subs) == 0 {
		delete(c.channels, channel)
		return
	}
	c.channels[channel] = subs
}

// Channels lists channels with at least one handler.
func (c *Client) Channels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.channels))
	for channel := range c.channels {
		out = append(out, channel)
	}
	return out
}

func (c *Client) Authenticated() bool { return c.authenticated.Load() }

// Run connects and keeps reconnecting after ReconnectDelay until ctx is
// cancelled. It returns ctx.Err().
func (c *Client) Run(ctx context.Context) error {
	for {
		err := c.session(ctx)
		c.authenticated.Store(false)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("relay connection lost, reconnecting",
			zap.Duration("delay", c.cfg.ReconnectDelay),
			zap.Error(err),
		)

		timer := time.NewTimer(c.cfg.ReconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Client) session(ctx context.Context) error {
	ws, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial relay: %w", err)
	}
	defer ws.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = ws.Close()
		case <-stop:
		}
	}()

	auth := events.AuthRequest{
		Type:   events.FrameAuth,
		UserID: events.UserID(c.cfg.UserID),
		Token:  c.cfg.Token,
	}
	if err := ws.WriteJSON(auth); err != nil {
		return fmt.Errorf("send auth: %w", err)
	}

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return fmt.Errorf("read relay frame: %w", err)
		}
		frame, err := events.ParseFrame(raw)
		if err != nil {
			c.logger.Debug("drop malformed frame", zap.Error(err))
			continue
		}

		if !c.authenticated.Load() {
			switch frame.Type {
			case events.FrameAuthSuccess:
				c.authenticated.Store(true)
				c.logger.Info("relay authenticated", zap.Int64("user_id", c.cfg.UserID))
			case events.FrameAuthError:
				var authErr events.AuthError
				_ = json.Unmarshal(frame.Data, &authErr)
				return fmt.Errorf("%w: %s", ErrAuthRejected, authErr.Message)
			}
			continue
		}

		ev, err := events.Decode(frame)
		if err != nil {
			c.logger.Debug("drop undecodable event", zap.String("type", frame.Type), zap.Error(err))
			continue
		}
		c.route(ev)
	}
}

func (c *Client) route(ev events.Event) {
	seen := make(map[string]struct{}, 3)
	for _, channel := range ev.Channels() {
		if _, dup := seen[channel]; dup {
			continue
		}
		seen[channel] = struct{}{}

		c.mu.RLock()
		subs := append([]subscription(nil), c.channels[channel]...)
		c.mu.RUnlock()

		for _, sub := range subs {
			sub.handler(ev)
		}
	}
}
