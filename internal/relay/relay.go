// Package relay holds live client connections keyed by user id and fans
// dispatched events out to every connection of each recipient.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ebuka-odih/nyem-sub003/internal/realtime/events"
)

const (
	defaultHeartbeatInterval = 30 * time.Second
	defaultWriteTimeout      = 5 * time.Second
	defaultReadLimit         = 4096
	presenceTimeout          = time.Second
)

// Presence mirrors per-user connection counts somewhere other processes can
// read them. Failures are logged and ignored.
type Presence interface {
	SetConnections(ctx context.Context, userID int64, count int) error
	Touch(ctx context.Context, userIDs []int64) error
}

type Config struct {
	HeartbeatInterval time.Duration
	WriteTimeout      time.Duration
	ReadLimit         int64
}

type Dependencies struct {
	Verifier Verifier
	Presence Presence
	Logger   *zap.Logger
}

type Relay struct {
	registry *Registry
	verifier Verifier
	presence Presence
	cfg      Config
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func New(deps Dependencies, cfg Config) *Relay {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaultHeartbeatInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = defaultReadLimit
	}
	verifier := deps.Verifier
	if verifier == nil {
		verifier = TrustingVerifier{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Relay{
		registry: NewRegistry(),
		verifier: verifier,
		presence: deps.Presence,
		cfg:      cfg,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Clients are mobile apps and the web app on another origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (r *Relay) Registry() *Registry { return r.registry }

func (r *Relay) Stats() Stats { return r.registry.Stats() }

// ServeWS upgrades the request and runs the connection until it closes.
func (r *Relay) ServeWS(w http.ResponseWriter, req *http.Request) {
	ws, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	ws.SetReadLimit(r.cfg.ReadLimit)

	c := newConn(ws, r.cfg.WriteTimeout)
	r.registry.Track(c)

	r.readLoop(c)
}

func (r *Relay) readLoop(c *Conn) {
	defer r.drop(c)

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				r.logger.Debug("connection read failed",
					zap.String("conn_id", c.ID().String()),
					zap.Int64("user_id", c.UserID()),
					zap.Error(err),
				)
			}
			return
		}

		// Push-only: once identified, inbound frames are ignored.
		if c.State() != StateConnecting {
			continue
		}
		frame, err := events.ParseFrame(raw)
		if err != nil || frame.Type != events.FrameAuth {
			continue
		}
		r.handleAuth(c, raw)
	}
}

func (r *Relay) handleAuth(c *Conn, raw []byte) {
	var req events.AuthRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		r.rejectAuth(c, "invalid auth request")
		return
	}
	userID := int64(req.UserID)
	if userID <= 0 {
		r.rejectAuth(c, "user id is required")
		return
	}
	if err := r.verifier.Verify(userID, req.Token); err != nil {
		r.logger.Debug("relay auth rejected", zap.Int64("user_id", userID), zap.Error(err))
		r.rejectAuth(c, "unauthorized")
		return
	}

	if !c.authenticate(userID) {
		return
	}
	ack, err := events.EncodeFrame(events.FrameAuthSuccess, nil)
	if err != nil {
		c.Close()
		return
	}
	var count int
	if err := c.open(ack, func() { count = r.registry.Register(c) }); err != nil {
		// The read loop sees the closed socket and unregisters.
		return
	}
	r.logger.Debug("connection authenticated",
		zap.String("conn_id", c.ID().String()),
		zap.Int64("user_id", userID),
		zap.Int("connections", count),
	)
	r.publishPresence(userID, count)
}

func (r *Relay) rejectAuth(c *Conn, message string) {
	data, err := json.Marshal(events.AuthError{Message: message})
	if err != nil {
		return
	}
	frame, err := events.EncodeFrame(events.FrameAuthError, data)
	if err != nil {
		return
	}
	_ = c.write(frame)
}

// drop closes c and removes it from the registry.
func (r *Relay) drop(c *Conn) {
	c.Close()
	remaining, registered := r.registry.Remove(c)
	if registered {
		r.logger.Debug("connection closed",
			zap.String("conn_id", c.ID().String()),
			zap.Int64("user_id", c.UserID()),
			zap.Int("connections", remaining),
		)
		r.publishPresence(c.UserID(), remaining)
	}
}

// Deliver pushes the event to every live connection of every recipient and
// returns how many connections accepted it. Absent recipients are skipped.
func (r *Relay) Deliver(ctx context.Context, eventType events.Type, data json.RawMessage, recipients []int64) (int, error) {
	if _, ok := events.ParseType(string(eventType)); !ok {
		return 0, fmt.Errorf("unknown event type %q", eventType)
	}
	frame, err := events.EncodeFrame(string(eventType), data)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, c := range r.registry.Snapshot(uniqueIDs(recipients)) {
		if ctx.Err() != nil {
			return delivered, ctx.Err()
		}
		if err := c.Send(frame); err != nil {
			if !errors.Is(err, ErrConnClosed) {
				r.logger.Debug("relay send failed",
					zap.String("conn_id", c.ID().String()),
					zap.Int64("user_id", c.UserID()),
					zap.Error(err),
				)
			}
			continue
		}
		delivered++
	}
	return delivered, nil
}

// RunHeartbeat pings every connection each interval and terminates the ones
// that did not answer the previous ping. It returns when ctx is done.
func (r *Relay) RunHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.beat(ctx)
		}
	}
}

func (r *Relay) beat(ctx context.Context) {
	terminated := 0
	for _, c := range r.registry.All() {
		if !c.heartbeat() {
			// Closing the socket ends the read loop, which cleans up.
			c.Close()
			terminated++
		}
	}
	if terminated > 0 {
		r.logger.Info("terminated unresponsive connections", zap.Int("count", terminated))
	}

	if r.presence == nil {
		return
	}
	users := r.registry.Users()
	if len(users) == 0 {
		return
	}
	touchCtx, cancel := context.WithTimeout(ctx, presenceTimeout)
	defer cancel()
	if err := r.presence.Touch(touchCtx, users); err != nil {
		r.logger.Warn("refresh presence failed", zap.Error(err))
	}
}

// Shutdown closes every current connection and waits until their read
// loops removed them from the registry, or for ctx.
func (r *Relay) Shutdown(ctx context.Context) error {
	conns := r.registry.All()
	for _, c := range conns {
		c.Close()
	}

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		pending := 0
		for _, c := range conns {
			if r.registry.Tracked(c.ID()) {
				pending++
			}
		}
		if pending == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Relay) publishPresence(userID int64, count int) {
	if r.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
	defer cancel()
	if err := r.presence.SetConnections(ctx, userID, count); err != nil {
		r.logger.Warn("update presence failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
