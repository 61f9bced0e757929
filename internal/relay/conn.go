package relay

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type State int32

const (
	StateConnecting State = iota
	StateAuthenticated
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var (
	ErrConnClosed    = errors.New("connection closed")
	ErrConnNotActive = errors.New("connection not active")
)

// Conn is one client socket. Writes are serialized; Close may be called from
// any goroutine and unblocks the read loop.
type Conn struct {
	id           uuid.UUID
	ws           *websocket.Conn
	writeTimeout time.Duration

	userID atomic.Int64
	state  atomic.Int32
	alive  atomic.Bool

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func newConn(ws *websocket.Conn, writeTimeout time.Duration) *Conn {
	c := &Conn{
		id:           uuid.New(),
		ws:           ws,
		writeTimeout: writeTimeout,
		done:         make(chan struct{}),
	}
	c.alive.Store(true)
	ws.SetPongHandler(func(string) error {
		c.alive.Store(true)
		return nil
	})
	return c
}

func (c *Conn) ID() uuid.UUID { return c.id }

func (c *Conn) UserID() int64 { return c.userID.Load() }

func (c *Conn) State() State { return State(c.state.Load()) }

func (c *Conn) Done() <-chan struct{} { return c.done }

// authenticate moves a connecting socket to Authenticated. It fails once the
// connection has an identity or is closed.
func (c *Conn) authenticate(userID int64) bool {
	if !c.state.CompareAndSwap(int32(StateConnecting), int32(StateAuthenticated)) {
		return false
	}
	c.userID.Store(userID)
	return true
}

// open registers the connection, acknowledges authentication and marks it
// active while holding the write lock, so no event can overtake the ack.
func (c *Conn) open(ack []byte, register func()) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	register()
	if err := c.writeLocked(ack); err != nil {
		return err
	}
	if !c.state.CompareAndSwap(int32(StateAuthenticated), int32(StateActive)) {
		return ErrConnClosed
	}
	return nil
}

// Send pushes one text frame to an active connection. A failed write closes
// the connection.
func (c *Conn) Send(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	switch c.State() {
	case StateActive:
		return c.writeLocked(frame)
	case StateClosed:
		return ErrConnClosed
	default:
		return ErrConnNotActive
	}
}

func (c *Conn) write(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.writeLocked(frame)
}

func (c *Conn) writeLocked(frame []byte) error {
	if c.State() == StateClosed {
		return ErrConnClosed
	}
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		c.Close()
		return err
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.Close()
		return err
	}
	return nil
}

// heartbeat reports false when the previous ping went unanswered. Otherwise
// it sends the next ping.
func (c *Conn) heartbeat() bool {
	if !c.alive.Swap(false) {
		return false
	}
	deadline := time.Now().Add(c.writeTimeout)
	if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
		return false
	}
	return true
}

// Close is idempotent.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		close(c.done)
		_ = c.ws.Close()
	})
}
