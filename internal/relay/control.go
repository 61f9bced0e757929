package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ebuka-odih/nyem-sub003/internal/infra/codec"
	"github.com/ebuka-odih/nyem-sub003/internal/realtime/events"
)

const (
	ActionDispatch = "dispatch"
	ActionStats    = "stats"
)

const (
	controlReadTimeout  = 30 * time.Second
	controlWriteTimeout = 10 * time.Second
	maxControlMessage   = 1024 * 1024
)

// ControlResponse is the envelope of every control channel response.
type ControlResponse struct {
	OK    bool             `cbor:"ok"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// DispatchRequest carries the event payload as encoded JSON so the relay can
// frame it without decoding.
type DispatchRequest struct {
	Action     string  `cbor:"action"`
	EventType  string  `cbor:"eventType"`
	Data       []byte  `cbor:"data"`
	Recipients []int64 `cbor:"recipients"`
}

type DispatchAck struct {
	Delivered int `cbor:"delivered"`
}

// ActionFunc handles one decoded control request. raw is the whole request.
type ActionFunc func(ctx context.Context, raw []byte) (any, error)

// ControlServer serves one CBOR request and one response per connection.
type ControlServer struct {
	handlers map[string]ActionFunc
	logger   *zap.Logger
	active   sync.WaitGroup
}

func NewControlServer(logger *zap.Logger) *ControlServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ControlServer{
		handlers: make(map[string]ActionFunc),
		logger:   logger,
	}
}

// NewRelayControlServer exposes the relay's dispatch and stats actions.
func NewRelayControlServer(r *Relay, logger *zap.Logger) *ControlServer {
	s := NewControlServer(logger)
	s.Handle(ActionDispatch, func(ctx context.Context, raw []byte) (any, error) {
		var req DispatchRequest
		if err := codec.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("decode dispatch request: %w", err)
		}
		eventType, ok := events.ParseType(req.EventType)
		if !ok {
			return nil, fmt.Errorf("unknown event type %q", req.EventType)
		}
		if len(req.Data) > 0 && !json.Valid(req.Data) {
			return nil, fmt.Errorf("event data is not valid json")
		}
		delivered, err := r.Deliver(ctx, eventType, req.Data, req.Recipients)
		if err != nil {
			return nil, err
		}
		return DispatchAck{Delivered: delivered}, nil
	})
	s.Handle(ActionStats, func(context.Context, []byte) (any, error) {
		return r.Stats(), nil
	})
	return s
}

func (s *ControlServer) Handle(action string, fn ActionFunc) {
	if _, exists := s.handlers[action]; exists {
		panic(fmt.Sprintf("relay: duplicate control handler for %q", action))
	}
	s.handlers[action] = fn
}

// ListenControl opens addr, which is either "unix:/path/to.sock" or
// "tcp://host:port". A stale unix socket file is removed first.
func ListenControl(addr string) (net.Listener, error) {
	network, address, err := parseControlAddr(addr)
	if err != nil {
		return nil, err
	}
	if network == "unix" {
		if err := os.Remove(address); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("remove stale socket %s: %w", address, err)
		}
	}
	ln, err := net.Listen(network, address)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return ln, nil
}

// Serve accepts until ctx is done, then waits for in-flight requests.
func (s *ControlServer) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	s.logger.Info("control server listening", zap.String("addr", ln.Addr().String()))

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("control accept failed", zap.Error(err))
			continue
		}

		s.active.Add(1)
		go func() {
			defer s.active.Done()
			s.handleConn(ctx, conn)
		}()
	}

	s.active.Wait()
	return nil
}

func (s *ControlServer) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(controlReadTimeout))

	var raw codec.RawMessage
	if err := codec.NewDecoder(io.LimitReader(conn, maxControlMessage)).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return
		}
		s.writeError(conn, fmt.Sprintf("invalid request: %v", err))
		return
	}

	var header struct {
		Action string `cbor:"action"`
	}
	if err := codec.Unmarshal(raw, &header); err != nil {
		s.writeError(conn, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if header.Action == "" {
		s.writeError(conn, "missing required field: action")
		return
	}
	handler, ok := s.handlers[header.Action]
	if !ok {
		s.writeError(conn, fmt.Sprintf("unknown action %q", header.Action))
		return
	}

	result, err := handler(ctx, raw)
	if err != nil {
		s.logger.Debug("control action failed", zap.String("action", header.Action), zap.Error(err))
		s.writeError(conn, err.Error())
		return
	}
	s.writeSuccess(conn, result)
}

func (s *ControlServer) writeError(conn net.Conn, message string) {
	_ = conn.SetWriteDeadline(time.Now().Add(controlWriteTimeout))
	if err := codec.NewEncoder(conn).Encode(ControlResponse{OK: false, Error: message}); err != nil {
		s.logger.Debug("write control error response failed", zap.Error(err))
	}
}

func (s *ControlServer) writeSuccess(conn net.Conn, result any) {
	_ = conn.SetWriteDeadline(time.Now().Add(controlWriteTimeout))

	resp := ControlResponse{OK: true}
	if result != nil {
		data, err := codec.Marshal(result)
		if err != nil {
			s.writeError(conn, fmt.Sprintf("internal: marshal response: %v", err))
			return
		}
		resp.Data = data
	}
	if err := codec.NewEncoder(conn).Encode(resp); err != nil {
		s.logger.Debug("write control response failed", zap.Error(err))
	}
}

func parseControlAddr(addr string) (string, string, error) {
	addr = strings.TrimSpace(addr)
	switch {
	case strings.HasPrefix(addr, "unix:"):
		path := strings.TrimPrefix(strings.TrimPrefix(addr, "unix:"), "//")
		if path == "" {
			return "", "", fmt.Errorf("control address %q has no socket path", addr)
		}
		return "unix", path, nil
	case strings.HasPrefix(addr, "tcp://"):
		hostPort := strings.TrimPrefix(addr, "tcp://")
		if hostPort == "" {
			return "", "", fmt.Errorf("control address %q has no host", addr)
		}
		return "tcp", hostPort, nil
	default:
		return "", "", fmt.Errorf("control address %q must start with unix: or tcp://", addr)
	}
}
