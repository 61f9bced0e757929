package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/ebuka-odih/nyem-sub003/internal/infra/codec"
	"github.com/ebuka-odih/nyem-sub003/internal/realtime/events"
)

const (
	controlDialTimeout     = 5 * time.Second
	controlResponseTimeout = 10 * time.Second
)

// ControlError is an ok=false answer from the relay.
type ControlError struct {
	Action  string
	Message string
}

func (e *ControlError) Error() string {
	return fmt.Sprintf("relay control error on %q: %s", e.Action, e.Message)
}

// ControlClient talks to a relay control server. Every call uses its own
// connection.
type ControlClient struct {
	addr    string
	network string
	address string
}

func NewControlClient(addr string) (*ControlClient, error) {
	network, address, err := parseControlAddr(addr)
	if err != nil {
		return nil, err
	}
	return &ControlClient{addr: addr, network: network, address: address}, nil
}

// Deliver asks the relay to push an event and returns the number of client
// connections reached.
func (c *ControlClient) Deliver(ctx context.Context, eventType events.Type, data json.RawMessage, recipients []int64) (int, error) {
	var ack DispatchAck
	err := c.call(ctx, ActionDispatch, DispatchRequest{
		Action:     ActionDispatch,
		EventType:  string(eventType),
		Data:       data,
		Recipients: recipients,
	}, &ack)
	if err != nil {
		return 0, err
	}
	return ack.Delivered, nil
}

func (c *ControlClient) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	if err := c.call(ctx, ActionStats, map[string]any{"action": ActionStats}, &stats); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

func (c *ControlClient) call(ctx context.Context, action string, request any, result any) error {
	dialer := net.Dialer{Timeout: controlDialTimeout}
	conn, err := dialer.DialContext(ctx, c.network, c.address)
	if err != nil {
		return fmt.Errorf("dial relay control %s: %w", c.addr, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(controlResponseTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		return fmt.Errorf("write %s request: %w", action, err)
	}
	if unixConn, ok := conn.(*net.UnixConn); ok {
		_ = unixConn.CloseWrite()
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.CloseWrite()
	}

	var resp ControlResponse
	if err := codec.NewDecoder(io.LimitReader(conn, maxControlMessage)).Decode(&resp); err != nil {
		return fmt.Errorf("read %s response: %w", action, err)
	}
	if !resp.OK {
		return &ControlError{Action: action, Message: resp.Error}
	}
	if result != nil && len(resp.Data) > 0 {
		if err := codec.Unmarshal(resp.Data, result); err != nil {
			return fmt.Errorf("decode %s response: %w", action, err)
		}
	}
	return nil
}
