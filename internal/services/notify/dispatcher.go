package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ebuka-odih/nyem-sub003/internal/realtime/events"
)

const (
	defaultTimeout     = 2 * time.Second
	defaultMaxInFlight = 64
)

var (
	ErrValidation     = errors.New("validation error")
	ErrDeliveryFailed = errors.New("delivery failed")
)

// Transport hands an encoded event to the relay and returns how many client
// connections received it.
type Transport interface {
	Deliver(ctx context.Context, eventType events.Type, data json.RawMessage, recipients []int64) (int, error)
}

type Config struct {
	Timeout     time.Duration
	MaxInFlight int
}

// EventBuilder loads whatever a payload needs and returns the events to send.
// It runs off the request path, under the dispatch timeout.
type EventBuilder func(ctx context.Context) ([]events.Event, error)

// Dispatcher delivers events best-effort. Nothing it does blocks the caller
// and no failure is retried; failures are logged and dropped.
type Dispatcher struct {
	transport Transport
	cfg       Config
	logger    *zap.Logger
	slots     chan struct{}
	inFlight  sync.WaitGroup
}

func NewDispatcher(transport Transport, cfg Config, logger *zap.Logger) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = defaultMaxInFlight
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		transport: transport,
		cfg:       cfg,
		logger:    logger,
		slots:     make(chan struct{}, cfg.MaxInFlight),
	}
}

// Dispatch sends payload as eventType to every live connection of the
// recipients. Only invalid input is reported back.
func (d *Dispatcher) Dispatch(ctx context.Context, eventType events.Type, payload any, recipients []int64) error {
	if _, ok := events.ParseType(string(eventType)); !ok {
		return fmt.Errorf("%w: unknown event type %q", ErrValidation, eventType)
	}
	recipients = normalizeRecipients(recipients)
	if len(recipients) == 0 {
		return fmt.Errorf("%w: recipients are required", ErrValidation)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: marshal payload: %v", ErrValidation, err)
	}

	d.spawn(ctx, string(eventType), func(runCtx context.Context, dispatchID string) {
		d.send(runCtx, dispatchID, eventType, data, recipients)
	})
	return nil
}

// Publish runs build asynchronously and dispatches each resulting event in
// order, so one recipient sees them in the order they were built.
func (d *Dispatcher) Publish(ctx context.Context, label string, build EventBuilder) {
	if build == nil {
		return
	}

	d.spawn(ctx, label, func(runCtx context.Context, dispatchID string) {
		evs, err := build(runCtx)
		if err != nil {
			d.logger.Warn("build realtime events failed",
				zap.String("dispatch_id", dispatchID),
				zap.String("label", label),
				zap.Error(err),
			)
			return
		}

		for _, ev := range evs {
			data, err := events.EncodeData(ev)
			if err != nil {
				d.logger.Warn("encode realtime event failed",
					zap.String("dispatch_id", dispatchID),
					zap.String("event_type", string(ev.Type())),
					zap.Error(err),
				)
				continue
			}
			d.send(runCtx, dispatchID, ev.Type(), data, normalizeRecipients(ev.Recipients()))
		}
	})
}

// Wait blocks until every in-flight dispatch finished or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.inFlight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) spawn(ctx context.Context, label string, fn func(context.Context, string)) {
	dispatchID := uuid.NewString()

	select {
	case d.slots <- struct{}{}:
	default:
		d.logger.Warn("dispatch dropped, too many in flight",
			zap.String("dispatch_id", dispatchID),
			zap.String("label", label),
			zap.Int("max_in_flight", d.cfg.MaxInFlight),
		)
		return
	}

	// The request context is cancelled once the response is written; keep
	// its values but not its deadline.
	base := context.WithoutCancel(ctx)

	d.inFlight.Add(1)
	go func() {
		defer d.inFlight.Done()
		defer func() { <-d.slots }()

		runCtx, cancel := context.WithTimeout(base, d.cfg.Timeout)
		defer cancel()

		fn(runCtx, dispatchID)
	}()
}

func (d *Dispatcher) send(ctx context.Context, dispatchID string, eventType events.Type, data json.RawMessage, recipients []int64) {
	if len(recipients) == 0 {
		return
	}
	if d.transport == nil {
		d.logger.Warn("dispatch skipped, relay transport is not configured",
			zap.String("dispatch_id", dispatchID),
			zap.String("event_type", string(eventType)),
		)
		return
	}

	delivered, err := d.transport.Deliver(ctx, eventType, data, recipients)
	if err != nil {
		d.logger.Warn("realtime dispatch failed",
			zap.String("dispatch_id", dispatchID),
			zap.String("event_type", string(eventType)),
			zap.Int64s("recipients", recipients),
			zap.Error(fmt.Errorf("%w: %v", ErrDeliveryFailed, err)),
		)
		return
	}

	d.logger.Debug("realtime dispatch delivered",
		zap.String("dispatch_id", dispatchID),
		zap.String("event_type", string(eventType)),
		zap.Int64s("recipients", recipients),
		zap.Int("delivered", delivered),
	)
}

func normalizeRecipients(recipients []int64) []int64 {
	out := make([]int64, 0, len(recipients))
	seen := make(map[int64]struct{}, len(recipients))
	for _, id := range recipients {
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
