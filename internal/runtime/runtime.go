package runtime

import (
	"context"
	"fmt"
	"log/slog"
)

// Runtime composes a set of Services into a single cooperative event
// loop: a caller-supplied, already-priority-ordered stream of InputEvents
// is consumed one at a time, external inputs are broadcast to every
// subscribing service in declaration order, and timers are routed to the
// single service that owns them. A Service error is fatal and returned
// immediately: context-state violations and channel failures are
// unrecoverable, so there is no log-and-continue path.
type Runtime struct {
	services    []*Service
	byID        map[string]*Service
	subscribers map[string][]*Service
	timerOwner  map[string]*Service
	sessionGen  SessionIDGenerator
}

// RuntimeOption configures a Runtime at construction time.
type RuntimeOption func(*Runtime)

// WithSessionGenerator overrides the default UUIDv7Generator. Tests pass a
// FixedGenerator for deterministic log assertions.
func WithSessionGenerator(gen SessionIDGenerator) RuntimeOption {
	return func(r *Runtime) { r.sessionGen = gen }
}

// New composes a Runtime from a set of already-constructed Services.
// Subscriber and timer-ownership routing tables are built once here so
// RunLoop's hot path never walks the service list.
func New(services []*Service, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		byID:        make(map[string]*Service, len(services)),
		subscribers: make(map[string][]*Service),
		timerOwner:  make(map[string]*Service),
		sessionGen:  UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, svc := range services {
		r.services = append(r.services, svc)
		r.byID[svc.ID()] = svc
		for _, flowID := range svc.plan.Subscriptions {
			r.subscribers[flowID] = append(r.subscribers[flowID], svc)
		}
		for _, t := range svc.plan.Timers {
			r.timerOwner[t.ID] = svc
		}
	}
	return r
}

// Service looks up a composed service by ID, for test harnesses that need
// to inspect state directly.
func (r *Runtime) Service(id string) (*Service, bool) {
	svc, ok := r.byID[id]
	return svc, ok
}

// RunLoop seeds every service's timeout and periodic timers at
// initInstant, then drains events from in until it is closed or ctx is
// cancelled, dispatching each to the services it concerns. It returns the
// first fatal error encountered (a FrequencyViolationError, a
// ChannelSendError, or ctx's own error on cancellation), or nil if in
// closes cleanly.
func (r *Runtime) RunLoop(ctx context.Context, initInstant int64, in <-chan InputEvent) error {
	sessionID := r.sessionGen.Generate()
	slog.Info("runtime loop starting", "session", sessionID, "services", len(r.services), "init_instant", initInstant)

	for _, svc := range r.services {
		if err := svc.SeedTimers(ctx, initInstant); err != nil {
			slog.Error("runtime loop seed failed", "session", sessionID, "service", svc.ID(), "error", err)
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("runtime loop stopped", "session", sessionID, "reason", ctx.Err())
			return ctx.Err()
		case ev, ok := <-in:
			if !ok {
				slog.Info("runtime loop stopped", "session", sessionID, "reason", "input stream closed")
				return nil
			}
			if err := r.dispatch(ctx, ev); err != nil {
				slog.Error("runtime loop fatal error", "session", sessionID, "error", err)
				return err
			}
		}
	}
}

// ScopeMode classifies how an InputEvent is routed to services. There are
// no cross-flow joins in this model, so every event is either broadcast
// to every subscriber or owned by exactly one service.
type ScopeMode int

const (
	ScopeBroadcast ScopeMode = iota
	ScopeOwned
)

// Scope reports an InputEvent's routing mode.
func (ev InputEvent) Scope() ScopeMode {
	if ev.Kind == InputTimer {
		return ScopeOwned
	}
	return ScopeBroadcast
}

func (r *Runtime) dispatch(ctx context.Context, ev InputEvent) error {
	switch ev.Kind {
	case InputExternal:
		for _, svc := range r.subscribers[ev.FlowID] {
			if err := svc.HandleInput(ctx, ev.FlowID, ev.Value, ev.Instant); err != nil {
				return fmt.Errorf("dispatching %q to service %s: %w", ev.FlowID, svc.ID(), err)
			}
		}
		return nil

	case InputTimer:
		svc, ok := r.timerOwner[ev.TimerID]
		if !ok {
			return nil
		}
		if err := svc.HandleTimerFired(ctx, ev.TimerID, ev.Instant); err != nil {
			return fmt.Errorf("timer %q on service %s: %w", ev.TimerID, svc.ID(), err)
		}
		return nil
	}
	return nil
}
