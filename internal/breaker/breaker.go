// Package breaker implements a rolling-window circuit breaker used around
// the photo retrieval and upload paths. One Breaker guards one operation;
// its counters are process-wide and shared by every concurrent caller.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Event names mirror the notifications observers receive. They are a log and
// metric sink only, never part of the wire contract.
type Event string

const (
	EventOpen     Event = "open"
	EventClose    Event = "close"
	EventHalfOpen Event = "halfOpen"
	EventFallback Event = "fallback"
)

type Listener func(name string, ev Event)

var (
	// ErrOpen is returned when the breaker fast-fails without invoking the
	// wrapped function.
	ErrOpen = errors.New("breaker: circuit open")
	// ErrTimeout is returned when the wrapped call exceeds the per-call
	// deadline; the in-flight result is abandoned.
	ErrTimeout = errors.New("breaker: call timed out")
)

type Config struct {
	Timeout                  time.Duration // per-call deadline; overrun counts as failure
	ResetTimeout             time.Duration // open -> half-open cooldown
	RollingWindow            time.Duration // trailing window for volume/failure stats
	ErrorThresholdPercentage int           // failure percentage that trips the breaker
	VolumeThreshold          int           // minimum calls in the window before tripping

	// Clock overrides time.Now; tests use it to step through the window.
	Clock func() time.Time
}

func DefaultConfig() Config {
	return Config{
		Timeout:                  10 * time.Second,
		ResetTimeout:             10 * time.Second,
		RollingWindow:            30 * time.Second,
		ErrorThresholdPercentage: 50,
		VolumeThreshold:          3,
	}
}

type call struct {
	at time.Time
	ok bool
}

type Breaker struct {
	name string
	cfg  Config
	now  func() time.Time

	mu        sync.Mutex
	state     State
	window    []call
	openedAt  time.Time
	probing   bool
	listeners []Listener
}

func New(name string, cfg Config) *Breaker {
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &Breaker{
		name:  name,
		cfg:   cfg,
		now:   now,
		state: StateClosed,
	}
}

func (b *Breaker) Name() string {
	return b.name
}

// Subscribe registers a listener for state notifications. Listeners run
// synchronously under the breaker lock; keep them cheap.
func (b *Breaker) Subscribe(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Do runs fn under the breaker. Typed wrapper over Execute so call sites keep
// their result types.
func Do[T any](b *Breaker, ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	v, err := b.Execute(ctx, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// Execute applies the breaker policy around one call. A call that outlives
// cfg.Timeout is recorded as a failure and its eventual result is discarded.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	if err := b.allow(); err != nil {
		return nil, err
	}

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		v   any
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(cctx)
		ch <- result{v, err}
	}()

	timer := time.NewTimer(b.cfg.Timeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		b.record(r.err == nil)
		return r.v, r.err
	case <-timer.C:
		b.record(false)
		return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, b.name, b.cfg.Timeout)
	case <-ctx.Done():
		b.record(false)
		return nil, ctx.Err()
	}
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.now().Sub(b.openedAt) >= b.cfg.ResetTimeout {
			b.state = StateHalfOpen
			b.probing = true
			b.emit(EventHalfOpen)
			return nil
		}
		b.emit(EventFallback)
		return ErrOpen
	case StateHalfOpen:
		// A probe is already in flight; everyone else is shed.
		if b.probing {
			b.emit(EventFallback)
			return ErrOpen
		}
		b.probing = true
		return nil
	default:
		return fmt.Errorf("breaker %s: unknown state %v", b.name, b.state)
	}
}

func (b *Breaker) record(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()

	switch b.state {
	case StateHalfOpen:
		b.probing = false
		if ok {
			b.state = StateClosed
			b.window = nil
			b.emit(EventClose)
		} else {
			b.state = StateOpen
			b.openedAt = now
			b.emit(EventOpen)
		}
		return
	case StateOpen:
		// Late result from a call admitted before the trip; stats only.
		return
	}

	b.window = append(b.window, call{at: now, ok: ok})
	b.prune(now)

	volume := len(b.window)
	if volume < b.cfg.VolumeThreshold {
		return
	}
	failures := 0
	for _, c := range b.window {
		if !c.ok {
			failures++
		}
	}
	if failures*100 >= b.cfg.ErrorThresholdPercentage*volume {
		b.state = StateOpen
		b.openedAt = now
		b.emit(EventOpen)
	}
}

func (b *Breaker) prune(now time.Time) {
	cutoff := now.Add(-b.cfg.RollingWindow)
	i := 0
	for ; i < len(b.window); i++ {
		if b.window[i].at.After(cutoff) {
			break
		}
	}
	b.window = b.window[i:]
}

func (b *Breaker) emit(ev Event) {
	for _, l := range b.listeners {
		l(b.name, ev)
	}
}

// Metrics is a read-only snapshot for the health endpoint.
type Metrics struct {
	Name     string `json:"name"`
	State    string `json:"state"`
	Volume   int    `json:"volume"`
	Failures int    `json:"failures"`
}

func (b *Breaker) Snapshot() Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	failures := 0
	for _, c := range b.window {
		if !c.ok {
			failures++
		}
	}
	return Metrics{
		Name:     b.name,
		State:    b.state.String(),
		Volume:   len(b.window),
		Failures: failures,
	}
}
