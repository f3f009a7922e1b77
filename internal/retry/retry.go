// Package retry runs backend calls with bounded, cancellable exponential
// backoff. Calls are grouped into named slots; a newer call on a slot
// cancels the one in flight, and every call carries an operation id so
// results that arrive after being superseded can be recognised and dropped.
package retry

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/Paintersrp/notetree/internal/api"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
	DefaultMultiplier  = 2.0
)

// Config controls the backoff schedule.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// DefaultConfig returns 3 attempts with 1s, 2s waits.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		Multiplier:  DefaultMultiplier,
	}
}

func (c Config) normalized() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BaseDelay < 0 {
		c.BaseDelay = 0
	}
	if c.Multiplier < 1 {
		c.Multiplier = DefaultMultiplier
	}
	return c
}

// Delay returns the wait before the attempt following the given one.
func (c Config) Delay(attempt int) time.Duration {
	c = c.normalized()
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(float64(c.BaseDelay) * math.Pow(c.Multiplier, float64(attempt-1)))
}

// RetryFunc observes a failed attempt right before the backoff wait.
type RetryFunc func(slot string, attempt int, err error)

type slotState struct {
	id     uint64
	cancel context.CancelFunc
}

// Gateway owns the slot table. It is safe for concurrent use.
type Gateway struct {
	cfg       Config
	onRetry   RetryFunc
	retryable func(error) bool

	mu     sync.Mutex
	nextID uint64
	slots  map[string]*slotState
}

// Option customises a Gateway.
type Option func(*Gateway)

// WithOnRetry installs the retry observer.
func WithOnRetry(fn RetryFunc) Option {
	return func(g *Gateway) { g.onRetry = fn }
}

// WithRetryable replaces the default classification (api.IsRetryable).
func WithRetryable(fn func(error) bool) Option {
	return func(g *Gateway) { g.retryable = fn }
}

func New(cfg Config, opts ...Option) *Gateway {
	g := &Gateway{
		cfg:       cfg.normalized(),
		retryable: api.IsRetryable,
		slots:     make(map[string]*slotState),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Config returns the normalized schedule in use.
func (g *Gateway) Config() Config {
	return g.cfg
}

// Result is what a slot session produced. Err holds the last attempt's
// error once attempts are exhausted, or ctx.Err() on cancellation.
type Result[T any] struct {
	Slot      string
	ID        uint64
	Value     T
	Err       error
	Attempts  int
	Cancelled bool
}

// Begin cancels whatever runs on slot and registers a new session.
func (g *Gateway) Begin(parent context.Context, slot string) (context.Context, uint64) {
	ctx, cancel := context.WithCancel(parent)

	g.mu.Lock()
	defer g.mu.Unlock()

	if prev, ok := g.slots[slot]; ok && prev.cancel != nil {
		prev.cancel()
	}
	g.nextID++
	g.slots[slot] = &slotState{id: g.nextID, cancel: cancel}
	return ctx, g.nextID
}

// Cancel aborts the in-flight session on slot, if any.
func (g *Gateway) Cancel(slot string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if s, ok := g.slots[slot]; ok && s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// IsCurrent reports whether id is still the latest session on slot.
func (g *Gateway) IsCurrent(slot string, id uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.slots[slot]
	return ok && s.id == id
}

func (g *Gateway) finish(slot string, id uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if s, ok := g.slots[slot]; ok && s.id == id && s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Ticket is a session registered on a slot whose work has not started
// yet. Issuing the ticket is what supersedes the previous session, so the
// order tickets are issued in decides which result is current, whatever
// order the work later runs in.
type Ticket struct {
	Slot string
	ID   uint64
	ctx  context.Context
}

// Issue begins a session on slot and returns it for a later Run.
func (g *Gateway) Issue(parent context.Context, slot string) Ticket {
	ctx, id := g.Begin(parent, slot)
	return Ticket{Slot: slot, ID: id, ctx: ctx}
}

// Execute runs op on slot, superseding any earlier session there. Only
// errors the gateway classifies as retryable are attempted again.
func Execute[T any](
	parent context.Context,
	g *Gateway,
	slot string,
	op func(ctx context.Context) (T, error),
) Result[T] {
	return Run(g, g.Issue(parent, slot), op)
}

// Run executes op under an already issued ticket. A ticket superseded or
// cancelled before Run starts yields a cancelled result without calling op.
func Run[T any](g *Gateway, t Ticket, op func(ctx context.Context) (T, error)) Result[T] {
	slot, id, ctx := t.Slot, t.ID, t.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	defer g.finish(slot, id)

	res := Result[T]{Slot: slot, ID: id}
	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			res.Err = err
			res.Cancelled = true
			return res
		}

		res.Attempts = attempt
		value, err := op(ctx)
		if err == nil {
			res.Value = value
			res.Err = nil
			return res
		}
		res.Err = err

		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			res.Cancelled = true
			return res
		}
		if !g.retryable(err) || attempt == g.cfg.MaxAttempts {
			return res
		}

		if g.onRetry != nil {
			g.onRetry(slot, attempt, err)
		}
		if !wait(ctx, g.cfg.Delay(attempt)) {
			res.Err = ctx.Err()
			res.Cancelled = true
			return res
		}
	}
	return res
}

// wait sleeps for d unless ctx ends first.
func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
