package stream

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nickh0112/jira-ticket-planner-sub001/services/events"

	"go.uber.org/zap"
)

type State int32

const (
	StateConnecting State = iota
	StateConnected
	StateReconnecting
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

const (
	baseDelay = time.Second
	maxDelay  = 30 * time.Second
)

// Backoff is the reconnect delay after n consecutive failures:
// min(1s * 2^n, 30s).
func Backoff(n int) time.Duration {
	if n < 0 {
		n = 0
	}
	if n >= 5 {
		return maxDelay
	}
	d := baseDelay << n
	if d > maxDelay {
		return maxDelay
	}
	return d
}

// Conn is one open event stream.
type Conn interface {
	Read(ctx context.Context) (events.Envelope, error)
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// HandlerFunc handles one event kind. Errors are logged and never end the
// connection.
type HandlerFunc func(ctx context.Context, env events.Envelope) error

// Consumer keeps one persistent connection open, dispatches events by kind
// and reconnects with Backoff after every failure until its context ends.
type Consumer struct {
	dialer   Dialer
	sleep    func(ctx context.Context, d time.Duration) error
	onChange func(State)

	mu       sync.RWMutex
	handlers map[events.Kind]HandlerFunc

	state    atomic.Int32
	attempts atomic.Int32
}

type Option func(*Consumer)

// WithSleep replaces the reconnect wait, mainly for tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Consumer) { c.sleep = fn }
}

// WithStateHook is called on every state transition.
func WithStateHook(fn func(State)) Option {
	return func(c *Consumer) { c.onChange = fn }
}

func NewConsumer(d Dialer, opts ...Option) *Consumer {
	c := &Consumer{
		dialer:   d,
		sleep:    sleepContext,
		handlers: map[events.Kind]HandlerFunc{},
	}
	c.state.Store(int32(StateStopped))
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Handle sets the handler for kind, replacing any previous one.
func (c *Consumer) Handle(kind events.Kind, fn HandlerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[kind] = fn
}

func (c *Consumer) State() State {
	return State(c.state.Load())
}

// Attempts is the current consecutive-failure count.
func (c *Consumer) Attempts() int {
	return int(c.attempts.Load())
}

func (c *Consumer) setState(s State) {
	if State(c.state.Swap(int32(s))) == s {
		return
	}
	zap.L().Debug("stream consumer state changed", zap.Stringer("state", s))
	if c.onChange != nil {
		c.onChange(s)
	}
}

// Run blocks until ctx is cancelled and then returns ctx.Err().
func (c *Consumer) Run(ctx context.Context) error {
	c.setState(StateConnecting)
	defer c.setState(StateStopped)

	for {
		err := c.session(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		n := int(c.attempts.Load())
		delay := Backoff(n)
		c.attempts.Add(1)
		c.setState(StateReconnecting)
		zap.L().Warn("event stream lost, reconnecting",
			zap.Error(err),
			zap.Int("attempt", n+1),
			zap.Duration("delay", delay),
		)

		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

func (c *Consumer) session(ctx context.Context) error {
	conn, err := c.dialer.Dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	for {
		env, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if env.Type == events.KindConnected {
			c.attempts.Store(0)
			c.setState(StateConnected)
		}
		c.dispatch(ctx, env)
	}
}

func (c *Consumer) dispatch(ctx context.Context, env events.Envelope) {
	c.mu.RLock()
	fn, ok := c.handlers[env.Type]
	c.mu.RUnlock()
	if !ok {
		return
	}
	if err := fn(ctx, env); err != nil && !errors.Is(err, context.Canceled) {
		zap.L().Warn("event handler failed", zap.String("event", string(env.Type)), zap.Error(err))
	}
}
