// Package lifecycle tracks the request/response state of a single UI component: idle before
// the first request, loading while a call is outstanding, then success or error.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Phase is the externally visible state of a component.
type Phase int

const (
	PhaseIdle    Phase = iota // no request issued yet
	PhaseLoading              // a request is outstanding
	PhaseSuccess              // last applied request succeeded
	PhaseError                // last applied request failed
)

// String returns the lowercase phase name used in templates and JSON.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseSuccess:
		return "success"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText renders the phase name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Policy decides what happens to a response that resolves after a newer request was issued.
type Policy int

const (
	// LatestIssued discards responses older than the newest issued request.
	LatestIssued Policy = iota
	// LatestArrival applies every response in arrival order; the slowest one wins.
	LatestArrival
)

// ErrUnknownPolicy is returned by ParsePolicy.
var ErrUnknownPolicy = errors.New("lifecycle: unknown stale policy")

// ParsePolicy maps configuration values to a Policy.
func ParsePolicy(value string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "latest-issued":
		return LatestIssued, nil
	case "latest-arrival":
		return LatestArrival, nil
	default:
		return LatestIssued, fmt.Errorf("%w: %q", ErrUnknownPolicy, value)
	}
}

// Ticket identifies one issued request.
type Ticket struct {
	Generation uint64
}

// Snapshot is a consistent copy of a controller's state.
type Snapshot[T any] struct {
	Phase      Phase     `json:"phase"`
	Data       T         `json:"data"`
	Message    string    `json:"error,omitempty"`
	Generation uint64    `json:"generation"`
	InFlight   int       `json:"inFlight"`
	ResolvedAt time.Time `json:"resolvedAt,omitzero"`
}

// Loading reports whether a request is outstanding.
func (s Snapshot[T]) Loading() bool {
	return s.Phase == PhaseLoading
}

// Failed reports whether the last applied request failed.
func (s Snapshot[T]) Failed() bool {
	return s.Phase == PhaseError
}

// Options configures a Controller.
type Options struct {
	Name   string
	Policy Policy
	Logger *slog.Logger
}

// Controller owns the lifecycle of one component instance. Data always holds the payload of
// the last successful resolution; a failure records a message without discarding it.
type Controller[T any] struct {
	mu         sync.Mutex
	name       string
	policy     Policy
	logger     *slog.Logger
	phase      Phase
	data       T
	message    string
	issued     uint64
	applied    uint64
	inflight   int
	resolvedAt time.Time
	touchedAt  time.Time
}

// New constructs a controller in PhaseIdle.
func New[T any](opts Options) *Controller[T] {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller[T]{
		name:      opts.Name,
		policy:    opts.Policy,
		logger:    logger,
		touchedAt: time.Now(),
	}
}

// Begin issues a new request and enters PhaseLoading.
func (c *Controller[T]) Begin() Ticket {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.issued++
	c.inflight++
	c.phase = PhaseLoading
	c.message = ""
	c.touchedAt = time.Now()
	return Ticket{Generation: c.issued}
}

// Resolve settles the request identified by t. It reports whether the result was applied;
// under LatestIssued a ticket older than the newest issued one is dropped.
func (c *Controller[T]) Resolve(t Ticket, data T, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight > 0 {
		c.inflight--
	}
	c.touchedAt = time.Now()

	if c.policy == LatestIssued && t.Generation < c.issued {
		c.logger.Debug("discard stale response",
			slog.String("component", c.name),
			slog.Uint64("generation", t.Generation),
			slog.Uint64("latest", c.issued))
		return false
	}

	c.applied = t.Generation
	c.resolvedAt = c.touchedAt
	if err != nil {
		c.phase = PhaseError
		c.message = Message(err)
		return true
	}
	c.phase = PhaseSuccess
	c.data = data
	c.message = ""
	return true
}

// Run issues a request, executes fn and resolves it. A failure is logged and returned with the
// snapshot; the caller decides how to surface it.
func (c *Controller[T]) Run(ctx context.Context, fn func(context.Context) (T, error)) (Snapshot[T], error) {
	ticket := c.Begin()
	data, err := fn(ctx)
	if err != nil {
		c.logger.Warn("component request failed",
			slog.String("component", c.name),
			slog.Uint64("generation", ticket.Generation),
			slog.Any("error", err))
	}
	c.Resolve(ticket, data, err)
	return c.Snapshot(), err
}

// Snapshot returns a copy of the current state.
func (c *Controller[T]) Snapshot() Snapshot[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot[T]{
		Phase:      c.phase,
		Data:       c.data,
		Message:    c.message,
		Generation: c.applied,
		InFlight:   c.inflight,
		ResolvedAt: c.resolvedAt,
	}
}

// Phase returns the current phase.
func (c *Controller[T]) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Busy reports whether any request is outstanding.
func (c *Controller[T]) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight > 0
}

func (c *Controller[T]) idleSince(now time.Time) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return now.Sub(c.touchedAt), c.inflight > 0
}

// Messenger is implemented by errors that carry a message meant for end users.
type Messenger interface {
	UserMessage() string
}

// Message converts err into the human-readable string shown next to a component.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var m Messenger
	if errors.As(err, &m) {
		if msg := m.UserMessage(); msg != "" {
			return msg
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "The request timed out. Please try again."
	}
	if errors.Is(err, context.Canceled) {
		return "The request was cancelled."
	}
	return err.Error()
}
