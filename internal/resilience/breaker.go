// Package resilience keeps the AI layer alive when backends misbehave.
//
// [Breaker] is a three-state circuit breaker (closed, open, half-open)
// guarding a single backend. [Chain] lines up several instances of the
// same provider type behind per-entry breakers, so a dead primary LLM or
// embeddings backend is bypassed in favour of the next healthy one while
// the world keeps ticking.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by [Breaker.Execute] while the breaker is open and
// the cooldown has not elapsed.
var ErrOpen = errors.New("resilience: breaker open")

// State is a breaker's operating mode.
type State int

const (
	// Closed forwards every call.
	Closed State = iota

	// Open rejects every call until the cooldown elapses.
	Open

	// HalfOpen lets a bounded number of probe calls through to decide
	// between reopening and closing.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	}
	return "unknown"
}

// Defaults applied by [NewBreaker] for zero-valued config fields.
const (
	defaultThreshold = 5
	defaultCooldown  = 30 * time.Second
	defaultProbes    = 3
)

// BreakerConfig tunes a [Breaker].
type BreakerConfig struct {
	// Name labels the breaker in logs.
	Name string

	// Threshold is the consecutive failure count that trips the breaker.
	Threshold int

	// Cooldown is how long the breaker stays open before probing.
	Cooldown time.Duration

	// Probes is the number of half-open calls that must all succeed for
	// the breaker to close.
	Probes int
}

// Breaker is a three-state circuit breaker.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	probes    int
	log       *slog.Logger

	mu         sync.Mutex
	state      State
	failures   int
	openedAt   time.Time
	probeCalls int
}

// NewBreaker builds a breaker, filling zero config fields with defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = defaultThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = defaultCooldown
	}
	if cfg.Probes <= 0 {
		cfg.Probes = defaultProbes
	}
	return &Breaker{
		name:      cfg.Name,
		threshold: cfg.Threshold,
		cooldown:  cfg.Cooldown,
		probes:    cfg.Probes,
		log:       slog.With("system", "resilience", "breaker", cfg.Name),
	}
}

// Execute runs fn unless the breaker refuses the call. Open breakers
// return [ErrOpen] without invoking fn; half-open breakers admit at most
// the configured number of probes.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn()
	b.settle(err)
	return err
}

// admit decides whether a call may proceed, advancing open to half-open
// when the cooldown has passed.
func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if time.Since(b.openedAt) < b.cooldown {
			return ErrOpen
		}
		b.state = HalfOpen
		b.probeCalls = 0
		b.log.Info("probing backend")
	case HalfOpen:
		if b.probeCalls >= b.probes {
			return ErrOpen
		}
	}

	if b.state == HalfOpen {
		b.probeCalls++
	}
	return nil
}

// settle applies a call result to the breaker state.
func (b *Breaker) settle(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		switch b.state {
		case HalfOpen:
			b.state = Open
			b.openedAt = time.Now()
			b.log.Warn("probe failed, reopening")
		case Closed:
			if b.failures >= b.threshold {
				b.state = Open
				b.openedAt = time.Now()
				b.log.Warn("breaker tripped", "failures", b.failures)
			}
		}
		return
	}

	if b.state == HalfOpen && b.probeCalls >= b.probes {
		b.state = Closed
		b.log.Info("breaker closed after probes")
	}
	b.failures = 0
}

// State reports the effective state, treating an open breaker past its
// cooldown as half-open.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && time.Since(b.openedAt) >= b.cooldown {
		return HalfOpen
	}
	return b.state
}

// Reset forces the breaker closed and clears its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.failures = 0
	b.probeCalls = 0
	b.log.Info("breaker reset")
}
