package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrExhausted is returned when every entry in a [Chain] failed or had an
// open breaker.
var ErrExhausted = errors.New("resilience: all backends failed")

// chainEntry pairs one backend with its breaker.
type chainEntry[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// Chain tries a primary backend first and falls through to fallbacks in
// registration order. Every entry gets its own [Breaker] built from the
// shared config, so a flapping primary is skipped without probing it on
// every call.
type Chain[T any] struct {
	entries []chainEntry[T]
	cfg     BreakerConfig
	log     *slog.Logger
}

// NewChain starts a chain with its primary backend. cfg.Name is replaced
// per entry.
func NewChain[T any](primaryName string, primary T, cfg BreakerConfig) *Chain[T] {
	c := &Chain[T]{
		cfg: cfg,
		log: slog.With("system", "resilience"),
	}
	c.Add(primaryName, primary)
	return c
}

// Add appends a fallback backend. Order of addition is the failover order.
func (c *Chain[T]) Add(name string, value T) {
	cfg := c.cfg
	cfg.Name = name
	c.entries = append(c.entries, chainEntry[T]{
		name:    name,
		value:   value,
		breaker: NewBreaker(cfg),
	})
}

// Names returns the backend names in failover order.
func (c *Chain[T]) Names() []string {
	names := make([]string, len(c.entries))
	for i, e := range c.entries {
		names[i] = e.name
	}
	return names
}

// Primary returns the first backend. Useful for static metadata queries
// that should not fail over.
func (c *Chain[T]) Primary() T {
	return c.entries[0].value
}

// Do runs fn against each healthy entry until one succeeds. When every
// entry fails, the last error is wrapped in [ErrExhausted].
func (c *Chain[T]) Do(fn func(T) error) error {
	_, err := DoResult(c, func(v T) (struct{}, error) {
		return struct{}{}, fn(v)
	})
	return err
}

// DoResult is [Chain.Do] with a result value. A package-level function
// because methods cannot introduce type parameters.
func DoResult[T, R any](c *Chain[T], fn func(T) (R, error)) (R, error) {
	var lastErr error
	for i := range c.entries {
		entry := &c.entries[i]
		var result R
		err := entry.breaker.Execute(func() error {
			var callErr error
			result, callErr = fn(entry.value)
			return callErr
		})
		if err == nil {
			return result, nil
		}
		lastErr = err
		if errors.Is(err, ErrOpen) {
			c.log.Debug("skipping backend, breaker open", "backend", entry.name)
		} else {
			c.log.Warn("backend failed, falling through", "backend", entry.name, "error", err)
		}
	}
	var zero R
	return zero, fmt.Errorf("%w: %v", ErrExhausted, lastErr)
}
