// Package reliability wraps effector calls that cross a process boundary
// (here: the shell effector's subprocess execution) with a circuit breaker and
// bounded retry, so a flapping underlying operation degrades to fast
// failures instead of piling up.
package reliability

import (
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
)

// Wrapper composes a circuit breaker with bounded retry around a single
// named operation.
type Wrapper struct {
	breaker *gobreaker.CircuitBreaker
	retries uint
}

// Option configures a Wrapper.
type Option func(*config)

type config struct {
	maxRequests uint32
	interval    time.Duration
	timeout     time.Duration
	retries     uint
}

// WithRetries sets the number of retry attempts (default 1, i.e. no retry).
func WithRetries(n uint) Option {
	return func(c *config) { c.retries = n }
}

// WithBreakerTimeout sets how long the breaker stays open before probing
// again (default 10s).
func WithBreakerTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs a Wrapper named for breaker diagnostics.
func New(name string, opts ...Option) *Wrapper {
	cfg := config{maxRequests: 1, timeout: 10 * time.Second, retries: 1}
	for _, opt := range opts {
		opt(&cfg)
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.maxRequests,
		Interval:    cfg.interval,
		Timeout:     cfg.timeout,
	})
	return &Wrapper{breaker: breaker, retries: cfg.retries}
}

// Do runs fn through the circuit breaker with bounded retry, returning
// fn's result or the first error that trips the breaker.
func Do[T any](w *Wrapper, fn func() (T, error)) (T, error) {
	out, err := w.breaker.Execute(func() (interface{}, error) {
		var result T
		retryErr := retry.New(retry.Attempts(w.retries)).Do(func() error {
			var fnErr error
			result, fnErr = fn()
			return fnErr
		})
		return result, retryErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out.(T), nil
}
