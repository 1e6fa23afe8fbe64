package circuitbreaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// ErrOpen is returned when the breaker rejects a call without running it.
var ErrOpen = errors.New("circuit breaker open")

// Config holds circuit breaker parameters.
type Config struct {
	// FailureThreshold consecutive failures open the circuit.
	FailureThreshold int
	// MaxRequests probe calls are allowed while half-open.
	MaxRequests int
	// Timeout is how long the circuit stays open before probing.
	Timeout   time.Duration
	Component string
	// OnStateChange, when set, receives state names ("closed", "half-open", "open").
	OnStateChange func(from, to string)
}

// CircuitBreaker protects upstream calls by failing fast after repeated failures.
type CircuitBreaker struct {
	cb *gobreaker.CircuitBreaker
}

// New creates a CircuitBreaker. Zero values fall back to 5 failures, 1 probe, 30s.
func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	threshold := uint32(cfg.FailureThreshold)
	settings := gobreaker.Settings{
		Name:        cfg.Component,
		MaxRequests: uint32(cfg.MaxRequests),
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
	}
	if cfg.OnStateChange != nil {
		settings.OnStateChange = func(_ string, from, to gobreaker.State) {
			cfg.OnStateChange(from.String(), to.String())
		}
	}
	return &CircuitBreaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Call runs fn when the circuit allows it. Rejections return ErrOpen; fn errors are returned unchanged.
// A failure after ctx is done is the caller giving up, not the dependency failing, so it is not
// counted toward opening the circuit.
func (c *CircuitBreaker) Call(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var fnErr error
	_, err := c.cb.Execute(func() (interface{}, error) {
		fnErr = fn()
		if fnErr != nil && ctx.Err() != nil {
			return nil, nil
		}
		return nil, fnErr
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrOpen
	}
	if err != nil {
		return err
	}
	return fnErr
}

// State returns the current state name.
func (c *CircuitBreaker) State() string {
	return c.cb.State().String()
}
