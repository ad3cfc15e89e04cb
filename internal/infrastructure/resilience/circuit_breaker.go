package resilience

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"jan-server/services/grant-scout/internal/infrastructure/metrics"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
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

// CircuitBreakerConfig defines circuit breaker behavior
type CircuitBreakerConfig struct {
	Enabled          bool
	FailureThreshold int           // Number of failures before opening
	SuccessThreshold int           // Number of successes to close from half-open
	Timeout          time.Duration // How long to stay open before trying half-open
	MaxHalfOpenCalls int           // Max concurrent calls in half-open state
}

// DefaultCircuitBreakerConfig returns sensible defaults
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          45 * time.Second,
		MaxHalfOpenCalls: 2,
	}
}

// CircuitBreaker implements the circuit breaker pattern
type CircuitBreaker struct {
	name string
	cfg  CircuitBreakerConfig
	mu   sync.Mutex
	now  func() time.Time

	state           CircuitState
	failures        int
	successes       int
	lastFailureTime time.Time
	halfOpenCalls   int
}

// NewCircuitBreaker creates a new circuit breaker. name labels the state metric.
func NewCircuitBreaker(name string, cfg CircuitBreakerConfig) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:  name,
		cfg:   cfg,
		now:   time.Now,
		state: StateClosed,
	}
	metrics.SetCircuitBreakerState(name, cb.state.String())
	return cb
}

// Execute runs fn unless the breaker is open. Errors for which ignore returns
// true (caller cancellation, for example) do not count as failures.
func (cb *CircuitBreaker) Execute(operation string, fn func() error, ignore func(error) bool) error {
	if !cb.allowRequest() {
		return fmt.Errorf("%s: %w", operation, ErrCircuitOpen)
	}

	err := fn()
	if err != nil && ignore != nil && ignore(err) {
		cb.release()
		return err
	}
	cb.recordResult(operation, err)
	return err
}

func (cb *CircuitBreaker) allowRequest() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.cfg.Enabled {
		return true
	}

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if cb.now().Sub(cb.lastFailureTime) > cb.cfg.Timeout {
			log.Info().Str("breaker", cb.name).Msg("circuit breaker transitioning to half-open")
			cb.setState(StateHalfOpen)
			cb.halfOpenCalls = 1
			return true
		}
		return false
	case StateHalfOpen:
		if cb.halfOpenCalls < cb.cfg.MaxHalfOpenCalls {
			cb.halfOpenCalls++
			return true
		}
		return false
	default:
		return false
	}
}

// release frees a half-open slot without judging the call.
func (cb *CircuitBreaker) release() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateHalfOpen && cb.halfOpenCalls > 0 {
		cb.halfOpenCalls--
	}
}

func (cb *CircuitBreaker) recordResult(operation string, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.cfg.Enabled {
		return
	}

	if err != nil {
		cb.failures++
		cb.successes = 0
		cb.lastFailureTime = cb.now()

		if cb.state == StateHalfOpen {
			log.Warn().
				Str("breaker", cb.name).
				Str("operation", operation).
				Msg("circuit breaker opening from half-open due to failure")
			cb.setState(StateOpen)
			cb.halfOpenCalls = 0
		} else if cb.state == StateClosed && cb.failures >= cb.cfg.FailureThreshold {
			log.Warn().
				Str("breaker", cb.name).
				Str("operation", operation).
				Int("failures", cb.failures).
				Msg("circuit breaker opening due to failure threshold")
			cb.setState(StateOpen)
		}
		return
	}

	cb.successes++
	switch cb.state {
	case StateHalfOpen:
		if cb.successes >= cb.cfg.SuccessThreshold {
			log.Info().
				Str("breaker", cb.name).
				Str("operation", operation).
				Int("successes", cb.successes).
				Msg("circuit breaker closing from half-open")
			cb.setState(StateClosed)
			cb.failures = 0
			cb.successes = 0
			cb.halfOpenCalls = 0
		}
	case StateClosed:
		cb.failures = 0
	}
}

// caller holds mu
func (cb *CircuitBreaker) setState(state CircuitState) {
	cb.state = state
	metrics.SetCircuitBreakerState(cb.name, state.String())
}

// GetState returns the current circuit breaker state
func (cb *CircuitBreaker) GetState() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if !cb.cfg.Enabled {
		return StateClosed
	}
	return cb.state
}
