// Package circuit stops calling an object store that keeps failing and
// probes it again after a cooldown.
package circuit

import (
	"sync"
	"time"

	"github.com/objectfs/s3drive/pkg/errors"
)

// State represents the circuit breaker state
type State int

const (
	// StateClosed lets requests through.
	StateClosed State = iota
	// StateOpen rejects requests until the cooldown expires.
	StateOpen
	// StateHalfOpen lets a limited number of probes through.
	StateHalfOpen
)

// String returns string representation of state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Config contains circuit breaker configuration
type Config struct {
	Enabled bool `yaml:"enabled"`

	// FailureThreshold consecutive failures open the breaker.
	FailureThreshold uint32 `yaml:"failure_threshold"`

	// Cooldown is spent in the open state before probing.
	Cooldown time.Duration `yaml:"cooldown"`

	// HalfOpenRequests bounds the probes let through while half-open.
	HalfOpenRequests uint32 `yaml:"half_open_requests"`

	// OnStateChange is called with the breaker lock held.
	OnStateChange func(name string, from, to State) `yaml:"-"`

	// IsFailure decides which errors count against the store.
	IsFailure func(err error) bool `yaml:"-"`
}

// DefaultConfig returns the configuration used by the command line tool.
func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		HalfOpenRequests: 1,
	}
}

// Counts holds the numbers of requests and their successes/failures
type Counts struct {
	Requests            uint32 `json:"requests"`
	TotalFailures       uint32 `json:"total_failures"`
	ConsecutiveFailures uint32 `json:"consecutive_failures"`
	Rejected            uint32 `json:"rejected"`
}

// CircuitBreaker implements the circuit breaker pattern
type CircuitBreaker struct {
	name   string
	config Config
	now    func() time.Time

	mu       sync.Mutex
	state    State
	counts   Counts
	openedAt time.Time
	probes   uint32
}

// NewCircuitBreaker creates a new circuit breaker instance
func NewCircuitBreaker(name string, config Config) *CircuitBreaker {
	defaults := DefaultConfig()
	if config.FailureThreshold == 0 {
		config.FailureThreshold = defaults.FailureThreshold
	}
	if config.Cooldown <= 0 {
		config.Cooldown = defaults.Cooldown
	}
	if config.HalfOpenRequests == 0 {
		config.HalfOpenRequests = defaults.HalfOpenRequests
	}
	if config.IsFailure == nil {
		config.IsFailure = IsStoreFailure
	}

	return &CircuitBreaker{
		name:   name,
		config: config,
		now:    time.Now,
	}
}

// IsStoreFailure reports whether err indicates the store itself is
// unhealthy. Missing objects, denied access and calls canceled by the
// caller do not; requests that time out do.
func IsStoreFailure(err error) bool {
	if err == nil {
		return false
	}
	switch errors.CodeOf(err) {
	case errors.ErrCodeObjectNotFound, errors.ErrCodeAccessDenied, errors.ErrCodeOperationCanceled:
		return false
	}
	return true
}

// Execute runs fn if the breaker allows it.
func (cb *CircuitBreaker) Execute(operation string, fn func() error) error {
	if err := cb.beforeRequest(operation); err != nil {
		return err
	}
	err := fn()
	cb.afterRequest(err)
	return err
}

func (cb *CircuitBreaker) beforeRequest(operation string) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	state := cb.currentState()
	if state == StateOpen || (state == StateHalfOpen && cb.probes >= cb.config.HalfOpenRequests) {
		cb.counts.Rejected++
		return errors.NewError(errors.ErrCodeConnectionFailed, "object store unavailable, circuit open").
			WithComponent("circuit").
			WithOperation(operation).
			WithContext("breaker", cb.name).
			WithContext("state", state.String())
	}
	if state == StateHalfOpen {
		cb.probes++
	}
	cb.counts.Requests++
	return nil
}

func (cb *CircuitBreaker) afterRequest(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	state := cb.currentState()
	if !cb.config.IsFailure(err) {
		cb.counts.ConsecutiveFailures = 0
		if state == StateHalfOpen {
			cb.setState(StateClosed)
		}
		return
	}

	cb.counts.TotalFailures++
	cb.counts.ConsecutiveFailures++
	if state == StateHalfOpen || cb.counts.ConsecutiveFailures >= cb.config.FailureThreshold {
		cb.setState(StateOpen)
	}
}

// currentState moves an expired open breaker to half-open. The caller
// must hold cb.mu.
func (cb *CircuitBreaker) currentState() State {
	if cb.state == StateOpen && !cb.now().Before(cb.openedAt.Add(cb.config.Cooldown)) {
		cb.setState(StateHalfOpen)
	}
	return cb.state
}

func (cb *CircuitBreaker) setState(state State) {
	prev := cb.state
	if prev == state {
		return
	}

	cb.state = state
	cb.probes = 0
	cb.counts.ConsecutiveFailures = 0
	if state == StateOpen {
		cb.openedAt = cb.now()
	}

	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.name, prev, state)
	}
}

// State returns the current state of the circuit breaker
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentState()
}

// Counts returns a copy of the current counts
func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

// Reset closes the breaker and clears its counts.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.counts = Counts{}
	cb.setState(StateClosed)
}

// Name returns the name of the circuit breaker
func (cb *CircuitBreaker) Name() string {
	return cb.name
}
