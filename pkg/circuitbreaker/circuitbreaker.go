package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned without calling the guarded function while the
// breaker is open or its half-open probe budget is spent.
var ErrOpen = errors.New("circuit breaker open")

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

type Config struct {
	// FailureThreshold consecutive failures open the breaker.
	FailureThreshold int
	// SuccessThreshold successful probes close it again.
	SuccessThreshold int
	// Cooldown is how long the breaker stays open before probing.
	Cooldown time.Duration
	// MaxProbes bounds calls let through while half-open.
	MaxProbes int
}

func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 1,
		Cooldown:         5 * time.Second,
		MaxProbes:        1,
	}
}

// CircuitBreaker stops calling a failing dependency for a cooldown period.
type CircuitBreaker struct {
	config Config
	now    func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	probes    int
	changedAt time.Time
	rejected  uint64

	onStateChange func(from, to State)
}

func New(config Config) *CircuitBreaker {
	if config.FailureThreshold < 1 {
		config.FailureThreshold = 1
	}
	if config.SuccessThreshold < 1 {
		config.SuccessThreshold = 1
	}
	if config.MaxProbes < 1 {
		config.MaxProbes = 1
	}
	return &CircuitBreaker{
		config:    config,
		now:       time.Now,
		state:     StateClosed,
		changedAt: time.Now(),
	}
}

// OnStateChange registers fn, called synchronously outside the lock after
// each transition.
func (cb *CircuitBreaker) OnStateChange(fn func(from, to State)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onStateChange = fn
}

// Execute runs fn unless the breaker rejects the call with ErrOpen. The
// error from fn is returned unchanged.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.allow() {
		return ErrOpen
	}
	err := fn()
	cb.record(err == nil)
	return err
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	var from, to State
	changed := false
	defer func() {
		notify := cb.onStateChange
		cb.mu.Unlock()
		if changed && notify != nil {
			notify(from, to)
		}
	}()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.changedAt) < cb.config.Cooldown {
			cb.rejected++
			return false
		}
		from, to, changed = cb.transition(StateHalfOpen)
		cb.probes++
		return true
	case StateHalfOpen:
		if cb.probes >= cb.config.MaxProbes {
			cb.rejected++
			return false
		}
		cb.probes++
		return true
	default:
		return true
	}
}

func (cb *CircuitBreaker) record(ok bool) {
	cb.mu.Lock()
	var from, to State
	changed := false

	if ok {
		cb.failures = 0
		cb.successes++
		if cb.state == StateHalfOpen {
			cb.probes--
			if cb.successes >= cb.config.SuccessThreshold {
				from, to, changed = cb.transition(StateClosed)
			}
		}
	} else {
		cb.successes = 0
		cb.failures++
		switch {
		case cb.state == StateHalfOpen:
			from, to, changed = cb.transition(StateOpen)
		case cb.state == StateClosed && cb.failures >= cb.config.FailureThreshold:
			from, to, changed = cb.transition(StateOpen)
		}
	}

	notify := cb.onStateChange
	cb.mu.Unlock()
	if changed && notify != nil {
		notify(from, to)
	}
}

// transition must be called with mu held.
func (cb *CircuitBreaker) transition(next State) (State, State, bool) {
	prev := cb.state
	if prev == next {
		return prev, next, false
	}
	cb.state = next
	cb.changedAt = cb.now()
	cb.failures = 0
	cb.successes = 0
	cb.probes = 0
	return prev, next, true
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

type Stats struct {
	State     State
	Failures  int
	Rejected  uint64
	ChangedAt time.Time
}

func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Stats{
		State:     cb.state,
		Failures:  cb.failures,
		Rejected:  cb.rejected,
		ChangedAt: cb.changedAt,
	}
}

// Reset closes the breaker.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from, to, changed := cb.transition(StateClosed)
	notify := cb.onStateChange
	cb.mu.Unlock()
	if changed && notify != nil {
		notify(from, to)
	}
}
