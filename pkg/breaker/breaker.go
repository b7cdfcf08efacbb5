// Package breaker implements a circuit breaker keyed by tagged error kinds
// rather than bare error presence, with a strict single-probe half-open
// state: only one in-flight call is allowed to test recovery at a time.
package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/jeffrey/intellinieuws/pkg/crawlerr"
	"github.com/jeffrey/intellinieuws/pkg/metrics"
)

// CircuitState is the breaker's current state.
type CircuitState int

const (
	Closed CircuitState = iota
	Open
	HalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config controls one breaker's thresholds. MonitoredKinds, if non-empty,
// restricts which crawlerr.Kind values count as failures; an error of any
// other kind (or an untagged error) is treated as success for breaker
// purposes, mirroring the Python original's isinstance(e, monitored_exceptions)
// check.
type Config struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
	SuccessThreshold int // consecutive successes in half-open needed to close
	CallTimeout      time.Duration
	MonitoredKinds   map[crawlerr.Kind]bool
}

// CircuitBreaker guards calls to a single named dependency.
type CircuitBreaker struct {
	name   string
	cfg    Config
	mu     sync.Mutex
	state  CircuitState
	failures       int
	halfOpenInUse  bool
	halfOpenSucc   int
	lastTransition time.Time
	lastFailure    time.Time
	totalCalls     int64
	totalFailures  int64
	totalSuccesses int64
	metrics        *metrics.Metrics
}

// New creates a breaker in the closed state.
func New(name string, cfg Config) *CircuitBreaker {
	return &CircuitBreaker{
		name:           name,
		cfg:            cfg,
		state:          Closed,
		lastTransition: time.Now(),
	}
}

// recordTransition updates breaker_transitions_total/breaker_state after a
// state change. Caller must hold cb.mu.
func (cb *CircuitBreaker) recordTransition() {
	if cb.metrics == nil {
		return
	}
	cb.metrics.BreakerTransitions.WithLabelValues(cb.name, cb.state.String()).Inc()
	cb.metrics.BreakerState.WithLabelValues(cb.name).Set(metrics.BreakerStateValue(cb.state.String()))
}

// ErrOpen is returned when a call is rejected because the circuit is open,
// or because a half-open probe is already in flight.
var ErrOpen = crawlerr.New(crawlerr.KindCircuitBreakerOpen, "circuit breaker is open")

// Call runs op through the breaker. It enforces CallTimeout if set, and
// synthesizes a KindExtractionTimeout failure on context deadline exceeded,
// matching the Python original's asyncio.TimeoutError handling.
func Call[T any](ctx context.Context, cb *CircuitBreaker, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if !cb.admit() {
		return zero, ErrOpen
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if cb.cfg.CallTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, cb.cfg.CallTimeout)
		defer cancel()
	}

	result, err := op(callCtx)
	if err == nil {
		cb.onSuccess()
		return result, nil
	}

	if callCtx.Err() == context.DeadlineExceeded {
		err = crawlerr.Wrap(crawlerr.KindExtractionTimeout, err, "operation timed out under circuit breaker")
	}
	cb.onFailure(err)
	return zero, err
}

// admit decides whether a call may proceed, transitioning Open->HalfOpen
// once RecoveryTimeout has elapsed and claiming the single half-open slot.
func (cb *CircuitBreaker) admit() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalCalls++

	switch cb.state {
	case Closed:
		return true
	case Open:
		if time.Since(cb.lastFailure) < cb.cfg.RecoveryTimeout {
			return false
		}
		cb.state = HalfOpen
		cb.lastTransition = time.Now()
		cb.halfOpenInUse = true
		cb.halfOpenSucc = 0
		cb.recordTransition()
		return true
	case HalfOpen:
		if cb.halfOpenInUse {
			return false
		}
		cb.halfOpenInUse = true
		return true
	}
	return false
}

func (cb *CircuitBreaker) onSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalSuccesses++

	switch cb.state {
	case HalfOpen:
		cb.halfOpenInUse = false
		cb.halfOpenSucc++
		if cb.halfOpenSucc >= maxInt(cb.cfg.SuccessThreshold, 1) {
			cb.state = Closed
			cb.failures = 0
			cb.lastTransition = time.Now()
			cb.recordTransition()
		}
	case Closed:
		if cb.failures > 0 {
			cb.failures = 0
		}
	}
}

func (cb *CircuitBreaker) onFailure(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.cfg.MonitoredKinds != nil && len(cb.cfg.MonitoredKinds) > 0 {
		if !cb.cfg.MonitoredKinds[crawlerr.KindOf(err)] {
			// Unmonitored failure kind: doesn't count against the breaker,
			// but a half-open probe still releases its slot.
			if cb.state == HalfOpen {
				cb.halfOpenInUse = false
			}
			return
		}
	}

	cb.totalFailures++
	cb.lastFailure = time.Now()

	switch cb.state {
	case HalfOpen:
		cb.halfOpenInUse = false
		cb.state = Open
		cb.lastTransition = time.Now()
		cb.recordTransition()
	case Closed:
		cb.failures++
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.state = Open
			cb.lastTransition = time.Now()
			cb.recordTransition()
		}
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset forces the breaker back to closed, clearing counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = Closed
	cb.failures = 0
	cb.halfOpenInUse = false
	cb.halfOpenSucc = 0
	cb.lastTransition = time.Now()
}

// Stats is a point-in-time snapshot of a breaker's counters.
type Stats struct {
	Name           string
	State          string
	Failures       int
	TotalCalls     int64
	TotalFailures  int64
	TotalSuccesses int64
	LastTransition time.Time
}

// Stats returns a snapshot of the breaker's counters.
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Stats{
		Name:           cb.name,
		State:          cb.state.String(),
		Failures:       cb.failures,
		TotalCalls:     cb.totalCalls,
		TotalFailures:  cb.totalFailures,
		TotalSuccesses: cb.totalSuccesses,
		LastTransition: cb.lastTransition,
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Manager owns a named set of breakers, created lazily on first use so
// callers don't need to pre-register every dependency.
type Manager struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
	defaults Config
	metrics  *metrics.Metrics
}

// NewManager creates a Manager that uses defaults for any breaker it has
// to create via GetOrCreate without an explicit Config.
func NewManager(defaults Config) *Manager {
	return &Manager{
		breakers: make(map[string]*CircuitBreaker),
		defaults: defaults,
	}
}

// WithMetrics attaches the Prometheus bundle propagated to every breaker
// the manager creates from this point on (existing breakers are updated
// too). Optional.
func (m *Manager) WithMetrics(met *metrics.Metrics) *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = met
	for _, cb := range m.breakers {
		cb.metrics = met
	}
	return m
}

// GetOrCreate returns the named breaker, creating it with cfg (or the
// manager's defaults if cfg is the zero value) on first access. Mirrors the
// teacher's double-checked-locking CircuitBreakerManager.GetOrCreate.
func (m *Manager) GetOrCreate(name string, cfg Config) *CircuitBreaker {
	m.mu.RLock()
	cb, ok := m.breakers[name]
	m.mu.RUnlock()
	if ok {
		return cb
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cb, ok := m.breakers[name]; ok {
		return cb
	}

	if cfg.FailureThreshold == 0 {
		cfg = m.defaults
	}
	cb = New(name, cfg)
	cb.metrics = m.metrics
	m.breakers[name] = cb
	return cb
}

// CallWithBreaker looks up (or creates) the named breaker and runs op
// through it.
func CallWithBreaker[T any](ctx context.Context, m *Manager, name string, cfg Config, op func(ctx context.Context) (T, error)) (T, error) {
	cb := m.GetOrCreate(name, cfg)
	return Call(ctx, cb, op)
}

// GetAllStats returns a snapshot of every breaker the manager has created.
func (m *Manager) GetAllStats() []Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make([]Stats, 0, len(m.breakers))
	for _, cb := range m.breakers {
		stats = append(stats, cb.Stats())
	}
	return stats
}

// Reset resets a single named breaker, if it exists.
func (m *Manager) Reset(name string) {
	m.mu.RLock()
	cb, ok := m.breakers[name]
	m.mu.RUnlock()
	if ok {
		cb.Reset()
	}
}

// ResetAll resets every breaker the manager has created.
func (m *Manager) ResetAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, cb := range m.breakers {
		cb.Reset()
	}
}
