// Package breaker implements a per-adapter circuit breaker: a
// closed/open/half-open state machine wrapping one operation with a hard
// timeout, failure/success accounting, and fast-fail when open. Mirrors
// llm/circuitbreaker.breaker, generalized with a configurable
// success_threshold, force-open/force-close, and singleflight-serialized
// half-open probing instead of a simple call counter.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/orbit-gateway/orbit/gatewaytypes"
)

// Sentinel errors returned without invoking the wrapped operation.
var (
	ErrCircuitOpen            = errors.New("circuit breaker is open")
	ErrTooManyCallsInHalfOpen = errors.New("half-open probe already in flight")
)

// Config holds the tunables for one adapter's breaker. Overridden per
// adapter by gatewaytypes.FaultToleranceConfig where set.
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	OperationTimeout time.Duration
	RecoveryTimeout  time.Duration
	MaxSamples       int // rolling window length feeding AvgResponseTime
	OnStateChange    func(name string, from, to gatewaytypes.CircuitState)
}

// DefaultConfig mirrors circuitbreaker.DefaultConfig's shape.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OperationTimeout: 30 * time.Second,
		RecoveryTimeout:  60 * time.Second,
		MaxSamples:       100,
	}
}

// Breaker is the public per-adapter circuit breaker contract.
type Breaker interface {
	// Execute runs fn under the breaker's timeout and state-machine rules.
	// A context cancellation that is not also a timeout is returned as-is
	// and does not affect breaker state.
	Execute(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error)
	State() gatewaytypes.CircuitBreakerState
	Reset()
	ForceOpen()
	ForceClose()
}

type breaker struct {
	name   string
	config Config
	logger *zap.Logger

	mu                   sync.Mutex
	state                gatewaytypes.CircuitState
	consecutiveFailures  int
	consecutiveSuccesses int
	lastFailureTime      time.Time
	lastSuccessTime      time.Time
	stateChangeTime      time.Time
	metrics              gatewaytypes.CircuitMetrics
	samples              []time.Duration

	probe singleflight.Group
}

// New constructs a breaker for one named adapter.
func New(name string, config Config, logger *zap.Logger) Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 2
	}
	if config.OperationTimeout <= 0 {
		config.OperationTimeout = 30 * time.Second
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = 60 * time.Second
	}
	if config.MaxSamples <= 0 {
		config.MaxSamples = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &breaker{
		name:            name,
		config:          config,
		logger:          logger.With(zap.String("component", "breaker"), zap.String("adapter", name)),
		state:           gatewaytypes.CircuitClosed,
		stateChangeTime: time.Now(),
	}
}

type callOutcome struct {
	result any
	err    error
}

// Execute implements Breaker.
func (b *breaker) Execute(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	halfOpen, err := b.beforeCall()
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, b.config.OperationTimeout)
	defer cancel()

	run := func() (any, error) {
		resultCh := make(chan callOutcome, 1)
		go func() {
			res, callErr := fn(callCtx)
			resultCh <- callOutcome{result: res, err: callErr}
		}()

		start := time.Now()
		select {
		case <-callCtx.Done():
			timedOut := errors.Is(callCtx.Err(), context.DeadlineExceeded)
			cancelled := !timedOut && errors.Is(ctx.Err(), context.Canceled)
			elapsed := time.Since(start)
			if cancelled {
				// Externally cancelled, not timed out: does not mutate
				// breaker state.
				return nil, ctx.Err()
			}
			b.afterCall(false, true, elapsed)
			return nil, fmt.Errorf("operation timed out after %s: %w", b.config.OperationTimeout, callCtx.Err())

		case res := <-resultCh:
			elapsed := time.Since(start)
			if errors.Is(ctx.Err(), context.Canceled) {
				// Caller cancelled while fn was finishing: same as above.
				return nil, ctx.Err()
			}
			success := res.err == nil || isClientError(res.err)
			b.afterCall(success, false, elapsed)
			if !success {
				return nil, res.err
			}
			return res.result, nil
		}
	}

	if !halfOpen {
		return run()
	}

	// Half-open: serialize the single allowed probe so concurrent callers
	// share its outcome rather than racing extra probes through.
	v, err, _ := b.probe.Do("probe", run)
	return v, err
}

// isClientError reports whether err represents a client-caused failure that
// should not count against the breaker's failure threshold, mirroring the
// teacher's circuitbreaker.isClientError and generalizing it to adapter
// errors beyond LLM calls.
func isClientError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range []string{
		"INVALID_REQUEST", "AUTHENTICATION", "UNAUTHORIZED",
		"FORBIDDEN", "QUOTA_EXCEEDED", "CONTENT_FILTERED",
		"TOOL_VALIDATION", "CONTEXT_TOO_LONG", "PARAMETER_VALIDATION_ERROR",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// beforeCall applies the state-machine entry rules and reports whether the
// call is a serialized half-open probe.
func (b *breaker) beforeCall() (halfOpen bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case gatewaytypes.CircuitClosed:
		return false, nil

	case gatewaytypes.CircuitOpen:
		if time.Since(b.lastFailureTime) >= b.config.RecoveryTimeout {
			b.setState(gatewaytypes.CircuitHalfOpen)
			b.consecutiveSuccesses = 0
			return true, nil
		}
		return false, ErrCircuitOpen

	case gatewaytypes.CircuitHalfOpen:
		return true, nil

	default:
		return false, fmt.Errorf("unknown circuit state: %v", b.state)
	}
}

func (b *breaker) afterCall(success, timedOut bool, elapsed time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.metrics.Total++
	if timedOut {
		b.metrics.Timeout++
	}
	b.recordSample(elapsed)

	if success {
		b.metrics.Successful++
		b.onSuccess()
	} else {
		b.metrics.Failed++
		b.onFailure()
	}
}

func (b *breaker) recordSample(d time.Duration) {
	b.samples = append(b.samples, d)
	if len(b.samples) > b.config.MaxSamples {
		b.samples = b.samples[len(b.samples)-b.config.MaxSamples:]
	}
	var total time.Duration
	for _, s := range b.samples {
		total += s
	}
	b.metrics.AvgResponseTime = total / time.Duration(len(b.samples))
}

func (b *breaker) onSuccess() {
	b.lastSuccessTime = time.Now()
	switch b.state {
	case gatewaytypes.CircuitClosed:
		b.consecutiveFailures = 0
		b.consecutiveSuccesses++

	case gatewaytypes.CircuitHalfOpen:
		b.consecutiveSuccesses++
		if b.consecutiveSuccesses >= b.config.SuccessThreshold {
			b.setState(gatewaytypes.CircuitClosed)
			b.consecutiveFailures = 0
			b.consecutiveSuccesses = 0
		}

	case gatewaytypes.CircuitOpen:
		b.logger.Warn("success recorded while circuit open")
	}
}

func (b *breaker) onFailure() {
	b.consecutiveFailures++
	b.consecutiveSuccesses = 0
	b.lastFailureTime = time.Now()

	switch b.state {
	case gatewaytypes.CircuitClosed:
		if b.consecutiveFailures >= b.config.FailureThreshold {
			b.logger.Warn("circuit opening",
				zap.Int("consecutive_failures", b.consecutiveFailures),
				zap.Int("threshold", b.config.FailureThreshold))
			b.setState(gatewaytypes.CircuitOpen)
		}

	case gatewaytypes.CircuitHalfOpen:
		b.logger.Warn("half-open probe failed, reopening")
		b.setState(gatewaytypes.CircuitOpen)

	case gatewaytypes.CircuitOpen:
		b.logger.Warn("failure recorded while circuit open")
	}
}

// setState must be called with b.mu held.
func (b *breaker) setState(newState gatewaytypes.CircuitState) {
	old := b.state
	b.state = newState
	b.stateChangeTime = time.Now()
	if b.config.OnStateChange != nil && old != newState {
		go b.config.OnStateChange(b.name, old, newState)
	}
}

// State implements Breaker.
func (b *breaker) State() gatewaytypes.CircuitBreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return gatewaytypes.CircuitBreakerState{
		AdapterName:          b.name,
		State:                b.state,
		ConsecutiveFailures:  b.consecutiveFailures,
		ConsecutiveSuccesses: b.consecutiveSuccesses,
		LastFailureTime:      b.lastFailureTime,
		LastSuccessTime:      b.lastSuccessTime,
		StateChangeTime:      b.stateChangeTime,
		Metrics:              b.metrics,
	}
}

// Reset implements Breaker. It forces the breaker closed and clears the
// consecutive failure/success counters; the accumulated metrics are kept.
// There is no separate metrics-only reset.
func (b *breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	old := b.state
	b.state = gatewaytypes.CircuitClosed
	b.consecutiveFailures = 0
	b.consecutiveSuccesses = 0
	b.stateChangeTime = time.Now()
	if b.config.OnStateChange != nil && old != gatewaytypes.CircuitClosed {
		go b.config.OnStateChange(b.name, old, gatewaytypes.CircuitClosed)
	}
}

// ForceOpen bypasses the state machine's normal transitions, forcing the
// breaker open until ForceClose or a future successful probe resets it.
func (b *breaker) ForceOpen() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setState(gatewaytypes.CircuitOpen)
	b.lastFailureTime = time.Now()
}

// ForceClose bypasses the state machine but still updates state_change_time.
func (b *breaker) ForceClose() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setState(gatewaytypes.CircuitClosed)
	b.consecutiveFailures = 0
	b.consecutiveSuccesses = 0
}
