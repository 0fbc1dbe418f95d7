// Package executor implements a bounded, per-adapter circuit-broken,
// timeout-enforced fan-out over retrieval adapters with all /
// first_success / best_effort strategies. Mirrors the hand-rolled
// goroutine+channel fan-out in llm/router rather than pulling in
// golang.org/x/sync/errgroup.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/orbit-gateway/orbit/breaker"
	"github.com/orbit-gateway/orbit/gatewaytypes"
)

// Strategy selects how the executor reduces concurrent adapter outcomes
// into one result set.
type Strategy string

// Strategy values.
const (
	StrategyAll          Strategy = "all"
	StrategyFirstSuccess Strategy = "first_success"
	StrategyBestEffort   Strategy = "best_effort"
)

// Config governs one Execute call.
type Config struct {
	Strategy              Strategy
	MaxConcurrentAdapters int
	ExecutionTimeout      time.Duration
	OperationTimeout      time.Duration // per-adapter; forwarded into the breaker
}

// DefaultConfig returns the production defaults: all-strategy fan-out, 8-way
// concurrency, a 10s overall and 5s per-adapter timeout.
func DefaultConfig() Config {
	return Config{
		Strategy:              StrategyAll,
		MaxConcurrentAdapters: 8,
		ExecutionTimeout:      10 * time.Second,
		OperationTimeout:      5 * time.Second,
	}
}

// Executor fans a query out over a set of named adapters.
type Executor struct {
	cache    *InstanceCache
	breakers *breaker.Registry
	logger   *zap.Logger
}

// New constructs an Executor backed by cache for adapter instances and
// breakers for per-adapter fault tolerance.
func New(cache *InstanceCache, breakers *breaker.Registry, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{cache: cache, breakers: breakers, logger: logger.With(zap.String("component", "executor"))}
}

type indexedResult struct {
	index  int
	result gatewaytypes.AdapterResult
}

// Execute runs query against every descriptor in descs and always returns
// exactly one AdapterResult per descriptor, in the order given.
func (e *Executor) Execute(ctx context.Context, query string, descs []gatewaytypes.AdapterDescriptor, options map[string]any, cfg Config) []gatewaytypes.AdapterResult {
	if cfg.MaxConcurrentAdapters <= 0 {
		cfg.MaxConcurrentAdapters = 8
	}
	if cfg.ExecutionTimeout <= 0 {
		cfg.ExecutionTimeout = 10 * time.Second
	}

	fanoutCtx, cancelFanout := context.WithTimeout(ctx, cfg.ExecutionTimeout)
	defer cancelFanout()

	n := len(descs)
	results := make([]gatewaytypes.AdapterResult, n)
	done := make(chan indexedResult, n)
	sem := make(chan struct{}, cfg.MaxConcurrentAdapters)

	taskCtx := make([]context.Context, n)
	taskCancel := make([]context.CancelFunc, n)
	for i := range descs {
		taskCtx[i], taskCancel[i] = context.WithCancel(fanoutCtx)
	}
	defer func() {
		for _, cancel := range taskCancel {
			cancel()
		}
	}()

	var wg sync.WaitGroup
	for i, desc := range descs {
		wg.Add(1)
		go func(i int, desc gatewaytypes.AdapterDescriptor) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-taskCtx[i].Done():
				done <- indexedResult{i, cancelledResult(desc.Name)}
				return
			}
			done <- indexedResult{i, e.runOne(taskCtx[i], desc, query, options, cfg)}
		}(i, desc)
	}

	go func() {
		wg.Wait()
		close(done)
	}()

	filled := 0
	for filled < n {
		select {
		case ir, ok := <-done:
			if !ok {
				goto drain
			}
			results[ir.index] = ir.result
			filled++

			if cfg.Strategy == StrategyFirstSuccess && ir.result.Success && len(ir.result.Data) > 0 {
				for j := range descs {
					if j != ir.index {
						taskCancel[j]()
					}
				}
				goto drain
			}

		case <-fanoutCtx.Done():
			goto drain
		}
	}

drain:
	// Any adapter that never produced a result (cancelled by strategy
	// satisfaction, or by the overall timeout) is recorded as cancelled,
	// never left empty — every requested adapter gets exactly one entry.
	pending := map[int]bool{}
	for i, r := range results {
		if r.AdapterName == "" {
			pending[i] = true
		}
	}
	if len(pending) > 0 {
		for _, cancel := range taskCancel {
			cancel()
		}
		timeout := time.After(200 * time.Millisecond)
	drainLoop:
		for len(pending) > 0 {
			select {
			case ir, ok := <-done:
				if !ok {
					break drainLoop
				}
				results[ir.index] = ir.result
				delete(pending, ir.index)
			case <-timeout:
				break drainLoop
			}
		}
		for i := range pending {
			results[i] = cancelledResult(descs[i].Name)
		}
	}

	return results
}

func cancelledResult(name string) gatewaytypes.AdapterResult {
	return gatewaytypes.AdapterResult{
		AdapterName: name,
		Success:     false,
		Error:       "cancelled",
		Cancelled:   true,
	}
}

// runOne executes a single adapter through its circuit breaker and
// translates every outcome (success, failure, timeout, cancellation) into
// an AdapterResult — the executor never lets an adapter panic or error
// propagate past this boundary.
func (e *Executor) runOne(ctx context.Context, desc gatewaytypes.AdapterDescriptor, query string, options map[string]any, cfg Config) gatewaytypes.AdapterResult {
	start := time.Now()

	adapter, err := e.cache.Get(desc)
	if err != nil {
		return gatewaytypes.AdapterResult{
			AdapterName:   desc.Name,
			Success:       false,
			Error:         fmt.Sprintf("adapter build failed: %v", err),
			ExecutionTime: time.Since(start),
		}
	}

	bcfg := breaker.DefaultConfig()
	if cfg.OperationTimeout > 0 {
		bcfg.OperationTimeout = cfg.OperationTimeout
	}
	if desc.FaultTolerance != nil {
		if desc.FaultTolerance.FailureThreshold > 0 {
			bcfg.FailureThreshold = desc.FaultTolerance.FailureThreshold
		}
		if desc.FaultTolerance.SuccessThreshold > 0 {
			bcfg.SuccessThreshold = desc.FaultTolerance.SuccessThreshold
		}
		if desc.FaultTolerance.RecoveryTimeout > 0 {
			bcfg.RecoveryTimeout = desc.FaultTolerance.RecoveryTimeout
		}
		if desc.FaultTolerance.OperationTimeout > 0 {
			bcfg.OperationTimeout = desc.FaultTolerance.OperationTimeout
		}
	}
	br := e.breakers.GetOrCreate(desc.Name, bcfg)

	v, err := br.Execute(ctx, func(callCtx context.Context) (any, error) {
		return adapter.Retrieve(callCtx, query, options)
	})
	elapsed := time.Since(start)

	if err != nil {
		switch {
		case errors.Is(err, breaker.ErrCircuitOpen):
			return gatewaytypes.AdapterResult{AdapterName: desc.Name, Success: false, Error: string(circuitOpenCode), ExecutionTime: elapsed}
		case errors.Is(err, context.Canceled):
			r := cancelledResult(desc.Name)
			r.ExecutionTime = elapsed
			return r
		case errors.Is(err, context.DeadlineExceeded):
			return gatewaytypes.AdapterResult{AdapterName: desc.Name, Success: false, Error: err.Error(), ExecutionTime: elapsed, TimedOut: true}
		default:
			return gatewaytypes.AdapterResult{AdapterName: desc.Name, Success: false, Error: err.Error(), ExecutionTime: elapsed}
		}
	}

	items, _ := v.([]gatewaytypes.ContextItem)
	for i := range items {
		items[i].SourceAdapter = desc.Name
		items[i].ClampConfidence()
	}
	return gatewaytypes.AdapterResult{
		AdapterName:   desc.Name,
		Success:       true,
		Data:          items,
		ExecutionTime: elapsed,
	}
}

const circuitOpenCode = "CIRCUIT_OPEN"
