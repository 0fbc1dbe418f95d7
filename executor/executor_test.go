package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/orbit-gateway/orbit/breaker"
	"github.com/orbit-gateway/orbit/gatewaytypes"
)

func descFor(name string) gatewaytypes.AdapterDescriptor {
	return gatewaytypes.AdapterDescriptor{Name: name, Type: gatewaytypes.AdapterTypeRetriever, Enabled: true}
}

func newTestExecutor(t *testing.T, adapters map[string]Adapter) *Executor {
	t.Helper()
	cache := NewInstanceCache(func(desc gatewaytypes.AdapterDescriptor) (Adapter, error) {
		a, ok := adapters[desc.Name]
		if !ok {
			return nil, errors.New("unknown adapter " + desc.Name)
		}
		return a, nil
	})
	registry := breaker.NewRegistry(breaker.DefaultConfig(), zap.NewNop())
	return New(cache, registry, zap.NewNop())
}

// TestExecutor_ReturnsExactlyOneResultPerAdapter verifies that a completed
// Execute call returns exactly n entries with distinct adapter names, one
// per input descriptor.
func TestExecutor_ReturnsExactlyOneResultPerAdapter(t *testing.T) {
	adapters := map[string]Adapter{
		"fast":    AdapterFunc(func(ctx context.Context, q string, o map[string]any) ([]gatewaytypes.ContextItem, error) { return nil, nil }),
		"slow":    AdapterFunc(func(ctx context.Context, q string, o map[string]any) ([]gatewaytypes.ContextItem, error) { time.Sleep(30 * time.Millisecond); return nil, nil }),
		"broken":  AdapterFunc(func(ctx context.Context, q string, o map[string]any) ([]gatewaytypes.ContextItem, error) { return nil, errors.New("boom") }),
	}
	e := newTestExecutor(t, adapters)
	descs := []gatewaytypes.AdapterDescriptor{descFor("fast"), descFor("slow"), descFor("broken")}

	results := e.Execute(context.Background(), "q", descs, nil, Config{
		Strategy: StrategyAll, MaxConcurrentAdapters: 4, ExecutionTimeout: time.Second, OperationTimeout: 500 * time.Millisecond,
	})

	require.Len(t, results, 3)
	seen := map[string]bool{}
	for _, r := range results {
		assert.NotEmpty(t, r.AdapterName)
		assert.False(t, seen[r.AdapterName])
		seen[r.AdapterName] = true
	}
}

// TestExecutor_FirstSuccessWins verifies the first_success strategy returns
// as soon as one adapter succeeds, without waiting on the rest.
func TestExecutor_FirstSuccessWins(t *testing.T) {
	adapters := map[string]Adapter{
		"fast": AdapterFunc(func(ctx context.Context, q string, o map[string]any) ([]gatewaytypes.ContextItem, error) {
			time.Sleep(50 * time.Millisecond)
			return []gatewaytypes.ContextItem{{Content: "fast-result", Confidence: 0.9}}, nil
		}),
		"slow": AdapterFunc(func(ctx context.Context, q string, o map[string]any) ([]gatewaytypes.ContextItem, error) {
			time.Sleep(300 * time.Millisecond)
			return []gatewaytypes.ContextItem{{Content: "slow-result", Confidence: 0.8}}, nil
		}),
		"broken": AdapterFunc(func(ctx context.Context, q string, o map[string]any) ([]gatewaytypes.ContextItem, error) {
			return nil, errors.New("boom")
		}),
	}
	e := newTestExecutor(t, adapters)
	descs := []gatewaytypes.AdapterDescriptor{descFor("fast"), descFor("slow"), descFor("broken")}

	start := time.Now()
	results := e.Execute(context.Background(), "q", descs, nil, Config{
		Strategy: StrategyFirstSuccess, MaxConcurrentAdapters: 4, ExecutionTimeout: time.Second, OperationTimeout: 500 * time.Millisecond,
	})
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 300*time.Millisecond)

	byName := map[string]gatewaytypes.AdapterResult{}
	for _, r := range results {
		byName[r.AdapterName] = r
	}
	require.True(t, byName["fast"].Success)
	assert.False(t, byName["slow"].Success)
}

func TestExecutor_AllAdaptersFailStillReturnsFullList(t *testing.T) {
	adapters := map[string]Adapter{
		"a": AdapterFunc(func(ctx context.Context, q string, o map[string]any) ([]gatewaytypes.ContextItem, error) { return nil, errors.New("fail-a") }),
		"b": AdapterFunc(func(ctx context.Context, q string, o map[string]any) ([]gatewaytypes.ContextItem, error) { return nil, errors.New("fail-b") }),
	}
	e := newTestExecutor(t, adapters)
	descs := []gatewaytypes.AdapterDescriptor{descFor("a"), descFor("b")}

	results := e.Execute(context.Background(), "q", descs, nil, DefaultConfig())
	require.Len(t, results, 2)
	for _, r := range results {
		assert.False(t, r.Success)
	}
}

func TestExecutor_BestEffortReturnsWhatCompleted(t *testing.T) {
	adapters := map[string]Adapter{
		"quick": AdapterFunc(func(ctx context.Context, q string, o map[string]any) ([]gatewaytypes.ContextItem, error) {
			return []gatewaytypes.ContextItem{{Content: "ok", Confidence: 0.5}}, nil
		}),
		"hangs": AdapterFunc(func(ctx context.Context, q string, o map[string]any) ([]gatewaytypes.ContextItem, error) {
			select {
			case <-ctx.Done():
			case <-time.After(2 * time.Second):
			}
			return nil, nil
		}),
	}
	e := newTestExecutor(t, adapters)
	descs := []gatewaytypes.AdapterDescriptor{descFor("quick"), descFor("hangs")}

	results := e.Execute(context.Background(), "q", descs, nil, Config{
		Strategy: StrategyBestEffort, MaxConcurrentAdapters: 4, ExecutionTimeout: 100 * time.Millisecond, OperationTimeout: 2 * time.Second,
	})

	require.Len(t, results, 2)
	byName := map[string]gatewaytypes.AdapterResult{}
	for _, r := range results {
		byName[r.AdapterName] = r
	}
	assert.True(t, byName["quick"].Success)
	assert.False(t, byName["hangs"].Success)
}

func TestExecutor_SourceAdapterStampedOnItems(t *testing.T) {
	adapters := map[string]Adapter{
		"a": AdapterFunc(func(ctx context.Context, q string, o map[string]any) ([]gatewaytypes.ContextItem, error) {
			return []gatewaytypes.ContextItem{{Content: "x", Confidence: 1.5}}, nil
		}),
	}
	e := newTestExecutor(t, adapters)
	results := e.Execute(context.Background(), "q", []gatewaytypes.AdapterDescriptor{descFor("a")}, nil, DefaultConfig())
	require.Len(t, results, 1)
	require.Len(t, results[0].Data, 1)
	assert.Equal(t, "a", results[0].Data[0].SourceAdapter)
	assert.Equal(t, 1.0, results[0].Data[0].Confidence, "confidence must be clamped to [0,1]")
}
