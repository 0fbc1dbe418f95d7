package throttle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeDelay_BelowThresholdIsZero(t *testing.T) {
	cfg := DefaultCurveConfig()
	assert.Equal(t, int64(0), ComputeDelay(0.5, 5, cfg))
}

// TestComputeDelay_AtThresholdIsZero exercises the boundary: usage at
// exactly threshold_percent yields delay=0.
func TestComputeDelay_AtThresholdIsZero(t *testing.T) {
	cfg := DefaultCurveConfig()
	assert.Equal(t, int64(0), ComputeDelay(cfg.ThresholdPercent, 5, cfg))
}

func TestComputeDelay_AtFullUsageCapsAtMax(t *testing.T) {
	cfg := DefaultCurveConfig()
	// priority 10 has multiplier 2.0, so the raw value would exceed MaxDelayMs
	// and must be capped there.
	assert.Equal(t, int64(cfg.MaxDelayMs), ComputeDelay(1.0, 10, cfg))
}

func TestComputeDelay_LinearCurveAtGivenUsage(t *testing.T) {
	// daily_limit=1000, threshold=0.70, min=100, max=5000, linear, priority=5
	// daily_used=850 (85%) -> X-Throttle-Delay=2550 (±1)
	cfg := CurveConfig{ThresholdPercent: 0.70, MinDelayMs: 100, MaxDelayMs: 5000, Curve: CurveLinear, PriorityAnchors: DefaultPriorityAnchors()}
	usage := UsageFraction(850, 1000, 0, 0)
	delay := ComputeDelay(usage, 5, cfg)
	assert.InDelta(t, 2550, delay, 1)
}

func TestComputeDelay_ExponentialLagsLinearBelowFullUsage(t *testing.T) {
	cfg := DefaultCurveConfig()
	cfg.Curve = CurveLinear
	linear := ComputeDelay(0.9, 5, cfg)
	cfg.Curve = CurveExponential
	exponential := ComputeDelay(0.9, 5, cfg)
	assert.Less(t, exponential, linear, "x*x < x for normalized x in (0,1), so the exponential curve lags linear")
}

func TestUsageFraction_UnlimitedContributesZero(t *testing.T) {
	assert.Equal(t, 0.0, UsageFraction(100, 0, 200, 0))
}

func TestUsageFraction_TakesMax(t *testing.T) {
	assert.InDelta(t, 0.5, UsageFraction(50, 100, 10, 1000), 0.0001)
}

func TestPriorityMultiplier_Anchors(t *testing.T) {
	anchors := DefaultPriorityAnchors()
	assert.Equal(t, 0.5, PriorityMultiplier(1, anchors))
	assert.Equal(t, 1.0, PriorityMultiplier(5, anchors))
	assert.Equal(t, 2.0, PriorityMultiplier(10, anchors))
	assert.InDelta(t, 0.75, PriorityMultiplier(3, anchors), 0.0001)
}

func TestPriorityMultiplier_ClampsOutsideRange(t *testing.T) {
	anchors := DefaultPriorityAnchors()
	assert.Equal(t, 0.5, PriorityMultiplier(0, anchors))
	assert.Equal(t, 2.0, PriorityMultiplier(20, anchors))
}
