// Package throttle implements pre-adapter delay shaping based on quota
// usage, priority-weighted curves, and 429 enforcement. Mirrors
// llm/budget.TokenBudgetManager's threshold/alert shape, but Redis-backed
// via the quota package rather than in-memory atomics.
package throttle

import "math"

// Curve selects the shape of the base delay function.
type Curve string

// Curve values.
const (
	CurveLinear      Curve = "linear"
	CurveExponential Curve = "exponential"
)

// PriorityAnchor is one (priority, multiplier) point on the piecewise-linear
// interpolation curve.
type PriorityAnchor struct {
	Priority   int
	Multiplier float64
}

// DefaultPriorityAnchors returns the standard anchors: 1→0.5, 5→1.0, 10→2.0.
func DefaultPriorityAnchors() []PriorityAnchor {
	return []PriorityAnchor{
		{Priority: 1, Multiplier: 0.5},
		{Priority: 5, Multiplier: 1.0},
		{Priority: 10, Multiplier: 2.0},
	}
}

// UsageFraction computes max(daily_used/daily_limit, monthly_used/monthly_limit),
// treating a zero/absent limit as unlimited (contribution 0).
func UsageFraction(dailyUsed, dailyLimit, monthlyUsed, monthlyLimit int64) float64 {
	var daily, monthly float64
	if dailyLimit > 0 {
		daily = float64(dailyUsed) / float64(dailyLimit)
	}
	if monthlyLimit > 0 {
		monthly = float64(monthlyUsed) / float64(monthlyLimit)
	}
	if daily > monthly {
		return daily
	}
	return monthly
}

// PriorityMultiplier interpolates piecewise-linearly between anchors for the
// given priority, clamping to the first/last anchor outside their range.
func PriorityMultiplier(priority int, anchors []PriorityAnchor) float64 {
	if len(anchors) == 0 {
		anchors = DefaultPriorityAnchors()
	}
	p := float64(priority)
	if p <= float64(anchors[0].Priority) {
		return anchors[0].Multiplier
	}
	last := anchors[len(anchors)-1]
	if p >= float64(last.Priority) {
		return last.Multiplier
	}
	for i := 0; i < len(anchors)-1; i++ {
		a, b := anchors[i], anchors[i+1]
		if p >= float64(a.Priority) && p <= float64(b.Priority) {
			span := float64(b.Priority - a.Priority)
			if span == 0 {
				return a.Multiplier
			}
			t := (p - float64(a.Priority)) / span
			return a.Multiplier + t*(b.Multiplier-a.Multiplier)
		}
	}
	return last.Multiplier
}

// CurveConfig governs ComputeDelay.
type CurveConfig struct {
	ThresholdPercent float64 // T, default 0.70
	MinDelayMs       float64 // m
	MaxDelayMs       float64 // M
	Curve            Curve
	PriorityAnchors  []PriorityAnchor
}

// DefaultCurveConfig returns the standard delay curve: 70% usage threshold,
// 100ms-5000ms linear ramp.
func DefaultCurveConfig() CurveConfig {
	return CurveConfig{
		ThresholdPercent: 0.70,
		MinDelayMs:       100,
		MaxDelayMs:       5000,
		Curve:            CurveLinear,
		PriorityAnchors:  DefaultPriorityAnchors(),
	}
}

// ComputeDelay applies the configured delay curve. usage at or below the
// threshold yields zero delay. The result is rounded to an integer
// millisecond and capped at MaxDelayMs.
func ComputeDelay(usage float64, priority int, cfg CurveConfig) int64 {
	if cfg.ThresholdPercent <= 0 {
		cfg = DefaultCurveConfig()
	}
	if usage <= cfg.ThresholdPercent {
		return 0
	}

	span := 1 - cfg.ThresholdPercent
	var x float64
	if span > 0 {
		x = (usage - cfg.ThresholdPercent) / span
	} else {
		x = 1
	}
	x = clamp01(x)

	var base float64
	switch cfg.Curve {
	case CurveExponential:
		base = cfg.MinDelayMs + (cfg.MaxDelayMs-cfg.MinDelayMs)*x*x
	default:
		base = cfg.MinDelayMs + (cfg.MaxDelayMs-cfg.MinDelayMs)*x
	}

	mult := PriorityMultiplier(priority, cfg.PriorityAnchors)
	delay := base * mult
	if delay > cfg.MaxDelayMs {
		delay = cfg.MaxDelayMs
	}
	return int64(math.Round(delay))
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
