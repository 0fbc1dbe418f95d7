package throttle

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/orbit-gateway/orbit/gatewaytypes"
	"github.com/orbit-gateway/orbit/quota"
)

// QuotaService is the subset of quota.Service the middleware needs,
// narrowed to an interface so tests can substitute a fake.
type QuotaService interface {
	GetQuotaConfig(ctx context.Context, key string) gatewaytypes.QuotaConfig
	IncrementAndGet(ctx context.Context, key string) (quota.IncrementResult, error)
}

// Sleeper abstracts time.Sleep so tests can assert on the delay without
// actually blocking.
type Sleeper func(time.Duration)

// Config governs the middleware's behavior.
type Config struct {
	CurveConfig   CurveConfig
	ExcludedPaths []string
	APIKeyHeader  string
	Sleep         Sleeper

	// BurstRPS/BurstSize gate admission ahead of the computed delay, using
	// golang.org/x/time/rate for token-bucket burst smoothing; 0 disables
	// the limiter.
	BurstRPS  float64
	BurstSize int
}

// DefaultConfig returns the production defaults: linear delay curve, the
// standard health/metrics paths excluded from enforcement.
func DefaultConfig() Config {
	return Config{
		CurveConfig:   DefaultCurveConfig(),
		ExcludedPaths: []string{"/health", "/healthz", "/ready", "/readyz", "/version", "/metrics"},
		APIKeyHeader:  "X-API-Key",
		Sleep:         time.Sleep,
	}
}

// Middleware wraps next with throttle enforcement, matching the
// func(http.Handler) http.Handler shape of the other HTTP middleware in
// cmd/agentflow/middleware.go.
type Middleware struct {
	quota  QuotaService
	cfg    Config
	logger *zap.Logger

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
}

// New constructs a throttle Middleware.
func New(q QuotaService, cfg Config, logger *zap.Logger) *Middleware {
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	if cfg.CurveConfig.ThresholdPercent <= 0 {
		cfg.CurveConfig = DefaultCurveConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Middleware{
		quota:    q,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "throttle")),
		limiters: make(map[string]*rate.Limiter),
	}
}

func (m *Middleware) excluded(path string) bool {
	for _, p := range m.cfg.ExcludedPaths {
		if p == path {
			return true
		}
	}
	return false
}

func (m *Middleware) limiterFor(key string) *rate.Limiter {
	m.limiterMu.Lock()
	defer m.limiterMu.Unlock()
	l, ok := m.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Limit(m.cfg.BurstRPS), m.cfg.BurstSize)
		m.limiters[key] = l
	}
	return l
}

// Handler wraps next, enforcing throttling for every request carrying an
// API credential on a non-excluded path.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.excluded(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get(m.cfg.APIKeyHeader)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}

		if m.cfg.BurstRPS > 0 {
			_ = m.limiterFor(key).Wait(r.Context())
		}

		cfg := m.quota.GetQuotaConfig(r.Context(), key)
		if !cfg.ThrottleEnabled {
			next.ServeHTTP(w, r)
			return
		}

		result, err := m.quota.IncrementAndGet(r.Context(), key)
		if err != nil {
			// Fail open: quota errors never block traffic.
			m.logger.Warn("quota increment failed, allowing request", zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}

		usage := UsageFraction(result.DailyUsed, cfg.DailyLimit, result.MonthlyUsed, cfg.MonthlyLimit)
		delayMs := ComputeDelay(usage, cfg.ThrottlePriority, m.cfg.CurveConfig)
		if delayMs > 0 {
			m.cfg.Sleep(time.Duration(delayMs) * time.Millisecond)
		}

		dailyRemaining := remaining(cfg.DailyLimit, result.DailyUsed)
		monthlyRemaining := remaining(cfg.MonthlyLimit, result.MonthlyUsed)

		w.Header().Set("X-Throttle-Delay", strconv.FormatInt(delayMs, 10))
		w.Header().Set("X-Quota-Daily-Remaining", strconv.FormatInt(dailyRemaining, 10))
		w.Header().Set("X-Quota-Monthly-Remaining", strconv.FormatInt(monthlyRemaining, 10))
		w.Header().Set("X-Quota-Daily-Reset", strconv.FormatInt(time.Now().Add(result.DailyTTLRemaining).Unix(), 10))
		w.Header().Set("X-Quota-Monthly-Reset", strconv.FormatInt(time.Now().Add(result.MonthlyTTLRemaining).Unix(), 10))

		exceeded := ""
		switch {
		case cfg.DailyLimit > 0 && result.DailyUsed > cfg.DailyLimit:
			exceeded = "daily"
		case cfg.MonthlyLimit > 0 && result.MonthlyUsed > cfg.MonthlyLimit:
			exceeded = "monthly"
		}
		if exceeded != "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"detail":            "quota exceeded",
				"quota_exceeded":    exceeded,
				"daily_remaining":   dailyRemaining,
				"monthly_remaining": monthlyRemaining,
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func remaining(limit, used int64) int64 {
	if limit <= 0 {
		return -1
	}
	r := limit - used
	if r < 0 {
		return 0
	}
	return r
}
