// Package quota implements atomic Redis-backed per-key daily/monthly
// counters with scripted increments and fail-open degradation. Mirrors
// internal/cache.Manager's go-redis/v9 wrapper, with the counter
// arithmetic run as Lua EVAL scripts for atomicity.
package quota

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/orbit-gateway/orbit/gatewaytypes"
)

// incrementScript atomically bumps the daily and monthly counters and the
// last-request timestamp under one Redis round trip, setting each
// counter's TTL only on its first increment of the period. Ported verbatim
// in shape from quota_service.py's _QUOTA_INCREMENT_SCRIPT.
var incrementScript = redis.NewScript(`
local daily_key = KEYS[1]
local monthly_key = KEYS[2]
local last_request_key = KEYS[3]
local daily_ttl = tonumber(ARGV[1])
local monthly_ttl = tonumber(ARGV[2])
local timestamp = tonumber(ARGV[3])

local daily_count = redis.call('INCR', daily_key)
if daily_count == 1 then
    redis.call('EXPIRE', daily_key, daily_ttl)
end
local daily_ttl_remaining = redis.call('TTL', daily_key)

local monthly_count = redis.call('INCR', monthly_key)
if monthly_count == 1 then
    redis.call('EXPIRE', monthly_key, monthly_ttl)
end
local monthly_ttl_remaining = redis.call('TTL', monthly_key)

redis.call('SET', last_request_key, timestamp, 'EX', monthly_ttl)

return {daily_count, monthly_count, daily_ttl_remaining, monthly_ttl_remaining}
`)

// getScript is the read-only counterpart, mirroring _QUOTA_GET_SCRIPT: it
// returns current counts/TTLs/last-request without mutating state.
var getScript = redis.NewScript(`
local daily_key = KEYS[1]
local monthly_key = KEYS[2]
local last_request_key = KEYS[3]

local daily_count = redis.call('GET', daily_key)
local monthly_count = redis.call('GET', monthly_key)
local daily_ttl = redis.call('TTL', daily_key)
local monthly_ttl = redis.call('TTL', monthly_key)
local last_request = redis.call('GET', last_request_key)

return {daily_count or 0, monthly_count or 0, daily_ttl, monthly_ttl, last_request or 0}
`)

const (
	dailyTTLBuffer   = 24 * time.Hour
	monthlyTTLBuffer = 5 * 24 * time.Hour
)

// IncrementResult is the four-tuple every increment_and_get call returns.
type IncrementResult struct {
	DailyUsed            int64
	MonthlyUsed          int64
	DailyTTLRemaining    time.Duration
	MonthlyTTLRemaining  time.Duration
}

// ConfigStore resolves the persistent per-key quota configuration (limits,
// throttle priority). A real deployment backs this with a database table;
// tests and the reference implementation use an in-memory store.
type ConfigStore interface {
	GetQuotaConfig(ctx context.Context, key string) (gatewaytypes.QuotaConfig, error)
}

// Service is the quota tracking contract: atomic usage counters plus
// cached per-key configuration lookups.
type Service struct {
	rdb    *redis.Client
	store  ConfigStore
	logger *zap.Logger
	prefix string

	defaultDaily   int64
	defaultMonthly int64

	cacheMu  sync.RWMutex
	cache    map[string]cachedConfig
	cacheTTL time.Duration
}

type cachedConfig struct {
	config   gatewaytypes.QuotaConfig
	cachedAt time.Time
}

// Config configures a Service.
type Config struct {
	KeyPrefix      string
	DefaultDaily   int64
	DefaultMonthly int64
	ConfigCacheTTL time.Duration
}

// DefaultConfig returns the production defaults: 5-minute config cache,
// 10k/day and 100k/month limits.
func DefaultConfig() Config {
	return Config{
		KeyPrefix:      "quota:",
		DefaultDaily:   10000,
		DefaultMonthly: 100000,
		ConfigCacheTTL: 5 * time.Minute,
	}
}

// New constructs a Service. rdb may be nil to run in fully-disabled
// (always fail-open) mode.
func New(rdb *redis.Client, store ConfigStore, cfg Config, logger *zap.Logger) *Service {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "quota:"
	}
	if cfg.ConfigCacheTTL <= 0 {
		cfg.ConfigCacheTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		rdb:            rdb,
		store:          store,
		logger:         logger.With(zap.String("component", "quota")),
		prefix:         cfg.KeyPrefix,
		defaultDaily:   cfg.DefaultDaily,
		defaultMonthly: cfg.DefaultMonthly,
		cache:          make(map[string]cachedConfig),
		cacheTTL:       cfg.ConfigCacheTTL,
	}
}

func (s *Service) keys(key string) (daily, monthly, lastRequest string) {
	now := time.Now().UTC()
	daily = fmt.Sprintf("%s%s:daily:%s", s.prefix, key, now.Format("20060102"))
	monthly = fmt.Sprintf("%s%s:monthly:%s", s.prefix, key, now.Format("200601"))
	lastRequest = fmt.Sprintf("%s%s:last_request", s.prefix, key)
	return
}

func secondsToEndOfDay(buffer time.Duration) int64 {
	now := time.Now().UTC()
	endOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	return int64(endOfDay.Sub(now).Add(buffer).Seconds())
}

func secondsToEndOfMonth(buffer time.Duration) int64 {
	now := time.Now().UTC()
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	endOfMonth := firstOfMonth.AddDate(0, 1, 0)
	return int64(endOfMonth.Sub(now).Add(buffer).Seconds())
}

// GetQuotaConfig reads the persisted config with a ~5 minute local cache,
// falling back to process-wide defaults on store error or cache absence.
func (s *Service) GetQuotaConfig(ctx context.Context, key string) gatewaytypes.QuotaConfig {
	s.cacheMu.RLock()
	entry, ok := s.cache[key]
	s.cacheMu.RUnlock()
	if ok && time.Since(entry.cachedAt) < s.cacheTTL {
		return entry.config
	}

	defaults := gatewaytypes.QuotaConfig{
		DailyLimit:       s.defaultDaily,
		MonthlyLimit:     s.defaultMonthly,
		ThrottleEnabled:  true,
		ThrottlePriority: 5,
	}
	if s.store == nil {
		return defaults
	}

	cfg, err := s.store.GetQuotaConfig(ctx, key)
	if err != nil {
		s.logger.Warn("quota config lookup failed, using defaults", zap.String("key", key), zap.Error(err))
		return defaults
	}

	s.cacheMu.Lock()
	s.cache[key] = cachedConfig{config: cfg, cachedAt: time.Now()}
	s.cacheMu.Unlock()
	return cfg
}

// IncrementAndGet atomically bumps key's usage counters. Fail-open: any
// Redis error returns a zero result and nil error so callers treat the
// request as within quota.
func (s *Service) IncrementAndGet(ctx context.Context, key string) (IncrementResult, error) {
	if s.rdb == nil {
		return IncrementResult{}, nil
	}

	dailyKey, monthlyKey, lastReqKey := s.keys(key)
	dailyTTL := secondsToEndOfDay(dailyTTLBuffer)
	monthlyTTL := secondsToEndOfMonth(monthlyTTLBuffer)

	res, err := incrementScript.Run(ctx, s.rdb,
		[]string{dailyKey, monthlyKey, lastReqKey},
		dailyTTL, monthlyTTL, time.Now().Unix(),
	).Result()
	if err != nil {
		s.logger.Warn("quota increment failed, failing open", zap.String("key", key), zap.Error(err))
		return IncrementResult{}, nil
	}

	vals, ok := res.([]any)
	if !ok || len(vals) != 4 {
		s.logger.Warn("unexpected quota script result shape, failing open", zap.String("key", key))
		return IncrementResult{}, nil
	}

	return IncrementResult{
		DailyUsed:           toInt64(vals[0]),
		MonthlyUsed:         toInt64(vals[1]),
		DailyTTLRemaining:   time.Duration(toInt64(vals[2])) * time.Second,
		MonthlyTTLRemaining: time.Duration(toInt64(vals[3])) * time.Second,
	}, nil
}

// GetQuotaStatus is the read-only counterpart of IncrementAndGet, used by
// an admin/status endpoint without mutating counters.
func (s *Service) GetQuotaStatus(ctx context.Context, key string) (gatewaytypes.QuotaRecord, error) {
	cfg := s.GetQuotaConfig(ctx, key)
	record := gatewaytypes.QuotaRecord{Config: cfg}
	if s.rdb == nil {
		return record, nil
	}

	dailyKey, monthlyKey, lastReqKey := s.keys(key)
	res, err := getScript.Run(ctx, s.rdb, []string{dailyKey, monthlyKey, lastReqKey}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return record, nil
		}
		s.logger.Warn("quota status lookup failed, failing open", zap.String("key", key), zap.Error(err))
		return record, nil
	}

	vals, ok := res.([]any)
	if !ok || len(vals) != 5 {
		return record, nil
	}

	now := time.Now().UTC()
	record.DailyUsed = toInt64(vals[0])
	record.MonthlyUsed = toInt64(vals[1])
	record.DailyResetAt = now.Add(time.Duration(toInt64(vals[2])) * time.Second)
	record.MonthlyResetAt = now.Add(time.Duration(toInt64(vals[3])) * time.Second)
	if ts := toInt64(vals[4]); ts > 0 {
		record.LastRequestAt = time.Unix(ts, 0).UTC()
	}
	return record, nil
}

// Period names accepted by Reset.
const (
	PeriodDaily   = "daily"
	PeriodMonthly = "monthly"
	PeriodAll     = "all"
)

// Reset deletes the counters for key's given period.
func (s *Service) Reset(ctx context.Context, key, period string) error {
	if s.rdb == nil {
		return nil
	}
	dailyKey, monthlyKey, _ := s.keys(key)
	var targets []string
	switch period {
	case PeriodDaily:
		targets = []string{dailyKey}
	case PeriodMonthly:
		targets = []string{monthlyKey}
	case PeriodAll:
		targets = []string{dailyKey, monthlyKey}
	default:
		return fmt.Errorf("quota: unknown reset period %q", period)
	}
	return s.rdb.Del(ctx, targets...).Err()
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case string:
		var out int64
		fmt.Sscanf(n, "%d", &out)
		return out
	default:
		return 0
	}
}
