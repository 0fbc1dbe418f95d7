// =============================================================================
// 📦 ORBIT 网关子系统配置
// =============================================================================
// Adds gateway-specific sections alongside the existing
// Server/Redis/Database/Qdrant/LLM/Log/Telemetry sections: adapters, the
// template library, quota, throttle, circuit breaker and executor tuning.
// Unknown keys in the adapter config map are intentionally permissive —
// per-adapter free-form settings are resolved by the adapter's own
// constructor, not by this loader.
// =============================================================================
package config

import "time"

// GatewayConfig is the root of the gateway-specific configuration tree.
type GatewayConfig struct {
	Adapters        []AdapterConfig       `yaml:"adapters" env:"ADAPTERS"`
	TemplateLibrary TemplateLibraryConfig `yaml:"template_library" env:"TEMPLATE_LIBRARY"`
	Quota           QuotaConfigSection    `yaml:"quota" env:"QUOTA"`
	Throttle        ThrottleConfigSection `yaml:"throttle" env:"THROTTLE"`
	CircuitBreaker  CircuitBreakerConfig  `yaml:"circuit_breaker" env:"CIRCUIT_BREAKER"`
	Executor        ExecutorConfigSection `yaml:"executor" env:"EXECUTOR"`
	DuckDB          DuckDBConfigSection   `yaml:"duckdb" env:"DUCKDB"`
}

// DuckDBConfigSection locates the DuckDB database the "duckdb" intent
// backend queries, independent of the relational Database section (which
// configures the postgres/mysql/sqlite pool used by the generic "sql"
// backend and the rest of the application).
type DuckDBConfigSection struct {
	// DatabasePath to a DuckDB file; empty uses Database or an in-memory
	// database, per datasource.SQLConfig.ResolveDuckDBTarget.
	DatabasePath string `yaml:"database_path" env:"DATABASE_PATH"`
	Database     string `yaml:"database" env:"DATABASE"`
	MaxOpenConns int    `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns int    `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
}

// AdapterConfig mirrors gatewaytypes.AdapterDescriptor in YAML-friendly
// form; the loader decodes this, then convertAdapterConfigs in
// cmd/agentflow/gateway.go converts it to a gatewaytypes.AdapterDescriptor
// for the executor's instance cache.
type AdapterConfig struct {
	Name              string                    `yaml:"name" env:"NAME"`
	Type              string                    `yaml:"type" env:"TYPE"`
	Datasource        string                    `yaml:"datasource" env:"DATASOURCE"`
	Implementation    string                    `yaml:"implementation" env:"IMPLEMENTATION"`
	Enabled           bool                      `yaml:"enabled" env:"ENABLED"`
	Config            map[string]any            `yaml:"config" env:"CONFIG"`
	InferenceProvider string                    `yaml:"inference_provider,omitempty" env:"INFERENCE_PROVIDER"`
	EmbeddingProvider string                    `yaml:"embedding_provider,omitempty" env:"EMBEDDING_PROVIDER"`
	FaultTolerance    *FaultToleranceOverride   `yaml:"fault_tolerance,omitempty" env:"FAULT_TOLERANCE"`
}

// FaultToleranceOverride overrides the default circuit-breaker parameters
// for a single adapter.
type FaultToleranceOverride struct {
	FailureThreshold int           `yaml:"failure_threshold,omitempty" env:"FAILURE_THRESHOLD"`
	SuccessThreshold int           `yaml:"success_threshold,omitempty" env:"SUCCESS_THRESHOLD"`
	RecoveryTimeout  time.Duration `yaml:"recovery_timeout,omitempty" env:"RECOVERY_TIMEOUT"`
	OperationTimeout time.Duration `yaml:"operation_timeout,omitempty" env:"OPERATION_TIMEOUT"`
}

// TemplateLibraryConfig locates and tunes the intent template store.
type TemplateLibraryConfig struct {
	// Path to the YAML/JSON file holding the template records.
	Path string `yaml:"path" env:"PATH"`
	// Vector collection the templates are embedded into.
	Collection string `yaml:"collection" env:"COLLECTION"`
	// MaxTemplates is the number of nearest neighbours considered at match
	// time.
	MaxTemplates int `yaml:"max_templates" env:"MAX_TEMPLATES"`
	// ConfidenceThreshold is the minimum post-boost similarity required to
	// accept a match.
	ConfidenceThreshold float64 `yaml:"confidence_threshold" env:"CONFIDENCE_THRESHOLD"`
}

// QuotaConfigSection tunes the Redis-backed quota service.
type QuotaConfigSection struct {
	KeyPrefix          string        `yaml:"key_prefix" env:"KEY_PREFIX"`
	DefaultDailyLimit  int64         `yaml:"default_daily_limit" env:"DEFAULT_DAILY_LIMIT"`
	DefaultMonthlyLimit int64        `yaml:"default_monthly_limit" env:"DEFAULT_MONTHLY_LIMIT"`
	ConfigCacheTTL     time.Duration `yaml:"config_cache_ttl" env:"CONFIG_CACHE_TTL"`
}

// ThrottleConfigSection describes the delay-curve middleware. The server
// reads only ExcludedPaths from it; the curve itself (threshold, delays,
// curve shape, priority anchors) is always throttle.DefaultCurveConfig(),
// whatever the other fields hold.
type ThrottleConfigSection struct {
	ThresholdPercent float64          `yaml:"threshold_percent" env:"THRESHOLD_PERCENT"`
	MinDelayMs       int              `yaml:"min_delay_ms" env:"MIN_DELAY_MS"`
	MaxDelayMs       int              `yaml:"max_delay_ms" env:"MAX_DELAY_MS"`
	Curve            string           `yaml:"curve" env:"CURVE"` // linear|exponential
	PriorityAnchors  map[int]float64  `yaml:"priority_anchors" env:"PRIORITY_ANCHORS"`
	ExcludedPaths    []string         `yaml:"excluded_paths" env:"EXCLUDED_PATHS"`
}

// CircuitBreakerConfig holds the process-wide default breaker parameters;
// per-adapter AdapterConfig.FaultTolerance overrides these.
type CircuitBreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold" env:"FAILURE_THRESHOLD"`
	SuccessThreshold int           `yaml:"success_threshold" env:"SUCCESS_THRESHOLD"`
	RecoveryTimeout  time.Duration `yaml:"recovery_timeout" env:"RECOVERY_TIMEOUT"`
	OperationTimeout time.Duration `yaml:"operation_timeout" env:"OPERATION_TIMEOUT"`
	MaxWorkers       int           `yaml:"max_workers" env:"MAX_WORKERS"`
	MetricsWindow    int           `yaml:"metrics_window" env:"METRICS_WINDOW"`
}

// ExecutorConfigSection tunes the parallel adapter fan-out.
type ExecutorConfigSection struct {
	Strategy              string        `yaml:"strategy" env:"STRATEGY"` // all|first_success|best_effort
	MaxConcurrentAdapters int           `yaml:"max_concurrent_adapters" env:"MAX_CONCURRENT_ADAPTERS"`
	ExecutionTimeout      time.Duration `yaml:"execution_timeout" env:"EXECUTION_TIMEOUT"`
}

// DefaultGatewayConfig returns the gateway section's defaults.
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		Adapters: nil,
		TemplateLibrary: TemplateLibraryConfig{
			Path:                "templates.yaml",
			Collection:          "intent_templates",
			MaxTemplates:        5,
			ConfidenceThreshold: 0.75,
		},
		Quota: QuotaConfigSection{
			KeyPrefix:           "orbit:quota:",
			DefaultDailyLimit:   0,
			DefaultMonthlyLimit: 0,
			ConfigCacheTTL:      5 * time.Minute,
		},
		Throttle: ThrottleConfigSection{
			ThresholdPercent: 0.70,
			MinDelayMs:       100,
			MaxDelayMs:       5000,
			Curve:            "linear",
			PriorityAnchors:  map[int]float64{1: 0.5, 5: 1.0, 10: 2.0},
			ExcludedPaths:    []string{"/health", "/health/ready", "/health/adapters", "/health/system", "/metrics"},
		},
		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			RecoveryTimeout:  30 * time.Second,
			OperationTimeout: 10 * time.Second,
			MaxWorkers:       10,
			MetricsWindow:    100,
		},
		Executor: ExecutorConfigSection{
			Strategy:              "all",
			MaxConcurrentAdapters: 8,
			ExecutionTimeout:      20 * time.Second,
		},
		DuckDB: DuckDBConfigSection{
			MaxOpenConns: 4,
			MaxIdleConns: 2,
		},
	}
}
