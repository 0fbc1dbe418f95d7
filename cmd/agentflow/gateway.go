package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/orbit-gateway/orbit/auth"
	"github.com/orbit-gateway/orbit/breaker"
	"github.com/orbit-gateway/orbit/config"
	"github.com/orbit-gateway/orbit/datasource"
	"github.com/orbit-gateway/orbit/embedclient"
	"github.com/orbit-gateway/orbit/executor"
	"github.com/orbit-gateway/orbit/gatewaytypes"
	"github.com/orbit-gateway/orbit/intent"
	"github.com/orbit-gateway/orbit/intent/template"
	"github.com/orbit-gateway/orbit/llm"
	llmcache "github.com/orbit-gateway/orbit/llm/cache"
	"github.com/orbit-gateway/orbit/llm/circuitbreaker"
	"github.com/orbit-gateway/orbit/llm/idempotency"
	"github.com/orbit-gateway/orbit/llm/providers"
	"github.com/orbit-gateway/orbit/llm/providers/openai"
	"github.com/orbit-gateway/orbit/llm/retry"
	"github.com/orbit-gateway/orbit/orchestrator"
	"github.com/orbit-gateway/orbit/quota"
	"github.com/orbit-gateway/orbit/retriever"
	"github.com/orbit-gateway/orbit/safety"
	"github.com/orbit-gateway/orbit/throttle"
	"github.com/orbit-gateway/orbit/vectorstore"
)

// Gateway bundles every component the ORBIT chat path needs, built once at
// startup from *config.Config and kept around for request handling and
// graceful shutdown.
type Gateway struct {
	Orchestrator *orchestrator.Orchestrator
	Verifier     auth.Verifier
	Quota        *quota.Service
	Throttle     *throttle.Middleware
	Datasources  *datasource.Registry
	Adapters     []gatewaytypes.AdapterDescriptor

	breakerRegistry *breaker.Registry
	instanceCache   *executor.InstanceCache
}

// buildGateway wires the full gateway subsystem from cfg. db may be nil
// when no relational datasource is configured; Postgres-backed adapters are
// then simply unavailable, not fatal to startup.
func buildGateway(cfg *config.Config, db *gorm.DB, logger *zap.Logger) (*Gateway, error) {
	gwLog := logger.With(zap.String("component", "gateway"))

	datasources := datasource.NewRegistry()
	if db != nil {
		sqlSource, err := datasource.NewSQLSource(cfg.Database.Driver, db, datasource.SQLConfig{Driver: cfg.Database.Driver}, logger)
		if err != nil {
			return nil, fmt.Errorf("gateway: build sql datasource: %w", err)
		}
		datasources.Register("default", sqlSource)
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		})
	}

	vectorStore := buildVectorStore(cfg, logger)
	embedder := buildEmbedder(cfg)
	llmProvider := buildLLMProvider(cfg, rdb, logger)

	templateStore := template.NewStore(vectorStore, embedder, cfg.Gateway.TemplateLibrary.Collection)
	if path := cfg.Gateway.TemplateLibrary.Path; path != "" {
		library, err := template.LoadLibrary(path)
		if err != nil {
			gwLog.Warn("template library not loaded, intent matching disabled", zap.Error(err))
		} else if err := templateStore.IndexAll(context.Background(), library); err != nil {
			return nil, fmt.Errorf("gateway: index template library: %w", err)
		}
	}

	matcher := intent.NewMatcher(templateStore, intent.MatcherConfig{
		MaxTemplates:        cfg.Gateway.TemplateLibrary.MaxTemplates,
		ConfidenceThreshold: cfg.Gateway.TemplateLibrary.ConfidenceThreshold,
		ActionVerbs:         intent.DefaultActionVerbs(),
	})
	backends := buildBackendRegistry(cfg, datasources, gwLog)
	intentEngine := intent.NewEngine(matcher, llmProvider, backends)

	adapters := convertAdapterConfigs(cfg.Gateway.Adapters)
	instanceCache := executor.NewInstanceCache(func(desc gatewaytypes.AdapterDescriptor) (executor.Adapter, error) {
		return buildAdapterInstance(desc, intentEngine, vectorStore, embedder)
	})

	breakerCfg := breaker.Config{
		FailureThreshold: cfg.Gateway.CircuitBreaker.FailureThreshold,
		SuccessThreshold: cfg.Gateway.CircuitBreaker.SuccessThreshold,
		RecoveryTimeout:  cfg.Gateway.CircuitBreaker.RecoveryTimeout,
		OperationTimeout: cfg.Gateway.CircuitBreaker.OperationTimeout,
	}
	breakerRegistry := breaker.NewRegistry(breakerCfg, logger)

	exec := executor.New(instanceCache, breakerRegistry, logger)
	execCfg := executor.Config{
		Strategy:              executor.Strategy(cfg.Gateway.Executor.Strategy),
		MaxConcurrentAdapters: cfg.Gateway.Executor.MaxConcurrentAdapters,
		ExecutionTimeout:      cfg.Gateway.Executor.ExecutionTimeout,
		OperationTimeout:      cfg.Gateway.CircuitBreaker.OperationTimeout,
	}

	guard := buildSafetyGuard(cfg)
	orch := orchestrator.New(guard, exec, llmProvider, orchestrator.Config{Executor: execCfg}, logger)

	quotaSvc, throttleMw := buildQuotaAndThrottle(cfg, rdb, logger)

	return &Gateway{
		Orchestrator:    orch,
		Verifier:        auth.NewStaticVerifier(nil),
		Quota:           quotaSvc,
		Throttle:        throttleMw,
		Datasources:     datasources,
		Adapters:        enabledOnly(adapters),
		breakerRegistry: breakerRegistry,
		instanceCache:   instanceCache,
	}, nil
}

func enabledOnly(descs []gatewaytypes.AdapterDescriptor) []gatewaytypes.AdapterDescriptor {
	out := make([]gatewaytypes.AdapterDescriptor, 0, len(descs))
	for _, d := range descs {
		if d.Enabled {
			out = append(out, d)
		}
	}
	return out
}

// convertAdapterConfigs maps the YAML-friendly config.AdapterConfig records
// onto gatewaytypes.AdapterDescriptor, the form the executor operates on.
func convertAdapterConfigs(configs []config.AdapterConfig) []gatewaytypes.AdapterDescriptor {
	out := make([]gatewaytypes.AdapterDescriptor, 0, len(configs))
	for _, c := range configs {
		desc := gatewaytypes.AdapterDescriptor{
			Name:              c.Name,
			Type:              gatewaytypes.AdapterType(c.Type),
			Datasource:        c.Datasource,
			Implementation:    c.Implementation,
			Enabled:           c.Enabled,
			Config:            c.Config,
			InferenceProvider: c.InferenceProvider,
			EmbeddingProvider: c.EmbeddingProvider,
		}
		if c.FaultTolerance != nil {
			desc.FaultTolerance = &gatewaytypes.FaultToleranceConfig{
				FailureThreshold: c.FaultTolerance.FailureThreshold,
				SuccessThreshold: c.FaultTolerance.SuccessThreshold,
				RecoveryTimeout:  c.FaultTolerance.RecoveryTimeout,
				OperationTimeout: c.FaultTolerance.OperationTimeout,
			}
		}
		out = append(out, desc)
	}
	return out
}

// buildAdapterInstance materializes one configured adapter. An "intent"
// adapter shares the one process-wide Engine (the template library is
// process-wide, not per-descriptor); a "retriever" adapter gets its own
// Retriever configured from desc.Config.
func buildAdapterInstance(desc gatewaytypes.AdapterDescriptor, intentEngine *intent.Engine, vectorStore vectorstore.Store, embedder embedclient.Provider) (executor.Adapter, error) {
	switch desc.Type {
	case gatewaytypes.AdapterTypeIntent:
		return intentEngine, nil
	case gatewaytypes.AdapterTypeRetriever:
		cfg := retriever.Config{}
		if v, ok := desc.Config["collection"].(string); ok {
			cfg.Collection = v
		}
		if v, ok := desc.Config["mode"].(string); ok {
			cfg.Mode = retriever.Mode(v)
		}
		if v, ok := desc.Config["top_k"].(int); ok {
			cfg.TopK = v
		}
		if v, ok := desc.Config["relevance_threshold"].(float64); ok {
			cfg.RelevanceThreshold = v
		}
		if v, ok := desc.Config["rerank"].(bool); ok {
			cfg.Rerank = v
		}
		return retriever.New(vectorStore, embedder, nil, cfg), nil
	default:
		return nil, fmt.Errorf("gateway: unknown adapter type %q for %q", desc.Type, desc.Name)
	}
}

// buildBackendRegistry wires the "sql" backend to the shared postgres/mysql/
// sqlite datasource and the "duckdb" backend to its own DuckDB connection,
// opened separately since DuckDB has no gorm dialector and is configured
// independently (cfg.Gateway.DuckDB, not cfg.Database).
func buildBackendRegistry(cfg *config.Config, datasources *datasource.Registry, logger *zap.Logger) *intent.Registry {
	backends := intent.NewRegistry()

	if ds, err := datasources.Get("default"); err == nil {
		if sqlSource, ok := ds.(*datasource.SQLSource); ok {
			backends.Register("sql", intent.NewSQLBackend(sqlSource))
		}
	} else {
		logger.Info("no default sql datasource configured, sql intent backend unavailable")
	}

	duckSource, err := datasource.NewDuckDBSource(datasource.SQLConfig{
		DatabasePath: cfg.Gateway.DuckDB.DatabasePath,
		Database:     cfg.Gateway.DuckDB.Database,
		MaxOpenConns: cfg.Gateway.DuckDB.MaxOpenConns,
		MaxIdleConns: cfg.Gateway.DuckDB.MaxIdleConns,
	}, logger)
	if err != nil {
		logger.Warn("duckdb datasource unavailable, duckdb intent backend disabled", zap.Error(err))
	} else {
		datasources.Register("duckdb", duckSource)
		backends.Register("duckdb", intent.NewDuckDBBackend(duckSource))
	}

	return backends
}

func buildVectorStore(cfg *config.Config, logger *zap.Logger) vectorstore.Store {
	if cfg.Qdrant.Host == "" {
		return vectorstore.NewInMemoryStore()
	}
	return vectorstore.NewQdrantStore(vectorstore.QdrantConfig{
		Host:       cfg.Qdrant.Host,
		Port:       cfg.Qdrant.Port,
		APIKey:     cfg.Qdrant.APIKey,
		AutoCreate: true,
	}, logger)
}

func buildEmbedder(cfg *config.Config) embedclient.Provider {
	return embedclient.NewHTTPProvider(embedclient.HTTPConfig{
		BaseURL:    cfg.LLM.BaseURL,
		APIKey:     cfg.LLM.APIKey,
		Model:      "text-embedding-3-small",
		Dimensions: 1536,
		Timeout:    cfg.LLM.Timeout,
	})
}

// buildLLMProvider wraps the OpenAI-compatible provider in the retry /
// idempotency / circuit-breaker decorator so a flaky upstream can't take the
// intent engine's LLM fallback or the orchestrator's completion path down
// with it, then in a prompt cache when Redis is available so repeated
// deterministic completions skip the upstream call entirely.
func buildLLMProvider(cfg *config.Config, rdb *redis.Client, logger *zap.Logger) llm.Provider {
	base := openai.NewOpenAIProvider(providers.OpenAIConfig{
		BaseProviderConfig: providers.BaseProviderConfig{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Timeout: cfg.LLM.Timeout,
		},
	}, logger)

	resilienceCfg := llm.DefaultResilientProviderConfig()
	var provider llm.Provider = llm.NewResilientProvider(
		base,
		retry.NewBackoffRetryer(resilienceCfg.RetryPolicy, logger),
		idempotency.NewMemoryManager(logger),
		circuitbreaker.NewCircuitBreaker(resilienceCfg.CircuitBreakerConfig, logger),
		resilienceCfg,
		logger,
	)

	if rdb != nil {
		promptCache := llmcache.NewMultiLevelCache(rdb, llmcache.DefaultCacheConfig(), logger)
		provider = llmcache.NewCachedProvider(provider, promptCache, logger)
	}
	return provider
}

func buildSafetyGuard(cfg *config.Config) safety.Guard {
	return safety.AllowAll{}
}

// buildQuotaAndThrottle wires the Redis-backed quota service and the
// throttle middleware together over the shared Redis client. Both stay nil
// when no Redis address is configured; the gateway still runs, simply
// without quota enforcement.
func buildQuotaAndThrottle(cfg *config.Config, rdb *redis.Client, logger *zap.Logger) (*quota.Service, *throttle.Middleware) {
	if rdb == nil {
		return nil, nil
	}

	quotaSvc := quota.New(rdb, staticQuotaStore{
		config: gatewaytypes.QuotaConfig{
			DailyLimit:      cfg.Gateway.Quota.DefaultDailyLimit,
			MonthlyLimit:    cfg.Gateway.Quota.DefaultMonthlyLimit,
			ThrottleEnabled: true,
		},
	}, quota.Config{
		KeyPrefix:      cfg.Gateway.Quota.KeyPrefix,
		DefaultDaily:   cfg.Gateway.Quota.DefaultDailyLimit,
		DefaultMonthly: cfg.Gateway.Quota.DefaultMonthlyLimit,
		ConfigCacheTTL: cfg.Gateway.Quota.ConfigCacheTTL,
	}, logger)

	throttleCfg := throttle.DefaultConfig()
	throttleCfg.ExcludedPaths = cfg.Gateway.Throttle.ExcludedPaths
	throttleMw := throttle.New(quotaSvc, throttleCfg, logger)

	return quotaSvc, throttleMw
}

// staticQuotaStore is the reference quota.ConfigStore: every key shares one
// process-wide default, since per-key overrides require a persistence
// layer out of scope here.
type staticQuotaStore struct {
	config gatewaytypes.QuotaConfig
}

func (s staticQuotaStore) GetQuotaConfig(ctx context.Context, key string) (gatewaytypes.QuotaConfig, error) {
	return s.config, nil
}
