// Package gatewaytypes holds the data model shared by every gateway
// subsystem: adapters, context items, templates, circuit-breaker state, and
// quota records. Keeping these in one leaf package avoids import cycles
// between breaker, executor, intent, quota, and orchestrator.
package gatewaytypes

import "time"

// AdapterType enumerates the kinds of adapter a descriptor can describe.
type AdapterType string

// AdapterType values.
const (
	AdapterTypeIntent    AdapterType = "intent"
	AdapterTypeRetriever AdapterType = "retriever"
)

// AdapterDescriptor is the configuration record for one adapter: what
// backend it talks to, which concrete implementation handles it, and the
// free-form settings that implementation needs. Descriptors are loaded at
// startup and replaced wholesale on hot-reload; they are never mutated
// in place.
type AdapterDescriptor struct {
	Name               string                 `json:"name" yaml:"name"`
	Type               AdapterType            `json:"type" yaml:"type"`
	Datasource         string                 `json:"datasource" yaml:"datasource"`
	Implementation     string                 `json:"implementation" yaml:"implementation"`
	Enabled            bool                   `json:"enabled" yaml:"enabled"`
	Config             map[string]any         `json:"config" yaml:"config"`
	InferenceProvider  string                 `json:"inference_provider,omitempty" yaml:"inference_provider,omitempty"`
	EmbeddingProvider  string                 `json:"embedding_provider,omitempty" yaml:"embedding_provider,omitempty"`
	FaultTolerance     *FaultToleranceConfig  `json:"fault_tolerance,omitempty" yaml:"fault_tolerance,omitempty"`
}

// FaultToleranceConfig overrides the default circuit-breaker parameters for
// one adapter.
type FaultToleranceConfig struct {
	FailureThreshold int           `json:"failure_threshold,omitempty" yaml:"failure_threshold,omitempty"`
	SuccessThreshold int           `json:"success_threshold,omitempty" yaml:"success_threshold,omitempty"`
	RecoveryTimeout  time.Duration `json:"recovery_timeout,omitempty" yaml:"recovery_timeout,omitempty"`
	OperationTimeout time.Duration `json:"operation_timeout,omitempty" yaml:"operation_timeout,omitempty"`
}

// ContentHash returns a stable hash of the descriptor's name and content,
// used to detect whether a cached adapter instance needs to be rebuilt on
// reload (see executor.InstanceCache).
func (d AdapterDescriptor) ContentHash() string {
	return contentHash(d)
}

// ContextItem is one unit of evidence returned by an adapter for use by the
// LLM. Confidence is monotone: higher means more relevant.
type ContextItem struct {
	Content      string         `json:"content"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Confidence   float64        `json:"confidence"`
	RawDocument  string         `json:"raw_document,omitempty"`
	SourceAdapter string        `json:"source_adapter,omitempty"`
	SourceURL    string         `json:"source_url,omitempty"`
	ChunkID      string         `json:"chunk_id,omitempty"`
}

// ClampConfidence enforces the confidence ∈ [0,1] invariant.
func (c *ContextItem) ClampConfidence() {
	if c.Confidence < 0 {
		c.Confidence = 0
	}
	if c.Confidence > 1 {
		c.Confidence = 1
	}
}

// ResultFormat is how a shaped intent result should be rendered.
type ResultFormat string

// ResultFormat values.
const (
	ResultFormatList    ResultFormat = "list"
	ResultFormatTable   ResultFormat = "table"
	ResultFormatSummary ResultFormat = "summary"
)

// ParameterLocation is where an HTTP/GraphQL parameter value is placed.
type ParameterLocation string

// ParameterLocation values.
const (
	LocationPath   ParameterLocation = "path"
	LocationQuery  ParameterLocation = "query"
	LocationHeader ParameterLocation = "header"
	LocationBody   ParameterLocation = "body"
)

// ParameterType is the declared type of a template parameter.
type ParameterType string

// ParameterType values.
const (
	ParamInteger ParameterType = "integer"
	ParamNumber  ParameterType = "number"
	ParamString  ParameterType = "string"
	ParamBoolean ParameterType = "boolean"
	ParamDate    ParameterType = "date"
	ParamArray   ParameterType = "array"
)

// ValidationRules bounds an extracted parameter value beyond its type.
type ValidationRules struct {
	Min     *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max     *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Pattern string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Length  *int     `json:"length,omitempty" yaml:"length,omitempty"`
}

// ParameterSpec declares one parameter a template's operation needs.
type ParameterSpec struct {
	Name            string           `json:"name" yaml:"name"`
	Type            ParameterType    `json:"type" yaml:"type"`
	Required        bool             `json:"required" yaml:"required"`
	Default         any              `json:"default,omitempty" yaml:"default,omitempty"`
	Description     string           `json:"description,omitempty" yaml:"description,omitempty"`
	AllowedValues   []string         `json:"allowed_values,omitempty" yaml:"allowed_values,omitempty"`
	Example         string           `json:"example,omitempty" yaml:"example,omitempty"`
	Location        ParameterLocation `json:"location,omitempty" yaml:"location,omitempty"`
	GraphQLType     string           `json:"graphql_type,omitempty" yaml:"graphql_type,omitempty"`
	ValidationRules *ValidationRules `json:"validation_rules,omitempty" yaml:"validation_rules,omitempty"`
}

// SemanticTags carries the domain-reranking hints for a template: the
// primary verb/entity the query is expected to name.
type SemanticTags struct {
	Action          string   `json:"action,omitempty" yaml:"action,omitempty"`
	PrimaryEntity   string   `json:"primary_entity,omitempty" yaml:"primary_entity,omitempty"`
	SecondaryEntity string   `json:"secondary_entity,omitempty" yaml:"secondary_entity,omitempty"`
	Qualifiers      []string `json:"qualifiers,omitempty" yaml:"qualifiers,omitempty"`
	Synonyms        []string `json:"synonyms,omitempty" yaml:"synonyms,omitempty"`
}

// Template is a declarative NL → backend-operation mapping. Immutable once
// indexed under Id; re-indexing the same id replaces the embedding.
type Template struct {
	ID                string          `json:"id" yaml:"id"`
	Description       string          `json:"description" yaml:"description"`
	NLExamples        []string        `json:"nl_examples" yaml:"nl_examples"`
	Tags              []string        `json:"tags,omitempty" yaml:"tags,omitempty"`
	SemanticTags      SemanticTags    `json:"semantic_tags" yaml:"semantic_tags"`
	Parameters        []ParameterSpec `json:"parameters" yaml:"parameters"`
	Backend           string          `json:"backend" yaml:"backend"` // sql|duckdb|mongo|http|graphql
	OperationTemplate string          `json:"operation_template" yaml:"operation_template"`
	ResultFormat      ResultFormat    `json:"result_format" yaml:"result_format"`
	DisplayFields     []string        `json:"display_fields,omitempty" yaml:"display_fields,omitempty"`

	// HTTP/GraphQL-only fields.
	Endpoint       string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Method         string `json:"method,omitempty" yaml:"method,omitempty"`
	ResponsePath   string `json:"response_path,omitempty" yaml:"response_path,omitempty"`
	OperationName  string `json:"operation_name,omitempty" yaml:"operation_name,omitempty"`

	// Embedding, populated on index and round-tripped unchanged.
	EmbeddingText   string    `json:"-"`
	Embedding       []float32 `json:"-"`
}

// CircuitState is one of the three circuit-breaker states.
type CircuitState string

// CircuitState values.
const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)

// CircuitMetrics is the rolling counters tracked per adapter circuit.
type CircuitMetrics struct {
	Total           int64         `json:"total"`
	Successful      int64         `json:"successful"`
	Failed          int64         `json:"failed"`
	Timeout         int64         `json:"timeout"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
}

// CircuitBreakerState is the externally-observable snapshot of one
// adapter's breaker.
type CircuitBreakerState struct {
	AdapterName          string         `json:"adapter_name"`
	State                CircuitState   `json:"state"`
	ConsecutiveFailures  int            `json:"consecutive_failures"`
	ConsecutiveSuccesses int            `json:"consecutive_successes"`
	LastFailureTime      time.Time      `json:"last_failure_time,omitempty"`
	LastSuccessTime      time.Time      `json:"last_success_time,omitempty"`
	StateChangeTime      time.Time      `json:"state_change_time"`
	Metrics              CircuitMetrics `json:"metrics"`
}

// QuotaConfig is the persistent, per-key quota configuration.
type QuotaConfig struct {
	DailyLimit      int64 `json:"daily_limit,omitempty"`
	MonthlyLimit    int64 `json:"monthly_limit,omitempty"`
	ThrottleEnabled bool  `json:"throttle_enabled"`
	ThrottlePriority int  `json:"throttle_priority"`
}

// QuotaRecord is the logical, composed view of a key's quota usage.
type QuotaRecord struct {
	DailyUsed      int64     `json:"daily_used"`
	MonthlyUsed    int64     `json:"monthly_used"`
	DailyResetAt   time.Time `json:"daily_reset_at"`
	MonthlyResetAt time.Time `json:"monthly_reset_at"`
	LastRequestAt  time.Time `json:"last_request_at"`
	Config         QuotaConfig `json:"config"`
}

// Chunk is one indexed unit of retrievable content.
type Chunk struct {
	ChunkID    string         `json:"chunk_id"`
	SourceURL  string         `json:"source_url"`
	Content    string         `json:"content"`
	TokenCount int            `json:"token_count"`
	Position   int            `json:"position"`
	Hierarchy  []string       `json:"hierarchy,omitempty"`
	Embedding  []float32      `json:"embedding,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// AdapterResult is the outcome of running one adapter within an executor
// fan-out. Exactly one of these is produced per requested adapter name.
type AdapterResult struct {
	AdapterName   string              `json:"adapter_name"`
	Success       bool                `json:"success"`
	Data          []ContextItem       `json:"data,omitempty"`
	Error         string              `json:"error,omitempty"`
	ExecutionTime time.Duration       `json:"execution_time"`
	Cancelled     bool                `json:"cancelled,omitempty"`
	TimedOut      bool                `json:"timed_out,omitempty"`
}
