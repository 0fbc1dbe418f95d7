// Package orchestrator implements the chat orchestrator: it checks a
// request against a safety guard, fans the latest user turn out across
// the configured retrieval adapters, assembles the merged context into a
// system prompt, and drives the LLM provider to produce either a single
// response or a token stream.
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/orbit-gateway/orbit/executor"
	"github.com/orbit-gateway/orbit/gatewaytypes"
	"github.com/orbit-gateway/orbit/llm"
	"github.com/orbit-gateway/orbit/safety"
	"github.com/orbit-gateway/orbit/types"
)

// ErrBlocked is returned when the safety guard rejects a request.
var ErrBlocked = errors.New("orchestrator: request blocked by safety guard")

// ErrEmptyMessages is returned when a request carries no messages to
// ground a query in.
var ErrEmptyMessages = errors.New("orchestrator: no messages in request")

// Request is one chat turn submitted to the orchestrator.
type Request struct {
	Model       string
	Messages    []types.Message
	Temperature float32
	MaxTokens   int
	Adapters    []gatewaytypes.AdapterDescriptor
	Options     map[string]any
}

// Response is the result of a synchronous Chat call.
type Response struct {
	Message types.Message
	Sources []gatewaytypes.ContextItem
	Usage   llm.ChatUsage
}

// Chunk is one unit of a streamed chat response.
type Chunk struct {
	Delta   types.Message
	Sources []gatewaytypes.ContextItem // populated only on the first chunk
	Done    bool
	Err     error
}

// Config tunes orchestrator behavior independent of any one request.
type Config struct {
	Executor executor.Config
}

// Orchestrator combines a safety guard, the adapter executor, and an LLM
// provider into one request/response cycle.
type Orchestrator struct {
	guard    safety.Guard
	executor *executor.Executor
	provider llm.Provider
	cfg      Config
	logger   *zap.Logger
}

// New constructs an Orchestrator. guard may be safety.AllowAll{} when no
// moderation backend is configured.
func New(guard safety.Guard, exec *executor.Executor, provider llm.Provider, cfg Config, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if guard == nil {
		guard = safety.AllowAll{}
	}
	return &Orchestrator{
		guard:    guard,
		executor: exec,
		provider: provider,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "orchestrator")),
	}
}

// lastUserQuery returns the content of the most recent user message, the
// text every adapter in the fan-out is queried with.
func lastUserQuery(messages []types.Message) (string, error) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == types.RoleUser {
			return messages[i].Content, nil
		}
	}
	return "", ErrEmptyMessages
}

// retrieve runs the safety check and the adapter fan-out shared by Chat
// and Stream, returning the merged context to ground the LLM call in.
func (o *Orchestrator) retrieve(ctx context.Context, req Request) ([]gatewaytypes.ContextItem, error) {
	if len(req.Messages) == 0 {
		return nil, ErrEmptyMessages
	}

	verdict, err := o.guard.Check(ctx, req.Messages)
	if err != nil {
		return nil, fmt.Errorf("safety check: %w", err)
	}
	if !verdict.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrBlocked, verdict.Reason)
	}

	if len(req.Adapters) == 0 {
		return nil, nil
	}

	query, err := lastUserQuery(req.Messages)
	if err != nil {
		return nil, err
	}

	cfg := o.cfg.Executor
	if cfg.Strategy == "" {
		cfg = executor.DefaultConfig()
	}

	results := o.executor.Execute(ctx, query, req.Adapters, req.Options, cfg)
	return mergeResults(results), nil
}

// withSystemPrompt prepends a system message carrying the merged context
// ahead of the caller's own messages.
func withSystemPrompt(messages []types.Message, merged []gatewaytypes.ContextItem) []types.Message {
	out := make([]types.Message, 0, len(messages)+1)
	out = append(out, types.NewMessage(types.RoleSystem, buildSystemPrompt(merged)))
	out = append(out, messages...)
	return out
}

func (o *Orchestrator) chatRequest(req Request, merged []gatewaytypes.ContextItem) *llm.ChatRequest {
	return &llm.ChatRequest{
		Model:       req.Model,
		Messages:    withSystemPrompt(req.Messages, merged),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
}

// Chat answers one request synchronously.
func (o *Orchestrator) Chat(ctx context.Context, req Request) (*Response, error) {
	merged, err := o.retrieve(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := o.provider.Completion(ctx, o.chatRequest(req, merged))
	if err != nil {
		return nil, fmt.Errorf("completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("orchestrator: provider returned no choices")
	}

	return &Response{
		Message: resp.Choices[0].Message,
		Sources: merged,
		Usage:   resp.Usage,
	}, nil
}

// Stream answers one request as a channel of incremental chunks. The
// returned channel is closed once the upstream stream ends, an upstream
// error has been forwarded, or the context is cancelled. A chunk has Done
// set only when its upstream chunk carries a finish reason; no extra Done
// chunk is sent when the stream ends without one.
func (o *Orchestrator) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	merged, err := o.retrieve(ctx, req)
	if err != nil {
		return nil, err
	}

	upstream, err := o.provider.Stream(ctx, o.chatRequest(req, merged))
	if err != nil {
		return nil, fmt.Errorf("stream: %w", err)
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		first := true
		for {
			select {
			case <-ctx.Done():
				return
			case sc, ok := <-upstream:
				if !ok {
					return
				}
				chunk := Chunk{Delta: sc.Delta, Done: sc.FinishReason != ""}
				if first {
					chunk.Sources = merged
					first = false
				}
				if sc.Err != nil {
					chunk.Err = sc.Err
				}
				select {
				case out <- chunk:
				case <-ctx.Done():
					return
				}
				if chunk.Err != nil {
					return
				}
			}
		}
	}()
	return out, nil
}
