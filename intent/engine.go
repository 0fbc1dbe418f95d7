package intent

import (
	"context"

	"github.com/orbit-gateway/orbit/gatewaytypes"
	"github.com/orbit-gateway/orbit/llm"
)

// Engine ties together the stages of intent retrieval: match, extract,
// validate, execute, shape. It implements executor.Adapter so it can be
// registered and run like any other adapter.
type Engine struct {
	matcher   *Matcher
	extractor *Extractor
	backends  *Registry
}

// NewEngine constructs an Engine. provider may be nil to skip LLM
// parameter extraction (see NewExtractor).
func NewEngine(matcher *Matcher, provider llm.Provider, backends *Registry) *Engine {
	return &Engine{
		matcher:   matcher,
		extractor: NewExtractor(provider),
		backends:  backends,
	}
}

// Retrieve implements executor.Adapter. It never returns an error for a
// request-level failure (no match, validation failure, backend error) —
// those are all carried as a single ContextItem instead, so a failed
// intent lookup doesn't take down the rest of an executor fan-out.
func (e *Engine) Retrieve(ctx context.Context, query string, options map[string]any) ([]gatewaytypes.ContextItem, error) {
	match, err := e.matcher.Match(ctx, query)
	if err != nil {
		return nil, err
	}
	if !match.Accepted {
		return []gatewaytypes.ContextItem{noMatchItem()}, nil
	}

	tpl := match.Template

	params, err := e.extractor.Extract(ctx, query, tpl)
	if err != nil {
		return nil, err
	}

	if verr := Validate(tpl, params); verr != nil {
		return []gatewaytypes.ContextItem{shapeFailure(tpl, verr.Error())}, nil
	}

	backend, err := e.backends.Get(tpl.Backend)
	if err != nil {
		return []gatewaytypes.ContextItem{shapeFailure(tpl, err.Error())}, nil
	}

	rows, err := backend.Execute(ctx, tpl, params)
	if err != nil {
		return []gatewaytypes.ContextItem{shapeFailure(tpl, TruncateMessage(err.Error(), 500))}, nil
	}

	item := shapeResult(tpl, params, rows, match.Similarity)
	return []gatewaytypes.ContextItem{item}, nil
}
