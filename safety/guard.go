// Package safety defines the gateway's boundary with the moderation/policy
// layer. ORBIT does not implement content moderation itself; it delegates
// to a Guard collaborator before fanning a query out to adapters.
package safety

import (
	"context"
	"strings"

	"github.com/orbit-gateway/orbit/types"
)

// Verdict is the outcome of checking one request.
type Verdict struct {
	Allowed bool
	Reason  string
}

// Guard inspects a chat request's messages before retrieval and generation
// proceed.
type Guard interface {
	Check(ctx context.Context, messages []types.Message) (Verdict, error)
}

// AllowAll is a no-op Guard: every request passes. Used when no moderation
// backend is configured.
type AllowAll struct{}

// Check implements Guard.
func (AllowAll) Check(ctx context.Context, messages []types.Message) (Verdict, error) {
	return Verdict{Allowed: true}, nil
}

// DenylistGuard rejects any message whose content contains one of a
// configured set of blocked phrases, a reference implementation for local
// development and tests; production deployments wire a real moderation
// service behind Guard.
type DenylistGuard struct {
	blocked []string
}

// NewDenylistGuard constructs a DenylistGuard over phrases, matched
// case-insensitively.
func NewDenylistGuard(phrases []string) *DenylistGuard {
	lowered := make([]string, len(phrases))
	for i, p := range phrases {
		lowered[i] = strings.ToLower(p)
	}
	return &DenylistGuard{blocked: lowered}
}

// Check implements Guard.
func (g *DenylistGuard) Check(ctx context.Context, messages []types.Message) (Verdict, error) {
	for _, m := range messages {
		lower := strings.ToLower(m.Content)
		for _, phrase := range g.blocked {
			if strings.Contains(lower, phrase) {
				return Verdict{Allowed: false, Reason: "message contains a blocked phrase"}, nil
			}
		}
	}
	return Verdict{Allowed: true}, nil
}
