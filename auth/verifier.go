// Package auth defines the gateway's boundary with the session/credential
// service. ORBIT does not own user or API-key storage; it authenticates
// every request through a Verifier collaborator and carries forward
// whatever identity the result names.
package auth

import (
	"context"
	"errors"
)

// ErrInvalidCredential is returned by a Verifier when the presented
// credential does not resolve to a principal.
var ErrInvalidCredential = errors.New("auth: invalid credential")

// Principal is the caller identity resolved from a request's credential.
type Principal struct {
	ID       string
	TenantID string
	Scopes   []string
}

// Verifier authenticates one request credential. Implementations typically
// wrap an API-key store or an external session service.
type Verifier interface {
	Verify(ctx context.Context, apiKey string) (Principal, error)
}

// StaticVerifier is a reference Verifier backed by a fixed key→Principal
// map, useful for local development and tests; production deployments
// supply their own Verifier backed by the real credential store.
type StaticVerifier struct {
	keys map[string]Principal
}

// NewStaticVerifier constructs a StaticVerifier from a pre-resolved key map.
func NewStaticVerifier(keys map[string]Principal) *StaticVerifier {
	return &StaticVerifier{keys: keys}
}

// Verify implements Verifier.
func (v *StaticVerifier) Verify(ctx context.Context, apiKey string) (Principal, error) {
	p, ok := v.keys[apiKey]
	if !ok {
		return Principal{}, ErrInvalidCredential
	}
	return p, nil
}
