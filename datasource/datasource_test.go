package datasource

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	kind     string
	pingErr  error
	closed   bool
}

func (f *fakeSource) Kind() string { return f.kind }
func (f *fakeSource) Ping(ctx context.Context) error { return f.pingErr }
func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

func TestRegistry_GetMissing(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("missing")
	require.Error(t, err)
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	fs := &fakeSource{kind: "sql"}
	r.Register("primary", fs)

	got, err := r.Get("primary")
	require.NoError(t, err)
	assert.Equal(t, "sql", got.Kind())
}

func TestRegistry_ReregisterClosesPrior(t *testing.T) {
	r := NewRegistry()
	first := &fakeSource{kind: "sql"}
	second := &fakeSource{kind: "sql"}
	r.Register("primary", first)
	r.Register("primary", second)
	assert.True(t, first.closed)
	assert.False(t, second.closed)
}

func TestRegistry_HealthCheck(t *testing.T) {
	r := NewRegistry()
	r.Register("ok", &fakeSource{kind: "sql"})
	r.Register("bad", &fakeSource{kind: "mongo", pingErr: errors.New("down")})

	results := r.HealthCheck(context.Background())
	require.NoError(t, results["ok"])
	require.Error(t, results["bad"])
}

func TestRegistry_CloseClearsEntries(t *testing.T) {
	r := NewRegistry()
	fs := &fakeSource{kind: "sql"}
	r.Register("primary", fs)
	require.NoError(t, r.Close())
	assert.True(t, fs.closed)
	assert.Empty(t, r.Names())
}
