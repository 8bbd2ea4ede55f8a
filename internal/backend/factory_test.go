package backend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensedash/internal/log"
)

func TestCreateMemoryBackend(t *testing.T) {
	res, err := NewFactory(log.Discard()).CreateBackend(context.Background(), Config{Type: MemoryBackend})
	require.NoError(t, err)
	assert.Nil(t, res.Purger)
	assert.NoError(t, res.Ready(context.Background()))

	ctx := context.Background()
	a, b := res.Provider.Backend("a"), res.Provider.Backend("b")
	require.NoError(t, a.Set(ctx, "token", "x"))
	_, ok, err := b.Get(ctx, "token")
	require.NoError(t, err)
	assert.False(t, ok, "namespaces are isolated")
	assert.NoError(t, res.Cleanup())
}

func TestCreateSQLiteBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.db")
	cfg := ConfigFromAppConfig("sqlite", path)
	res, err := NewFactory(log.Discard()).CreateBackend(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Cleanup() })

	ctx := context.Background()
	require.NoError(t, res.Ready(ctx))
	require.NoError(t, res.Provider.Backend("browser-1").Set(ctx, "username", "alice"))

	require.NotNil(t, res.Purger)
	n, err := res.Purger.PurgeBefore(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestCreateBackendRejectsUnknownType(t *testing.T) {
	_, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: "sheets"})
	assert.ErrorContains(t, err, "invalid backend type")
}
