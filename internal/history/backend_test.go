package history

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"learnapp/internal/observability"
	contextutils "learnapp/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backendContract runs the behaviour every Backend must share. newBackend
// receives a quota of 64 bytes.
func backendContract(t *testing.T, newBackend func(t *testing.T, quota int64) Backend) {
	ctx := context.Background()

	t.Run("get set delete", func(t *testing.T) {
		b := newBackend(t, 0)
		_, ok, err := b.Get(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, b.Set(ctx, "k1", "v1"))
		require.NoError(t, b.Set(ctx, "k1", "v2"))
		require.NoError(t, b.Set(ctx, "k0", "v0"))

		v, ok, err := b.Get(ctx, "k1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "v2", v)

		keys, err := b.Keys(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"k0", "k1"}, keys)

		require.NoError(t, b.Delete(ctx, "k1"))
		require.NoError(t, b.Delete(ctx, "never-set"))
		_, ok, err = b.Get(ctx, "k1")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("quota", func(t *testing.T) {
		b := newBackend(t, 64)
		require.NoError(t, b.Set(ctx, "a", strings.Repeat("x", 40)))

		err := b.Set(ctx, "b", strings.Repeat("y", 30))
		require.Error(t, err)
		assert.True(t, contextutils.IsQuota(err))

		// Overwriting a key only counts its new size.
		require.NoError(t, b.Set(ctx, "a", strings.Repeat("z", 60)))
		_, ok, err := b.Get(ctx, "b")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestMemoryBackend(t *testing.T) {
	backendContract(t, func(t *testing.T, quota int64) Backend {
		return NewMemoryBackend(quota)
	})
}

func TestSQLiteBackend(t *testing.T) {
	backendContract(t, func(t *testing.T, quota int64) Backend {
		path := filepath.Join(t.TempDir(), "history.db")
		b, err := OpenBackend(context.Background(), "sqlite://"+path, quota, observability.NewNopLogger())
		require.NoError(t, err)
		t.Cleanup(func() { _ = b.Close() })
		return b
	})
}

// Set LEARNAPP_TEST_REDIS to a redis:// URL to run against a live server.
func TestRedisBackend(t *testing.T) {
	dsn := os.Getenv("LEARNAPP_TEST_REDIS")
	if dsn == "" {
		t.Skip("LEARNAPP_TEST_REDIS not set")
	}
	backendContract(t, func(t *testing.T, quota int64) Backend {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		prefix := "learnapp-test:" + strings.ReplaceAll(t.Name(), "/", ":") + ":"
		b, err := OpenBackend(context.Background(), dsn+sep+"prefix="+prefix, quota, observability.NewNopLogger())
		require.NoError(t, err)
		t.Cleanup(func() {
			keys, _ := b.Keys(context.Background())
			for _, k := range keys {
				_ = b.Delete(context.Background(), k)
			}
			_ = b.Close()
		})
		return b
	})
}

func TestOpenBackend(t *testing.T) {
	ctx := context.Background()
	logger := observability.NewNopLogger()

	b, err := OpenBackend(ctx, "memory://", 10, logger)
	require.NoError(t, err)
	assert.IsType(t, &MemoryBackend{}, b)

	b, err = OpenBackend(ctx, "", 10, logger)
	require.NoError(t, err)
	assert.IsType(t, &MemoryBackend{}, b)

	_, err = OpenBackend(ctx, "postgres://localhost/db", 10, logger)
	require.Error(t, err)
	assert.True(t, contextutils.IsValidation(err))

	_, err = OpenBackend(ctx, "redis://[::1", 10, logger)
	assert.Error(t, err)
}
