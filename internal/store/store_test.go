package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// backends returns every adapter under test behind the shared contract.
func backends(t *testing.T) map[string]KV {
	t.Helper()

	fileKV, err := NewFileKV(filepath.Join(t.TempDir(), "records.json"))
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	redisKV := NewRedisKV(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "signalrun")

	return map[string]KV{
		"memory": NewMemoryKV(),
		"file":   fileKV,
		"redis":  redisKV,
	}
}

func TestKV_SetGetRoundTrip(t *testing.T) {
	ctx := context.Background()

	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := kv.Get(ctx, "perf:missing")
			require.NoError(t, err)
			require.False(t, ok)

			require.NoError(t, kv.Set(ctx, "perf:breakout", []byte(`{"wins":3}`)))

			value, ok, err := kv.Get(ctx, "perf:breakout")
			require.NoError(t, err)
			require.True(t, ok)
			require.JSONEq(t, `{"wins":3}`, string(value))

			// Overwrite wins.
			require.NoError(t, kv.Set(ctx, "perf:breakout", []byte(`{"wins":4}`)))
			value, _, err = kv.Get(ctx, "perf:breakout")
			require.NoError(t, err)
			require.JSONEq(t, `{"wins":4}`, string(value))
		})
	}
}

func TestKV_QueryByPrefix(t *testing.T) {
	ctx := context.Background()

	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, kv.Set(ctx, "pred:BTCUSD:a", []byte(`{"outcome":"PENDING"}`)))
			require.NoError(t, kv.Set(ctx, "pred:BTCUSD:b", []byte(`{"outcome":"HIT"}`)))
			require.NoError(t, kv.Set(ctx, "pred:ETHUSD:c", []byte(`{"outcome":"FAIL"}`)))
			require.NoError(t, kv.Set(ctx, "perf:breakout", []byte(`{"wins":1}`)))

			entries, err := kv.Query(ctx, "pred:BTCUSD:")
			require.NoError(t, err)
			require.Len(t, entries, 2)
			require.Contains(t, entries, "pred:BTCUSD:a")
			require.Contains(t, entries, "pred:BTCUSD:b")

			all, err := kv.Query(ctx, "pred:")
			require.NoError(t, err)
			require.Len(t, all, 3)
		})
	}
}

func TestFileKV_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "records.json")

	first, err := NewFileKV(path)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "perf:sweep", []byte(`{"wins":7,"losses":2}`)))

	second, err := NewFileKV(path)
	require.NoError(t, err)
	value, ok, err := second.Get(ctx, "perf:sweep")
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"wins":7,"losses":2}`, string(value))
}
