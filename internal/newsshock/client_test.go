package newsshock

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(baseURL string) *Client {
	return NewClient(&Config{
		BaseURL:           baseURL,
		Timeout:           time.Second,
		RequestsPerSecond: 1000,
		Burst:             1000,
		CacheTTL:          30 * time.Second,
	})
}

func TestActiveShock_ReturnsActiveEvent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "BTCUSD", r.URL.Query().Get("symbol"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"active":true,"severity":"HIGH","message":"FOMC rate decision"}`))
	}))
	defer server.Close()

	shock, err := testClient(server.URL).ActiveShock(context.Background(), "BTCUSD")

	require.NoError(t, err)
	require.NotNil(t, shock)
	assert.Equal(t, "HIGH", shock.Severity)
	assert.Equal(t, "FOMC rate decision", shock.Message)
}

func TestActiveShock_InactiveAndEmptyResponses(t *testing.T) {
	inactive := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"active":false}`))
	}))
	defer inactive.Close()

	shock, err := testClient(inactive.URL).ActiveShock(context.Background(), "BTCUSD")
	require.NoError(t, err)
	assert.Nil(t, shock)

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer empty.Close()

	shock, err = testClient(empty.URL).ActiveShock(context.Background(), "BTCUSD")
	require.NoError(t, err)
	assert.Nil(t, shock)
}

func TestActiveShock_NoBaseURLMeansNoShock(t *testing.T) {
	client := NewClient(&Config{})

	shock, err := client.ActiveShock(context.Background(), "BTCUSD")

	require.NoError(t, err)
	assert.Nil(t, shock)
}

func TestActiveShock_CacheServesRepeatLookups(t *testing.T) {
	var requests int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		_, _ = w.Write([]byte(`{"active":true,"severity":"MEDIUM","message":"CPI revision"}`))
	}))
	defer server.Close()

	client := testClient(server.URL)
	for i := 0; i < 5; i++ {
		shock, err := client.ActiveShock(context.Background(), "BTCUSD")
		require.NoError(t, err)
		require.NotNil(t, shock)
	}

	assert.Equal(t, int64(1), atomic.LoadInt64(&requests))
}

func TestActiveShock_CacheIsPerSymbol(t *testing.T) {
	var requests int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := testClient(server.URL)
	_, err := client.ActiveShock(context.Background(), "BTCUSD")
	require.NoError(t, err)
	_, err = client.ActiveShock(context.Background(), "ETHUSD")
	require.NoError(t, err)

	assert.Equal(t, int64(2), atomic.LoadInt64(&requests))
}

func TestActiveShock_BreakerTripsOnRepeatedFailures(t *testing.T) {
	var requests int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := testClient(server.URL)
	for i := 0; i < 10; i++ {
		_, err := client.ActiveShock(context.Background(), "BTCUSD")
		assert.Error(t, err)
	}

	// After five consecutive failures the breaker opens and the feed
	// stops being hit.
	assert.Equal(t, int64(5), atomic.LoadInt64(&requests))
}

func TestActiveShock_RateLimitSurfacesAsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(&Config{
		BaseURL:           server.URL,
		Timeout:           time.Second,
		RequestsPerSecond: 0.001,
		Burst:             1,
		CacheTTL:          time.Nanosecond,
	})

	_, err := client.ActiveShock(context.Background(), "BTCUSD")
	require.NoError(t, err)

	// Bucket drained and the cache already expired.
	time.Sleep(2 * time.Nanosecond)
	_, err = client.ActiveShock(context.Background(), "BTCUSD")
	assert.Error(t, err)
}
