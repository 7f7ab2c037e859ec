package httpclient

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCBConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:         name,
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      100 * time.Millisecond,
		FailureRatio: 0.5,
		MinRequests:  3,
	}
}

func statusServer(t *testing.T, status *atomic.Int32, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(int(status.Load()))
		_, _ = w.Write([]byte(`{"error":{"type":"x"}}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func get(t *testing.T, client *http.Client, url string) (*http.Response, error) {
	t.Helper()
	resp, err := client.Get(url)
	if resp != nil {
		t.Cleanup(func() { _ = resp.Body.Close() })
	}
	return resp, err
}

func TestBreakerTransport_ClosedState_Success(t *testing.T) {
	var status, hits atomic.Int32
	status.Store(http.StatusOK)
	server := statusServer(t, &status, &hits)

	tr := NewBreakerTransport(nil, testCBConfig("es-closed"), testLogger())
	resp, err := get(t, &http.Client{Transport: tr}, server.URL)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, gobreaker.StateClosed, tr.State())
}

func TestBreakerTransport_ServerErrorsAreReturnedAndTrip(t *testing.T) {
	var status, hits atomic.Int32
	status.Store(http.StatusServiceUnavailable)
	server := statusServer(t, &status, &hits)

	tr := NewBreakerTransport(nil, testCBConfig("es-trip"), testLogger())
	client := &http.Client{Transport: tr}

	for i := 0; i < 3; i++ {
		resp, err := get(t, client, server.URL)
		require.NoError(t, err, "5xx responses pass through to the caller")
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	}
	assert.Equal(t, gobreaker.StateOpen, tr.State())

	_, err := get(t, client, server.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(3), hits.Load(), "open breaker does not reach the server")
}

func TestBreakerTransport_4xxNotCountedAsFailure(t *testing.T) {
	var status, hits atomic.Int32
	status.Store(http.StatusNotFound)
	server := statusServer(t, &status, &hits)

	tr := NewBreakerTransport(nil, testCBConfig("es-404"), testLogger())
	client := &http.Client{Transport: tr}
	for i := 0; i < 5; i++ {
		_, err := get(t, client, server.URL)
		require.NoError(t, err)
	}
	assert.Equal(t, gobreaker.StateClosed, tr.State())
}

func TestBreakerTransport_HalfOpenRecovery(t *testing.T) {
	var status, hits atomic.Int32
	status.Store(http.StatusInternalServerError)
	server := statusServer(t, &status, &hits)

	tr := NewBreakerTransport(nil, testCBConfig("es-recover"), testLogger())
	client := &http.Client{Transport: tr}
	for i := 0; i < 3; i++ {
		_, _ = get(t, client, server.URL)
	}
	require.Equal(t, gobreaker.StateOpen, tr.State())

	status.Store(http.StatusOK)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, gobreaker.StateHalfOpen, tr.State())

	resp, err := get(t, client, server.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, gobreaker.StateClosed, tr.State())
}

func TestBreakerTransport_TransportErrorCounts(t *testing.T) {
	tr := NewBreakerTransport(nil, testCBConfig("es-down"), testLogger())
	client := &http.Client{Transport: tr, Timeout: time.Second}

	for i := 0; i < 3; i++ {
		_, err := get(t, client, "http://127.0.0.1:1")
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, tr.State())
}

func TestDefaultCircuitBreakerConfig(t *testing.T) {
	cfg := DefaultCircuitBreakerConfig("elasticsearch")
	assert.Equal(t, "elasticsearch", cfg.Name)
	assert.Equal(t, uint32(5), cfg.MinRequests)
	assert.Equal(t, 0.5, cfg.FailureRatio)
}
