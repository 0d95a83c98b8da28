package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkilian/spatialbench/internal/metrics"
)

func TestServerServesMetricsAndHealth(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.ObserveQuery("Q1", 3*time.Millisecond, 10)
	m.SetPhase(4)

	srv := New(Options{
		Addr:     "127.0.0.1:0",
		Gatherer: reg,
		Status: func() Status {
			return Status{RunID: "run-1", Phase: "RUNNING"}
		},
	})
	require.NoError(t, srv.Start())
	defer srv.Shutdown(context.Background())

	base := "http://" + srv.Addr()

	resp, err := http.Get(base + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `spatialbench_query_duration_seconds_count{query="Q1"} 1`)
	assert.Contains(t, string(body), "spatialbench_run_phase 4")

	resp, err = http.Get(base + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	var status Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, Status{Status: "ok", RunID: "run-1", Phase: "RUNNING"}, status)
}

func TestServerShutdownStopsServing(t *testing.T) {
	srv := New(Options{Addr: "127.0.0.1:0", Gatherer: prometheus.NewRegistry()})
	require.NoError(t, srv.Start())
	addr := srv.Addr()

	require.NoError(t, srv.Shutdown(context.Background()))

	select {
	case err, ok := <-srv.Err():
		assert.False(t, ok, "unexpected serve error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}

	_, err := http.Get("http://" + addr + "/health")
	assert.Error(t, err)

	// Shutdown is idempotent
	assert.NoError(t, srv.Shutdown(context.Background()))
}

func TestServerStartFailsOnBadAddress(t *testing.T) {
	srv := New(Options{Addr: "256.0.0.1:bad"})
	err := srv.Start()
	require.Error(t, err)
	assert.Empty(t, srv.Addr())
}

func TestGateRejectsAfterClose(t *testing.T) {
	g := &gate{}
	handler := g.wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, 1, g.inFlight())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, g.inFlight())

	select {
	case <-g.close():
	default:
		t.Fatal("idle gate should close immediately")
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "close", rec.Header().Get("Connection"))
}

func TestGateWaitsForInFlight(t *testing.T) {
	g := &gate{}
	require.True(t, g.enter())

	done := g.close()
	select {
	case <-done:
		t.Fatal("gate closed with a request in flight")
	default:
	}

	g.leave()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("gate did not close after the last request left")
	}
}

func TestShutdownDrainTimeout(t *testing.T) {
	srv := New(Options{
		Addr:     "127.0.0.1:0",
		Gatherer: prometheus.NewRegistry(),
		Shutdown: ShutdownConfig{Drain: 30 * time.Millisecond},
	})
	require.NoError(t, srv.Start())
	require.True(t, srv.gate.enter())

	err := srv.Shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 in-flight")
	assert.False(t, srv.gate.enter())

	srv.gate.leave()
	assert.Equal(t, err, srv.Shutdown(context.Background()))
}
