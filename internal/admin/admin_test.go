package admin

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asynclogd/internal/commitlog"
	"asynclogd/internal/engine"
)

func startTestAdmin(t *testing.T) (addr string, host *engine.Host, shutdown func()) {
	t.Helper()
	dir := t.TempDir()
	lg, err := commitlog.Open(dir, commitlog.Options{})
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	metrics := engine.NewMetrics(registry)
	h, _ := engine.Start(engine.DefaultConfig(), lg, metrics)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr = ln.Addr().String()
	ln.Close()

	cfg := DefaultConfig()
	cfg.Address = addr
	cfg.DocsDir = t.TempDir()
	srv := New(cfg, h, registry)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = srv.ListenAndServe(ctx) }()
	time.Sleep(50 * time.Millisecond)

	return addr, h, func() {
		cancel()
		h.Close()
	}
}

func TestHealthzReportsOKWhileEngineAlive(t *testing.T) {
	addr, _, shutdown := startTestAdmin(t)
	defer shutdown()

	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "ok")
}

func TestMetricsServesPrometheusExposition(t *testing.T) {
	addr, _, shutdown := startTestAdmin(t)
	defer shutdown()

	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "asynclogd_appends_total")
}

func TestHealthzReportsUnavailableAfterEngineClosed(t *testing.T) {
	addr, host, shutdown := startTestAdmin(t)
	defer shutdown()

	host.Close() // stop only the engine; the admin listener stays up

	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
