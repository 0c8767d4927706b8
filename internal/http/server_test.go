package http

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuken/m3u-epg-checker/internal/config"
	"github.com/nuken/m3u-epg-checker/internal/http/handlers"
	"github.com/nuken/m3u-epg-checker/internal/http/middleware"
	"github.com/nuken/m3u-epg-checker/internal/metrics"
	"github.com/nuken/m3u-epg-checker/internal/observability"
)

func testServerConfig() config.ServerConfig {
	return config.ServerConfig{
		Host:            "127.0.0.1",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    5 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

func TestServer_Routes(t *testing.T) {
	srv := NewServer(testServerConfig(), observability.Discard(), "test")
	srv.Register(handlers.NewHealthHandler("test", "memory"))
	m := metrics.New()
	m.RecordFixGenerated()
	srv.MountMetrics(m.Handler())

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(middleware.RequestIDHeader))

	resp, err = http.Get(ts.URL + MetricsPath)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "m3uepg_fixes_generated_total")

	resp, err = http.Get(ts.URL + "/openapi.json")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_ServeAndShutdown(t *testing.T) {
	srv := NewServer(testServerConfig(), observability.Discard(), "")
	srv.Register(handlers.NewHealthHandler("dev", "memory"))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, srv.Shutdown(context.Background()))
	assert.NoError(t, <-done)
}

func TestServer_ShutdownBeforeStart(t *testing.T) {
	srv := NewServer(testServerConfig(), nil, "")
	assert.NoError(t, srv.Shutdown(context.Background()))
}
