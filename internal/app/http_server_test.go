package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

func TestMetricsServer_ProbesFollowCheckers(t *testing.T) {
	logger := log.WithField("test", "http")
	port := findFreePort(t)
	base := fmt.Sprintf("http://127.0.0.1:%d", port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := healthcheck.NewHandler(version.GetVersion())
	handler.RegisterChecker("outbox", healthcheck.CheckerFunc(func() healthcheck.Check {
		return healthcheck.Check{Name: "outbox", Status: healthcheck.StatusDegraded, Message: "1500 pending events"}
	}))
	startMetricsServer(ctx, fmt.Sprintf("127.0.0.1:%d", port), logger, handler)
	waitForServer(t, base+"/livez")

	code, body := httpGet(t, base+"/livez")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", body)

	code, body = httpGet(t, base+"/metrics")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "go_goroutines")

	// Большой backlog outbox не снимает сервис с балансировки.
	code, body = httpGet(t, base+"/healthz")
	require.Equal(t, http.StatusOK, code)
	var report healthcheck.Response
	require.NoError(t, json.Unmarshal([]byte(body), &report))
	require.Equal(t, healthcheck.StatusDegraded, report.Status)
	require.Equal(t, "1500 pending events", report.Checks["outbox"].Message)

	code, _ = httpGet(t, base+"/readyz")
	require.Equal(t, http.StatusOK, code)

	handler.RegisterChecker("postgres", healthcheck.NewPingChecker("postgres", 0, func(context.Context) error {
		return errors.New("connection refused")
	}))

	code, body = httpGet(t, base+"/healthz")
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Contains(t, body, "connection refused")

	code, _ = httpGet(t, base+"/readyz")
	require.Equal(t, http.StatusServiceUnavailable, code)
}

func TestMetricsServer_StopsOnContextCancel(t *testing.T) {
	logger := log.WithField("test", "http-shutdown")
	port := findFreePort(t)
	url := fmt.Sprintf("http://127.0.0.1:%d/livez", port)

	ctx, cancel := context.WithCancel(context.Background())
	srv := startMetricsServer(ctx, fmt.Sprintf("127.0.0.1:%d", port), logger, healthcheck.NewHandler("test"))
	require.NotNil(t, srv)
	waitForServer(t, url)

	cancel()

	require.Eventually(t, func() bool {
		resp, err := http.Get(url) //nolint:noctx // тестовый запрос
		if err != nil {
			return true
		}
		_ = resp.Body.Close()
		return false
	}, 2*time.Second, 20*time.Millisecond)
}

func TestShutdownHTTP_NilServer(_ *testing.T) {
	shutdownHTTP(nil, log.WithField("test", "http-nil"))
}

func TestStartMetricsServer_BusyAddrDoesNotPanic(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ListenAndServe падает в горутине, ошибка только логируется.
	srv := startMetricsServer(ctx, listener.Addr().String(), log.WithField("test", "http-busy"), healthcheck.NewHandler("test"))
	require.NotNil(t, srv)
}

func waitForServer(t *testing.T, url string) {
	t.Helper()
	require.Eventually(t, func() bool {
		resp, err := http.Get(url) //nolint:noctx // тестовый запрос
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return true
	}, 2*time.Second, 20*time.Millisecond)
}

func httpGet(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url) //nolint:noctx // тестовый запрос
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, strings.TrimSpace(string(body))
}

func findFreePort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	return listener.Addr().(*net.TCPAddr).Port
}
