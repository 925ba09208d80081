package app

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/berrus-helper/internal/alarms"
	"github.com/aatumaykin/berrus-helper/internal/bus"
	"github.com/aatumaykin/berrus-helper/internal/config"
	"github.com/aatumaykin/berrus-helper/internal/game"
	"github.com/aatumaykin/berrus-helper/internal/logger"
)

func createTestConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.Storage = config.StorageConfig{Driver: "memory"}
	cfg.Relay.Listen = "127.0.0.1:0"
	cfg.Metrics = config.MetricsConfig{Enabled: true, Namespace: "berrus_test"}
	return cfg
}

func startApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()

	a := New(cfg, logger.NewNop())
	require.NoError(t, a.Initialize(context.Background()))
	t.Cleanup(func() { _ = a.Shutdown() })
	return a
}

func testJob(id string) game.TimedJob {
	return game.NewTimedJob(id, game.Pesca, "Salmon", time.Now().UnixMilli(), time.Hour.Milliseconds())
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestApp_Shutdown_NotStarted(t *testing.T) {
	a := New(createTestConfig(t), logger.NewNop())

	assert.NoError(t, a.Shutdown())
	assert.Nil(t, a.Sender())
	assert.Nil(t, a.Store())
	assert.Empty(t, a.Addr())
}

func TestApp_InitializeWiresTheBus(t *testing.T) {
	a := startApp(t, createTestConfig(t))
	ctx := context.Background()

	resp, err := a.Sender().Send(ctx, bus.JobDetected{Job: testJob("j1")})
	require.NoError(t, err)
	assert.Equal(t, bus.Ack{Success: true}, resp)

	timers, err := bus.QueryTimers(ctx, a.Sender())
	require.NoError(t, err)
	require.Len(t, timers.ActiveJobs, 1)
	assert.Equal(t, "j1", timers.ActiveJobs[0].ID)

	a.mu.RLock()
	_, armed := a.scheduler.Get(alarms.JobAlarmName("j1"))
	a.mu.RUnlock()
	assert.True(t, armed)
}

func TestApp_HTTPBridge(t *testing.T) {
	a := startApp(t, createTestConfig(t))
	base := "http://" + a.Addr()

	status, body := get(t, base+"/healthz")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok\n", body)

	status, body = get(t, base+"/api/timers")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"activeJobs"`)

	status, body = get(t, base+"/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "go_goroutines")
}

func TestApp_MetricsDisabled(t *testing.T) {
	cfg := createTestConfig(t)
	cfg.Metrics.Enabled = false
	a := startApp(t, cfg)

	status, _ := get(t, "http://"+a.Addr()+"/metrics")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestApp_InitializeTwice(t *testing.T) {
	a := startApp(t, createTestConfig(t))
	assert.Error(t, a.Initialize(context.Background()))
}

func TestApp_InitializeFailureReleases(t *testing.T) {
	cfg := createTestConfig(t)
	cfg.Storage.Driver = "carrier-pigeon"

	a := New(cfg, logger.NewNop())
	require.Error(t, a.Initialize(context.Background()))

	assert.Nil(t, a.Sender())
	assert.Empty(t, a.Addr())
	assert.NoError(t, a.Shutdown())

	cfg.Storage.Driver = "memory"
	require.NoError(t, a.Initialize(context.Background()), "a failed initialize can be retried")
	assert.NoError(t, a.Shutdown())
}

func TestApp_Shutdown(t *testing.T) {
	a := New(createTestConfig(t), logger.NewNop())
	require.NoError(t, a.Initialize(context.Background()))
	appCtx := a.ctx

	require.NoError(t, a.Shutdown())

	assert.False(t, a.started)
	assert.Nil(t, a.Sender())
	assert.Error(t, appCtx.Err(), "application context is cancelled")
	assert.NoError(t, a.Shutdown(), "second shutdown is a no-op")
}

func TestApp_RestartKeepsPersistedJobs(t *testing.T) {
	cfg := createTestConfig(t)
	cfg.Storage = config.StorageConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "berrus.db")}
	a := startApp(t, cfg)
	ctx := context.Background()

	_, err := a.Sender().Send(ctx, bus.JobDetected{Job: testJob("j1")})
	require.NoError(t, err)

	require.NoError(t, a.Restart())

	timers, err := bus.QueryTimers(ctx, a.Sender())
	require.NoError(t, err)
	require.Len(t, timers.ActiveJobs, 1)

	a.mu.RLock()
	_, armed := a.scheduler.Get(alarms.JobAlarmName("j1"))
	a.mu.RUnlock()
	assert.True(t, armed, "alarm restored after restart")
}

func TestApp_StartWatcherRequiresInitialize(t *testing.T) {
	a := New(createTestConfig(t), logger.NewNop())
	assert.Error(t, a.StartWatcher(context.Background()))
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	a := New(createTestConfig(t), logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool { return a.Addr() != "" }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.Empty(t, a.Addr())
}

func TestStartURL(t *testing.T) {
	assert.Equal(t, "https://www.berrus.app/g/c/rsn/jobs",
		StartURL(config.GameConfig{BaseURL: "https://www.berrus.app/", StartPath: "/g/c/rsn/jobs"}))
}

type senderFunc func(ctx context.Context, msg bus.Message) (any, error)

func (f senderFunc) Send(ctx context.Context, msg bus.Message) (any, error) { return f(ctx, msg) }

func TestNewWatcher(t *testing.T) {
	sender := senderFunc(func(context.Context, bus.Message) (any, error) {
		return bus.Ack{Success: true}, nil
	})

	cfg := createTestConfig(t)
	w, err := NewWatcher(cfg, sender, logger.NewNop(), nil)
	require.NoError(t, err)
	assert.NoError(t, w.Stop(), "stopping an unstarted watcher is harmless")

	cfg.Game.APIOrigin = "not a url"
	_, err = NewWatcher(cfg, sender, logger.NewNop(), nil)
	assert.Error(t, err)
}
