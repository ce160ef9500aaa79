package daemon_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"suture/internal/analyzer"
	"suture/internal/api"
	"suture/internal/daemon"
	"suture/internal/dispatcher"
	"suture/internal/netmon"
	"suture/internal/notifications"
	"suture/internal/storage"
	"suture/internal/testsupport"
)

func newDaemon(t *testing.T) *daemon.Daemon {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	// Probe the local listener rather than the internet.
	cfg.Network.ProbeAddress = "127.0.0.1:1"
	cfg.Network.ProbeTimeoutSeconds = 1
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	store := testsupport.MustOpenStore(t, cfg)
	backend := storage.NewLocal(cfg.Paths.VideoDir)
	monitor := netmon.New(cfg, nil)
	notifier := notifications.NewNotifier(cfg, notifications.NewMailer(cfg), nil)
	mgr := dispatcher.New(cfg, store, backend, analyzer.New(cfg), notifier, nil, monitor, nil)
	handler := api.NewHandler(cfg, mgr, api.NewStatusService(store, mgr, monitor), backend, nil)

	d, err := daemon.New(cfg, store, backend, monitor, mgr, handler, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d
}

func TestDaemonStartServesHealth(t *testing.T) {
	d := newDaemon(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	if !d.Running() {
		t.Fatal("expected daemon running")
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + d.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestDaemonDoubleStartRejected(t *testing.T) {
	d := newDaemon(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second Start to fail")
	}
}

func TestDaemonStopIsIdempotent(t *testing.T) {
	d := newDaemon(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	d.Stop()
	d.Stop()
	if d.Running() {
		t.Fatal("expected daemon stopped")
	}
}
