package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gofrs/flock"

	"suture/internal/api"
	"suture/internal/config"
	"suture/internal/dispatcher"
	"suture/internal/logging"
	"suture/internal/netmon"
	"suture/internal/queue"
	"suture/internal/storage"
)

// Daemon coordinates the background services and enforces single-instance
// execution through a lock file.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *queue.Store
	backend storage.Backend
	monitor *netmon.Monitor
	watcher *netmon.LinkWatcher
	mgr     *dispatcher.Manager
	server  *apiServer

	lockPath string
	lock     *flock.Flock

	running    atomic.Bool
	cancel     context.CancelFunc
	monitorEnd chan struct{}
	mgrEnd     chan struct{}
}

// New constructs a daemon with initialized dependencies.
func New(
	cfg *config.Config,
	store *queue.Store,
	backend storage.Backend,
	monitor *netmon.Monitor,
	mgr *dispatcher.Manager,
	handler *api.Handler,
	logger *slog.Logger,
) (*Daemon, error) {
	if cfg == nil || store == nil || monitor == nil || mgr == nil || handler == nil {
		return nil, errors.New("daemon requires config, store, monitor, dispatcher, and handler")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := cfg.LockFilePath()
	server, err := newAPIServer(cfg, handler, logger)
	if err != nil {
		return nil, err
	}
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		backend:  backend,
		monitor:  monitor,
		watcher:  netmon.NewLinkWatcher(monitor, logger),
		mgr:      mgr,
		server:   server,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock and launches every service. It returns
// once the API listener is accepting connections.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another suture daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.monitorEnd = make(chan struct{})
	go func() {
		defer close(d.monitorEnd)
		d.monitor.Run(runCtx)
	}()
	if err := d.watcher.Start(runCtx); err != nil {
		d.logger.Warn("link watcher unavailable", logging.Error(err))
	}

	d.mgrEnd = make(chan struct{})
	go func() {
		defer close(d.mgrEnd)
		if err := d.mgr.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("dispatcher stopped", logging.Error(err))
		}
	}()

	if err := d.server.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	d.running.Store(true)
	d.logger.Info("suture daemon started",
		logging.String("bind", d.server.Addr()),
		logging.String("lock", d.lockPath))
	return nil
}

// Stop shuts every service down and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.server.stop()
	d.watcher.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.mgrEnd != nil {
		<-d.mgrEnd
	}
	if d.monitorEnd != nil {
		<-d.monitorEnd
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("suture daemon stopped")
}

// Close stops the daemon and closes the store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether the daemon is active.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Addr reports the bound API address, useful when binding to port 0.
func (d *Daemon) Addr() string {
	return d.server.Addr()
}
