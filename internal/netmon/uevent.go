package netmon

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"suture/internal/logging"
)

// LinkWatcher listens for kernel uevents on the net subsystem and kicks the
// monitor so interface changes are probed immediately instead of waiting out
// the poll interval.
type LinkWatcher struct {
	monitor *Monitor
	logger  *slog.Logger

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// NewLinkWatcher builds a watcher bound to the given monitor.
func NewLinkWatcher(monitor *Monitor, logger *slog.Logger) *LinkWatcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LinkWatcher{
		monitor: monitor,
		logger:  logging.NewComponentLogger(logger, "link-watcher"),
	}
}

// Start begins listening for net subsystem uevents. A failed netlink connect
// is non-fatal; the monitor still polls on its interval.
func (w *LinkWatcher) Start(ctx context.Context) error {
	if w == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		w.logger.Warn("netlink connect failed; relying on interval probes only",
			logging.Error(err))
		return nil
	}

	w.conn = conn
	w.quit = make(chan struct{})
	w.running = true

	quit := w.quit
	go w.watchLoop(ctx, quit)

	w.logger.Info("link watcher started")
	return nil
}

// Stop shuts the watcher down.
func (w *LinkWatcher) Stop() {
	if w == nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	if w.quit != nil {
		close(w.quit)
		w.quit = nil
	}
	if w.conn != nil {
		_ = w.conn.Close()
		w.conn = nil
	}
	w.running = false
}

// Running reports whether the watcher is active.
func (w *LinkWatcher) Running() bool {
	if w == nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *LinkWatcher) watchLoop(ctx context.Context, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(queue, errs, buildLinkMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			w.logger.Debug("net subsystem event, probing now",
				logging.String("action", string(uevent.Action)),
				logging.String("interface", uevent.Env["INTERFACE"]))
			w.monitor.Kick()
		case err := <-errs:
			w.logger.Warn("link watcher error", logging.Error(err))
		}
	}
}

// buildLinkMatcher matches add, remove, and move events on net interfaces.
func buildLinkMatcher() netlink.Matcher {
	action := "add|remove|move"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "net",
		},
	})
	return rules
}
