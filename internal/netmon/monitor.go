package netmon

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"suture/internal/config"
	"suture/internal/logging"
)

// Event records a confirmed connectivity transition.
type Event struct {
	Online bool
	At     time.Time
}

// State is a point-in-time connectivity snapshot for the status surface.
type State struct {
	Online    bool      `json:"online"`
	Since     time.Time `json:"since"`
	LastProbe time.Time `json:"last_probe"`
}

// Monitor probes connectivity on an interval and publishes debounced
// transitions. Events carries at most one subscriber, the dispatcher.
type Monitor struct {
	interval time.Duration
	logger   *slog.Logger

	// probe reports whether the network is reachable right now.
	probe func(ctx context.Context) bool

	mu        sync.Mutex
	online    bool
	since     time.Time
	lastProbe time.Time
	pending   *bool

	events chan Event
	kick   chan struct{}
}

// New builds a monitor from the network configuration.
func New(cfg *config.Config, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = logging.NewNop()
	}
	address := cfg.Network.ProbeAddress
	timeout := time.Duration(cfg.Network.ProbeTimeoutSeconds) * time.Second

	return &Monitor{
		interval: time.Duration(cfg.Network.CheckIntervalSeconds) * time.Second,
		logger:   logging.NewComponentLogger(logger, "netmon"),
		probe: func(ctx context.Context) bool {
			dialer := net.Dialer{Timeout: timeout}
			conn, err := dialer.DialContext(ctx, "tcp", address)
			if err != nil {
				return false
			}
			conn.Close()
			return true
		},
		events: make(chan Event, 8),
		kick:   make(chan struct{}, 1),
	}
}

// Events returns the transition stream. The channel is never closed; the
// subscriber stops reading when its own context ends.
func (m *Monitor) Events() <-chan Event {
	return m.events
}

// Kick requests an immediate probe outside the regular interval.
func (m *Monitor) Kick() {
	select {
	case m.kick <- struct{}{}:
	default:
	}
}

// Online reports the current debounced state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Snapshot returns the state exposed on the health and queue-status surfaces.
func (m *Monitor) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{Online: m.online, Since: m.since, LastProbe: m.lastProbe}
}

// Run probes until the context ends. The first probe seeds the state without
// debounce so the daemon starts with a truthful view.
func (m *Monitor) Run(ctx context.Context) {
	m.seed(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sample(ctx)
		case <-m.kick:
			m.sample(ctx)
		}
	}
}

func (m *Monitor) seed(ctx context.Context) {
	observed := m.probe(ctx)
	now := time.Now()

	m.mu.Lock()
	m.online = observed
	m.since = now
	m.lastProbe = now
	m.mu.Unlock()

	m.logger.Info("connectivity monitor started", logging.Bool("online", observed))
}

// sample applies one probe observation to the debounced state and publishes
// a transition once the flip is confirmed.
func (m *Monitor) sample(ctx context.Context) {
	observed := m.probe(ctx)
	now := time.Now()

	m.mu.Lock()
	m.lastProbe = now

	if observed == m.online {
		m.pending = nil
		m.mu.Unlock()
		return
	}
	if m.pending == nil || *m.pending != observed {
		candidate := observed
		m.pending = &candidate
		m.mu.Unlock()
		m.logger.Debug("connectivity flip observed, awaiting confirmation",
			logging.Bool("online", observed))
		return
	}

	// Confirmed by two consecutive probes.
	m.online = observed
	m.since = now
	m.pending = nil
	m.mu.Unlock()

	if observed {
		m.logger.Info("connectivity restored")
	} else {
		m.logger.Warn("connectivity lost")
	}

	select {
	case m.events <- Event{Online: observed, At: now}:
	default:
		m.logger.Warn("connectivity event dropped, subscriber not keeping up",
			logging.Bool("online", observed))
	}
}
