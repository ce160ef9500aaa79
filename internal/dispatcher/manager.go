package dispatcher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"suture/internal/analyzer"
	"suture/internal/config"
	"suture/internal/logging"
	"suture/internal/netmon"
	"suture/internal/notifications"
	"suture/internal/queue"
	"suture/internal/services"
	"suture/internal/storage"
)

// Cancellation causes distinguish why a worker context ended.
var (
	errSuspended = errors.New("dispatch suspended")
	errCancelled = errors.New("submission cancelled")
)

// Connectivity is the monitor surface the dispatcher consumes.
type Connectivity interface {
	Online() bool
	Events() <-chan netmon.Event
}

// Manager owns the dispatch loop, the worker pool, and the retry policy.
type Manager struct {
	cfg      *config.Config
	store    *queue.Store
	fifo     *queue.FIFO
	backend  storage.Backend
	engine   analyzer.Analyzer
	notifier *notifications.Notifier
	alerts   notifications.Alerts
	network  Connectivity
	logger   *slog.Logger
	eta      *AverageTracker

	// slots is a semaphore; a buffered send acquires a worker slot.
	slots chan struct{}
	wake  chan struct{}

	mu        sync.Mutex
	suspended bool
	inflight  map[string]context.CancelCauseFunc
	wg        sync.WaitGroup
}

// New wires a manager from its collaborators. The FIFO starts empty; Run
// rebuilds it from the store.
func New(
	cfg *config.Config,
	store *queue.Store,
	backend storage.Backend,
	engine analyzer.Analyzer,
	notifier *notifications.Notifier,
	alerts notifications.Alerts,
	network Connectivity,
	logger *slog.Logger,
) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	if alerts == nil {
		alerts = notifications.NewAlerts(cfg)
	}
	return &Manager{
		cfg:      cfg,
		store:    store,
		fifo:     queue.NewFIFO(),
		backend:  backend,
		engine:   engine,
		notifier: notifier,
		alerts:   alerts,
		network:  network,
		logger:   logging.NewComponentLogger(logger, "dispatcher"),
		eta:      NewAverageTracker(cfg.AverageProcessingTime()),
		slots:    make(chan struct{}, cfg.Processing.MaxConcurrentJobs),
		wake:     make(chan struct{}, 1),
		inflight: make(map[string]context.CancelCauseFunc),
	}
}

// Submit records a new submission and places it in the dispatch queue. When
// the network is down the submission is parked as waiting_for_internet
// immediately; it keeps its queue position either way.
func (m *Manager) Submit(ctx context.Context, in queue.NewSubmission) (*queue.Submission, error) {
	sub, err := m.store.Create(ctx, in)
	if err != nil {
		return nil, err
	}

	if m.isSuspended() {
		parked, err := m.store.Transition(ctx, sub.ID,
			[]queue.Status{queue.StatusQueued}, queue.StatusWaitingForInternet, queue.Fields{})
		if err == nil {
			sub = parked
		}
	}

	m.fifo.Enqueue(sub.ID, sub.QueueSeq)
	m.poke()

	m.logger.Info("submission accepted",
		logging.String(logging.FieldSubmissionID, sub.ID),
		logging.Int64("queue_seq", sub.QueueSeq),
		logging.Int("queue_position", m.fifo.PositionOf(sub.ID)+1))
	return sub, nil
}

// Cancel stops a submission. Pending submissions leave the queue
// synchronously; a processing one is cancelled cooperatively and reaches
// cancelled when its worker yields the slot. Terminal submissions conflict.
func (m *Manager) Cancel(ctx context.Context, id string) (*queue.Submission, error) {
	sub, err := m.store.Transition(ctx, id,
		[]queue.Status{queue.StatusQueued, queue.StatusWaitingForInternet},
		queue.StatusCancelled, queue.Fields{})
	if err == nil {
		m.fifo.Remove(id)
		m.logger.Info("submission cancelled", logging.String(logging.FieldSubmissionID, id))
		return sub, nil
	}
	if !errors.Is(err, services.ErrConflict) {
		return nil, err
	}

	current, getErr := m.store.GetByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	if current == nil {
		return nil, services.Wrap(services.ErrNotFound, "dispatcher", "cancel", id, nil)
	}
	if current.Status == queue.StatusProcessing {
		m.cancelInflight(id, errCancelled)
		m.logger.Info("in-flight cancellation requested",
			logging.String(logging.FieldSubmissionID, id))
		return current, nil
	}
	return nil, err
}

// Position returns the one-based queue position, or 0 when not queued.
func (m *Manager) Position(id string) int {
	if pos := m.fifo.PositionOf(id); pos >= 0 {
		return pos + 1
	}
	return 0
}

// Estimate projects the wait for the given one-based queue position.
func (m *Manager) Estimate(position int) time.Duration {
	if position <= 0 {
		return 0
	}
	workers := m.cfg.Processing.MaxConcurrentJobs
	if workers < 1 {
		workers = 1
	}
	return time.Duration(position) * m.eta.Average() / time.Duration(workers)
}

// QueueSize reports the number of submissions awaiting a slot.
func (m *Manager) QueueSize() int {
	return m.fifo.Size()
}

// ActiveWorkers reports the number of occupied slots.
func (m *Manager) ActiveWorkers() int {
	return len(m.slots)
}

// MaxWorkers reports the concurrency budget.
func (m *Manager) MaxWorkers() int {
	return cap(m.slots)
}

// Suspended reports whether dispatch is paused for connectivity.
func (m *Manager) Suspended() bool {
	return m.isSuspended()
}

func (m *Manager) isSuspended() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.suspended
}

func (m *Manager) setSuspended(v bool) {
	m.mu.Lock()
	m.suspended = v
	m.mu.Unlock()
}

func (m *Manager) poke() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) trackInflight(id string, cancel context.CancelCauseFunc) {
	m.mu.Lock()
	m.inflight[id] = cancel
	m.mu.Unlock()
}

func (m *Manager) untrackInflight(id string) {
	m.mu.Lock()
	delete(m.inflight, id)
	m.mu.Unlock()
}

func (m *Manager) cancelInflight(id string, cause error) {
	m.mu.Lock()
	cancel := m.inflight[id]
	m.mu.Unlock()
	if cancel != nil {
		cancel(cause)
	}
}

func (m *Manager) cancelAllInflight(cause error) {
	m.mu.Lock()
	cancels := make([]context.CancelCauseFunc, 0, len(m.inflight))
	for _, cancel := range m.inflight {
		cancels = append(cancels, cancel)
	}
	m.mu.Unlock()
	for _, cancel := range cancels {
		cancel(cause)
	}
}
