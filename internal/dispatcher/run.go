package dispatcher

import (
	"context"
	"errors"

	"suture/internal/logging"
	"suture/internal/queue"
	"suture/internal/services"
)

// Run rebuilds the queue from the store and dispatches until the context
// ends. It blocks; callers run it in its own goroutine.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.bootstrap(ctx); err != nil {
		return err
	}

	for {
		if !m.isSuspended() {
			m.dispatchReady(ctx)
		}

		select {
		case <-ctx.Done():
			m.wg.Wait()
			return ctx.Err()
		case <-m.wake:
		case ev := <-m.network.Events():
			if ev.Online {
				m.resume(ctx)
			} else {
				m.suspend(ctx)
			}
		}
	}
}

// bootstrap recovers persisted state: submissions interrupted mid-processing
// go back to queued, and every pending submission re-enters the FIFO in its
// original order.
func (m *Manager) bootstrap(ctx context.Context) error {
	reset, err := m.store.ResetInterrupted(ctx)
	if err != nil {
		return err
	}
	if reset > 0 {
		m.logger.Info("requeued submissions interrupted by shutdown", logging.Int64("count", reset))
	}

	pending, err := m.store.OrderedPending(ctx)
	if err != nil {
		return err
	}
	for _, sub := range pending {
		m.fifo.Enqueue(sub.ID, sub.QueueSeq)
	}
	if len(pending) > 0 {
		m.logger.Info("queue rebuilt", logging.Int("pending", len(pending)))
	}

	if !m.network.Online() {
		m.suspend(ctx)
	} else {
		// Startup with connectivity: anything parked as waiting resumes.
		m.resume(ctx)
	}
	return nil
}

// dispatchReady fills free worker slots from the queue head.
func (m *Manager) dispatchReady(ctx context.Context) {
	for {
		select {
		case m.slots <- struct{}{}:
		default:
			return
		}

		id, seq, ok := m.fifo.Dequeue()
		if !ok {
			<-m.slots
			return
		}

		started := nowUTC()
		sub, err := m.store.Transition(ctx, id,
			[]queue.Status{queue.StatusQueued}, queue.StatusProcessing,
			queue.Fields{StartedAt: &started})
		if err != nil {
			<-m.slots
			// Lost to a concurrent cancel or suspend; skip without
			// consuming a slot.
			if errors.Is(err, services.ErrConflict) || errors.Is(err, services.ErrNotFound) {
				if m.recoverParked(ctx, id) {
					continue
				}
				m.logger.Debug("skipping submission no longer queued",
					logging.String(logging.FieldSubmissionID, id),
					logging.Error(err))
				continue
			}
			m.logger.Error("dispatch transition failed",
				logging.String(logging.FieldSubmissionID, id),
				logging.Error(err))
			m.fifo.Enqueue(id, seq)
			return
		}

		m.wg.Add(1)
		go m.runWorker(ctx, sub)
	}
}

// recoverParked undoes a park that raced resume. Submit can read a stale
// suspended flag in the instant resume restores the queue, leaving its
// submission waiting_for_internet with the network up; once dequeued here
// that row would otherwise never re-enter the queue. Put it back in line at
// its original sequence.
func (m *Manager) recoverParked(ctx context.Context, id string) bool {
	if m.isSuspended() {
		return false
	}
	row, err := m.store.GetByID(ctx, id)
	if err != nil || row == nil || row.Status != queue.StatusWaitingForInternet {
		return false
	}
	restored, err := m.store.Transition(ctx, id,
		[]queue.Status{queue.StatusWaitingForInternet}, queue.StatusQueued, queue.Fields{})
	if err != nil {
		return false
	}
	m.fifo.Enqueue(restored.ID, restored.QueueSeq)
	m.poke()
	m.logger.Info("recovered submission parked during resume",
		logging.String(logging.FieldSubmissionID, id))
	return true
}

// suspend pauses dispatch for a connectivity outage. Queued submissions flip
// to waiting_for_internet but keep their FIFO entries; in-flight workers are
// cancelled and park their own submissions.
func (m *Manager) suspend(ctx context.Context) {
	m.setSuspended(true)
	m.cancelAllInflight(errSuspended)

	flipped, err := m.store.TransitionAll(ctx,
		[]queue.Status{queue.StatusQueued}, queue.StatusWaitingForInternet)
	if err != nil {
		m.logger.Error("failed to park queued submissions", logging.Error(err))
		return
	}
	for _, sub := range flipped {
		m.fifo.Enqueue(sub.ID, sub.QueueSeq)
	}

	waiting := m.fifo.Size()
	m.logger.Warn("dispatch suspended, waiting for connectivity", logging.Int("waiting", waiting))
	if err := m.alerts.QueueSuspended(ctx, waiting); err != nil {
		m.logger.Debug("suspend alert failed", logging.Error(err))
	}
}

// resume restores waiting submissions to queued in their original order and
// restarts dispatch. Result emails stranded by the outage are retried.
func (m *Manager) resume(ctx context.Context) {
	restored, err := m.store.TransitionAll(ctx,
		[]queue.Status{queue.StatusWaitingForInternet}, queue.StatusQueued)
	if err != nil {
		m.logger.Error("failed to restore waiting submissions", logging.Error(err))
		return
	}
	for _, sub := range restored {
		m.fifo.Enqueue(sub.ID, sub.QueueSeq)
	}
	m.setSuspended(false)
	m.poke()

	if len(restored) > 0 {
		m.logger.Info("dispatch resumed", logging.Int("restored", len(restored)))
		if err := m.alerts.QueueResumed(ctx, len(restored)); err != nil {
			m.logger.Debug("resume alert failed", logging.Error(err))
		}
	}

	m.retryPendingEmails(ctx)
}

// retryPendingEmails re-delivers results for completed submissions that
// never got their email out: the outage hit mid-delivery, or a crash landed
// between the completion transition and the first attempt.
func (m *Manager) retryPendingEmails(ctx context.Context) {
	completed, err := m.store.List(ctx, queue.StatusCompleted)
	if err != nil {
		m.logger.Error("failed to list completed submissions", logging.Error(err))
		return
	}
	for _, sub := range completed {
		if sub.NotifiedAt != nil {
			continue
		}
		sub := sub
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.deliverResult(ctx, sub)
		}()
	}
}
