package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"suture/internal/analyzer"
	"suture/internal/logging"
	"suture/internal/notifications"
	"suture/internal/queue"
	"suture/internal/services"
)

func notificationFor(sub *queue.Submission, result analyzer.Result) notifications.ResultMessage {
	return notifications.ResultMessage{
		SubmissionID: sub.ID,
		To:           sub.Email,
		Name:         sub.Name,
		Program:      sub.Program,
		Iteration:    sub.Iteration,
		Score:        result.Score,
	}
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

// runWorker drives one submission through analysis and delivery. The slot is
// released on every path.
func (m *Manager) runWorker(ctx context.Context, sub *queue.Submission) {
	defer m.wg.Done()
	defer func() {
		<-m.slots
		m.poke()
	}()

	workCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	m.trackInflight(sub.ID, cancel)
	defer m.untrackInflight(sub.ID)

	workCtx = services.WithSubmissionID(workCtx, sub.ID)
	logger := logging.WithContext(workCtx, m.logger)
	logger.Info("analysis started", logging.String("video_handle", sub.VideoHandle))

	started := time.Now()
	result, err := m.analyze(workCtx, sub)
	if err != nil {
		m.handleAnalysisFailure(ctx, workCtx, sub, err)
		return
	}

	m.eta.Record(time.Since(started))

	resultJSON, marshalErr := json.Marshal(result)
	if marshalErr != nil {
		resultJSON = []byte("{}")
	}
	resultText := string(resultJSON)
	completedAt := nowUTC()
	completed, err := m.store.Transition(ctx, sub.ID,
		[]queue.Status{queue.StatusProcessing}, queue.StatusCompleted,
		queue.Fields{CompletedAt: &completedAt, ResultJSON: &resultText})
	if err != nil {
		logger.Error("failed to record completion", logging.Error(err))
		return
	}

	logger.Info("analysis completed",
		logging.Float64("score", result.Score),
		logging.Duration("elapsed", time.Since(started)))
	if alertErr := m.alerts.SubmissionCompleted(ctx, sub.ID, result.Score); alertErr != nil {
		logger.Debug("completion alert failed", logging.Error(alertErr))
	}

	m.deliverResult(ctx, completed)
}

// analyze stages the video locally and runs the engine against it.
func (m *Manager) analyze(ctx context.Context, sub *queue.Submission) (*analyzer.Result, error) {
	path, cleanup, err := m.backend.LocalPath(ctx, sub.VideoHandle)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	return m.engine.Run(ctx, path)
}

// handleAnalysisFailure routes a failed run: suspension parks the submission,
// cancellation finalizes it, and genuine analyzer errors feed the retry
// policy up to the configured ceiling.
func (m *Manager) handleAnalysisFailure(ctx, workCtx context.Context, sub *queue.Submission, runErr error) {
	logger := logging.WithContext(workCtx, m.logger)

	switch cause := context.Cause(workCtx); {
	case errors.Is(cause, errSuspended):
		if _, err := m.store.Transition(ctx, sub.ID,
			[]queue.Status{queue.StatusProcessing}, queue.StatusWaitingForInternet,
			queue.Fields{}); err != nil {
			logger.Error("failed to park in-flight submission", logging.Error(err))
			return
		}
		m.fifo.Enqueue(sub.ID, sub.QueueSeq)
		logger.Info("in-flight submission parked for connectivity")
		return

	case errors.Is(cause, errCancelled):
		if _, err := m.store.Transition(ctx, sub.ID,
			[]queue.Status{queue.StatusProcessing}, queue.StatusCancelled,
			queue.Fields{}); err != nil {
			logger.Error("failed to finalize cancellation", logging.Error(err))
			return
		}
		logger.Info("in-flight submission cancelled")
		return

	case ctx.Err() != nil:
		// Daemon shutdown; startup recovery requeues processing rows.
		logger.Info("worker stopped by shutdown")
		return
	}

	message := runErr.Error()
	if services.IsRetryable(runErr) && sub.RetryCount < m.cfg.Processing.MaxRetries {
		retries := sub.RetryCount + 1
		if _, err := m.store.Transition(ctx, sub.ID,
			[]queue.Status{queue.StatusProcessing}, queue.StatusQueued,
			queue.Fields{RetryCount: &retries, LastError: &message}); err != nil {
			logger.Error("failed to requeue for retry", logging.Error(err))
			return
		}
		m.fifo.Enqueue(sub.ID, sub.QueueSeq)
		m.poke()
		logger.Warn("analysis failed, retrying",
			logging.Int("retry_count", retries),
			logging.Int("max_retries", m.cfg.Processing.MaxRetries),
			logging.Error(runErr))
		return
	}

	if _, err := m.store.Transition(ctx, sub.ID,
		[]queue.Status{queue.StatusProcessing}, queue.StatusFailed,
		queue.Fields{LastError: &message}); err != nil {
		logger.Error("failed to record failure", logging.Error(err))
		return
	}
	logger.Error("analysis failed permanently",
		logging.Int("attempts", sub.RetryCount+1),
		logging.Error(runErr))
	if alertErr := m.alerts.SubmissionFailed(ctx, sub.ID, message); alertErr != nil {
		logger.Debug("failure alert failed", logging.Error(alertErr))
	}
}

// deliverResult mails the analysis outcome and records the delivery
// bookkeeping. The submission stays completed whatever happens here.
func (m *Manager) deliverResult(ctx context.Context, sub *queue.Submission) {
	ctx = services.WithSubmissionID(ctx, sub.ID)
	logger := logging.WithContext(ctx, m.logger)

	var result analyzer.Result
	if err := json.Unmarshal([]byte(sub.ResultJSON), &result); err != nil {
		logger.Error("unreadable result payload, skipping delivery", logging.Error(err))
		return
	}

	attempts, err := m.notifier.Deliver(ctx, notificationFor(sub, result))
	fields := queue.Fields{NotifyAttempts: &attempts}
	if err == nil {
		notified := nowUTC()
		fields.NotifiedAt = &notified
	} else {
		message := err.Error()
		fields.LastError = &message
	}

	if _, storeErr := m.store.Transition(ctx, sub.ID,
		[]queue.Status{queue.StatusCompleted}, queue.StatusCompleted, fields); storeErr != nil {
		logger.Error("failed to record delivery outcome", logging.Error(storeErr))
	}
}
