package notifications

import (
	"context"
	"log/slog"
	"time"

	"suture/internal/config"
	"suture/internal/logging"
)

// Notifier wraps a Mailer with the delivery retry policy. Attempts are
// bounded and spaced with exponential backoff; the caller records the final
// attempt count on the submission.
type Notifier struct {
	mailer         Mailer
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger

	// sleep overrides backoff waits in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewNotifier builds the retrying delivery front for the configured mailer.
func NewNotifier(cfg *config.Config, mailer Mailer, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Notifier{
		mailer:         mailer,
		maxAttempts:    cfg.Notifications.MaxAttempts,
		initialBackoff: time.Duration(cfg.Notifications.BackoffInitialSeconds) * time.Second,
		maxBackoff:     time.Duration(cfg.Notifications.BackoffMaxSeconds) * time.Second,
		logger:         logging.NewComponentLogger(logger, "notifier"),
	}
}

// Deliver sends the result email, retrying transient failures. It returns the
// number of attempts made and the final error, nil on success.
func (n *Notifier) Deliver(ctx context.Context, msg ResultMessage) (int, error) {
	maxAttempts := n.maxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	delay := n.initialBackoff
	if delay <= 0 {
		delay = time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = n.mailer.SendResult(ctx, msg)
		if lastErr == nil {
			if attempt > 1 {
				n.logger.Info("result email delivered after retry",
					logging.String(logging.FieldSubmissionID, msg.SubmissionID),
					logging.Int("attempt", attempt))
			}
			return attempt, nil
		}
		if ctx.Err() != nil {
			return attempt, lastErr
		}
		if attempt == maxAttempts {
			break
		}

		n.logger.Warn("result email failed, retrying",
			logging.String(logging.FieldSubmissionID, msg.SubmissionID),
			logging.Int("attempt", attempt),
			logging.Duration("backoff", delay),
			logging.Error(lastErr))
		if err := n.wait(ctx, delay); err != nil {
			return attempt, lastErr
		}
		if next := delay * 2; next <= n.maxBackoff || n.maxBackoff <= 0 {
			delay = next
		} else {
			delay = n.maxBackoff
		}
	}

	n.logger.Error("result email delivery exhausted",
		logging.String(logging.FieldSubmissionID, msg.SubmissionID),
		logging.Int("attempts", maxAttempts),
		logging.Error(lastErr))
	return maxAttempts, lastErr
}

func (n *Notifier) wait(ctx context.Context, d time.Duration) error {
	if n.sleep != nil {
		return n.sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
