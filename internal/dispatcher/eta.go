package dispatcher

import (
	"sync"
	"time"
)

const averageWindow = 20

// AverageTracker keeps a rolling average of observed processing durations.
// Until enough samples exist it falls back to the configured estimate.
type AverageTracker struct {
	mu       sync.Mutex
	samples  []time.Duration
	next     int
	fallback time.Duration
}

func NewAverageTracker(fallback time.Duration) *AverageTracker {
	return &AverageTracker{fallback: fallback}
}

// Record adds one completed-job duration to the window.
func (t *AverageTracker) Record(d time.Duration) {
	if d <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.samples) < averageWindow {
		t.samples = append(t.samples, d)
		return
	}
	t.samples[t.next] = d
	t.next = (t.next + 1) % averageWindow
}

// Average returns the rolling mean, or the fallback before any sample.
func (t *AverageTracker) Average() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.samples) == 0 {
		return t.fallback
	}
	var total time.Duration
	for _, d := range t.samples {
		total += d
	}
	return total / time.Duration(len(t.samples))
}
