package queue

import (
	"sort"
	"sync"
)

type fifoEntry struct {
	id  string
	seq int64
}

// FIFO is the in-memory dispatch order. Entries are kept sorted by the
// persistent queue sequence, so re-enqueueing after an outage or a daemon
// restart restores the original relative order instead of appending.
type FIFO struct {
	mu      sync.Mutex
	entries []fifoEntry
	members map[string]struct{}
}

func NewFIFO() *FIFO {
	return &FIFO{members: make(map[string]struct{})}
}

// Enqueue inserts a submission at its sequence position. Duplicate
// identifiers are ignored so retries and resume sweeps stay idempotent.
func (f *FIFO) Enqueue(id string, seq int64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.members[id]; ok {
		return
	}
	idx := sort.Search(len(f.entries), func(i int) bool {
		return f.entries[i].seq > seq
	})
	f.entries = append(f.entries, fifoEntry{})
	copy(f.entries[idx+1:], f.entries[idx:])
	f.entries[idx] = fifoEntry{id: id, seq: seq}
	f.members[id] = struct{}{}
}

// Dequeue removes and returns the head of the queue along with its
// sequence, so callers can reinsert at the same position on failure.
func (f *FIFO) Dequeue() (string, int64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.entries) == 0 {
		return "", 0, false
	}
	head := f.entries[0]
	f.entries = f.entries[1:]
	delete(f.members, head.id)
	return head.id, head.seq, true
}

// Remove drops a submission from the queue regardless of position. Returns
// false when the submission was not queued.
func (f *FIFO) Remove(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.members[id]; !ok {
		return false
	}
	for i, entry := range f.entries {
		if entry.id == id {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			break
		}
	}
	delete(f.members, id)
	return true
}

// PositionOf returns the zero-based position of a submission, or -1 when it
// is not in the queue.
func (f *FIFO) PositionOf(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.members[id]; !ok {
		return -1
	}
	for i, entry := range f.entries {
		if entry.id == id {
			return i
		}
	}
	return -1
}

// Size reports the number of waiting submissions.
func (f *FIFO) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

// Snapshot returns the queued identifiers in dispatch order.
func (f *FIFO) Snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids := make([]string, len(f.entries))
	for i, entry := range f.entries {
		ids[i] = entry.id
	}
	return ids
}
