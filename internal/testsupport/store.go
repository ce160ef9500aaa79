package testsupport

import (
	"context"
	"fmt"
	"testing"

	"suture/internal/config"
	"suture/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewSubmission creates a queued submission for tests using the provided
// store. The label seeds the name, email, and video handle.
func NewSubmission(t testing.TB, store *queue.Store, label string) *queue.Submission {
	t.Helper()

	sub, err := store.Create(context.Background(), queue.NewSubmission{
		Name:        label,
		Email:       fmt.Sprintf("%s@example.com", label),
		Program:     "general-surgery",
		Iteration:   1,
		VideoHandle: fmt.Sprintf("videos/%s.mp4", label),
	})
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return sub
}
