package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"suture/internal/queue"
	"suture/internal/services"
	"suture/internal/testsupport"
)

func TestCreateAssignsSequence(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := testsupport.NewSubmission(t, store, "alpha")
	second := testsupport.NewSubmission(t, store, "beta")

	if first.ID == "" {
		t.Fatal("expected submission ID to be assigned")
	}
	if first.Status != queue.StatusQueued {
		t.Fatalf("expected queued status, got %s", first.Status)
	}
	if second.QueueSeq <= first.QueueSeq {
		t.Fatalf("expected increasing queue sequence, got %d then %d", first.QueueSeq, second.QueueSeq)
	}

	fetched, err := store.GetByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil || fetched.Email != "alpha@example.com" {
		t.Fatalf("unexpected fetched submission: %#v", fetched)
	}
}

func TestCreateRequiresEmailAndHandle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := store.Create(ctx, queue.NewSubmission{VideoHandle: "videos/x.mp4"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error when email missing, got %v", err)
	}
	if _, err := store.Create(ctx, queue.NewSubmission{Email: "x@example.com"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error when video handle missing, got %v", err)
	}
}

func TestGetByIDMissingReturnsNil(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	sub, err := store.GetByID(context.Background(), "no-such-id")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if sub != nil {
		t.Fatalf("expected nil submission, got %#v", sub)
	}
}

func TestTransitionGuardsSourceStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	sub := testsupport.NewSubmission(t, store, "guarded")

	started := time.Now().UTC()
	updated, err := store.Transition(ctx, sub.ID,
		[]queue.Status{queue.StatusQueued}, queue.StatusProcessing,
		queue.Fields{StartedAt: &started})
	if err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	if updated.Status != queue.StatusProcessing {
		t.Fatalf("expected processing, got %s", updated.Status)
	}
	if updated.StartedAt == nil {
		t.Fatal("expected started_at to be set")
	}

	// Same guard again must lose the race.
	_, err = store.Transition(ctx, sub.ID,
		[]queue.Status{queue.StatusQueued}, queue.StatusProcessing, queue.Fields{})
	if !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}

	_, err = store.Transition(ctx, "missing",
		[]queue.Status{queue.StatusQueued}, queue.StatusProcessing, queue.Fields{})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestTransitionRecordsResultAndError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	sub := testsupport.NewSubmission(t, store, "result")
	if _, err := store.Transition(ctx, sub.ID,
		[]queue.Status{queue.StatusQueued}, queue.StatusProcessing, queue.Fields{}); err != nil {
		t.Fatalf("to processing: %v", err)
	}

	result := `{"score":87.5}`
	completed := time.Now().UTC()
	updated, err := store.Transition(ctx, sub.ID,
		[]queue.Status{queue.StatusProcessing}, queue.StatusCompleted,
		queue.Fields{ResultJSON: &result, CompletedAt: &completed})
	if err != nil {
		t.Fatalf("to completed: %v", err)
	}
	if updated.ResultJSON != result {
		t.Fatalf("expected result json persisted, got %q", updated.ResultJSON)
	}
	if updated.CompletedAt == nil {
		t.Fatal("expected completed_at to be set")
	}

	errSub := testsupport.NewSubmission(t, store, "errored")
	retries := 1
	lastErr := "analyzer exited 1"
	updated, err = store.Transition(ctx, errSub.ID,
		[]queue.Status{queue.StatusQueued}, queue.StatusFailed,
		queue.Fields{RetryCount: &retries, LastError: &lastErr})
	if err != nil {
		t.Fatalf("to failed: %v", err)
	}
	if updated.RetryCount != 1 || updated.LastError != lastErr {
		t.Fatalf("unexpected failure fields: %#v", updated)
	}
}

func TestTransitionAllFlipsPending(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	a := testsupport.NewSubmission(t, store, "one")
	b := testsupport.NewSubmission(t, store, "two")
	done := testsupport.NewSubmission(t, store, "done")
	if _, err := store.Transition(ctx, done.ID,
		[]queue.Status{queue.StatusQueued}, queue.StatusProcessing, queue.Fields{}); err != nil {
		t.Fatalf("to processing: %v", err)
	}
	if _, err := store.Transition(ctx, done.ID,
		[]queue.Status{queue.StatusProcessing}, queue.StatusCompleted, queue.Fields{}); err != nil {
		t.Fatalf("to completed: %v", err)
	}

	waiting, err := store.TransitionAll(ctx,
		[]queue.Status{queue.StatusQueued}, queue.StatusWaitingForInternet)
	if err != nil {
		t.Fatalf("TransitionAll failed: %v", err)
	}
	if len(waiting) != 2 {
		t.Fatalf("expected 2 waiting submissions, got %d", len(waiting))
	}
	if waiting[0].ID != a.ID || waiting[1].ID != b.ID {
		t.Fatal("expected waiting submissions in queue order")
	}

	final, err := store.GetByID(ctx, done.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if final.Status != queue.StatusCompleted {
		t.Fatalf("completed submission must not change, got %s", final.Status)
	}
}

func TestResetInterrupted(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	sub := testsupport.NewSubmission(t, store, "interrupted")
	started := time.Now().UTC()
	if _, err := store.Transition(ctx, sub.ID,
		[]queue.Status{queue.StatusQueued}, queue.StatusProcessing,
		queue.Fields{StartedAt: &started}); err != nil {
		t.Fatalf("to processing: %v", err)
	}

	count, err := store.ResetInterrupted(ctx)
	if err != nil {
		t.Fatalf("ResetInterrupted failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 reset submission, got %d", count)
	}

	fetched, err := store.GetByID(ctx, sub.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Status != queue.StatusQueued {
		t.Fatalf("expected queued after reset, got %s", fetched.Status)
	}
	if fetched.StartedAt != nil {
		t.Fatal("expected started_at cleared after reset")
	}
}

func TestOrderedPendingPreservesSequence(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	labels := []string{"first", "second", "third"}
	ids := make([]string, 0, len(labels))
	for _, label := range labels {
		ids = append(ids, testsupport.NewSubmission(t, store, label).ID)
	}

	// Middle submission waits for connectivity; order must not change.
	if _, err := store.Transition(ctx, ids[1],
		[]queue.Status{queue.StatusQueued}, queue.StatusWaitingForInternet, queue.Fields{}); err != nil {
		t.Fatalf("to waiting: %v", err)
	}

	pending, err := store.OrderedPending(ctx)
	if err != nil {
		t.Fatalf("OrderedPending failed: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending submissions, got %d", len(pending))
	}
	for i, sub := range pending {
		if sub.ID != ids[i] {
			t.Fatalf("position %d: expected %s, got %s", i, ids[i], sub.ID)
		}
	}
}

func TestStatsAndClearTerminal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewSubmission(t, store, "pending")
	failed := testsupport.NewSubmission(t, store, "failing")
	if _, err := store.Transition(ctx, failed.ID,
		[]queue.Status{queue.StatusQueued}, queue.StatusFailed, queue.Fields{}); err != nil {
		t.Fatalf("to failed: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[queue.StatusQueued] != 1 || stats[queue.StatusFailed] != 1 {
		t.Fatalf("unexpected stats: %#v", stats)
	}
	if stats.Pending() != 1 {
		t.Fatalf("expected 1 pending, got %d", stats.Pending())
	}

	removed, err := store.ClearTerminal(ctx)
	if err != nil {
		t.Fatalf("ClearTerminal failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 cleared submission, got %d", removed)
	}

	remaining, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Status != queue.StatusQueued {
		t.Fatalf("unexpected remaining submissions: %#v", remaining)
	}
}

func TestRemove(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	sub := testsupport.NewSubmission(t, store, "removable")
	ok, err := store.Remove(ctx, sub.ID)
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if !ok {
		t.Fatal("expected removal to report success")
	}
	ok, err = store.Remove(ctx, sub.ID)
	if err != nil {
		t.Fatalf("second Remove failed: %v", err)
	}
	if ok {
		t.Fatal("expected second removal to report miss")
	}
}
