package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle state of a submission.
type Status string

const (
	StatusQueued             Status = "queued"
	StatusProcessing         Status = "processing"
	StatusWaitingForInternet Status = "waiting_for_internet"
	StatusCompleted          Status = "completed"
	StatusFailed             Status = "failed"
	StatusCancelled          Status = "cancelled"
)

var allStatuses = []Status{
	StatusQueued,
	StatusProcessing,
	StatusWaitingForInternet,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether no further transitions are allowed from status.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsPending reports whether the submission still occupies a queue position.
func (s Status) IsPending() bool {
	return s == StatusQueued || s == StatusWaitingForInternet
}

// Submission is the authoritative record of one analysis request.
type Submission struct {
	ID             string
	Name           string
	Email          string
	Program        string
	Iteration      int
	AdditionalInfo string
	VideoHandle    string
	Status         Status
	QueueSeq       int64
	SubmittedAt    time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
	RetryCount     int
	NotifyAttempts int
	NotifiedAt     *time.Time
	LastError      string
	ResultJSON     string
	UpdatedAt      time.Time
}

// NewSubmission carries the submit-time inputs for Store.Create.
type NewSubmission struct {
	Name           string
	Email          string
	Program        string
	Iteration      int
	AdditionalInfo string
	VideoHandle    string
}

// Stats aggregates submission counts per status.
type Stats map[Status]int

// Pending returns the number of submissions still holding a queue position.
func (s Stats) Pending() int {
	return s[StatusQueued] + s[StatusWaitingForInternet]
}
