package api

import (
	"context"
	"encoding/json"

	"suture/internal/dispatcher"
	"suture/internal/netmon"
	"suture/internal/queue"
	"suture/internal/services"
)

// StatusService projects read-only position, ETA, and state views from the
// store and the dispatcher without mutating either.
type StatusService struct {
	store   *queue.Store
	mgr     *dispatcher.Manager
	monitor *netmon.Monitor
}

// NewStatusService wires the projection over its sources.
func NewStatusService(store *queue.Store, mgr *dispatcher.Manager, monitor *netmon.Monitor) *StatusService {
	return &StatusService{store: store, mgr: mgr, monitor: monitor}
}

// Status answers a single-submission query.
func (s *StatusService) Status(ctx context.Context, id string) (*StatusResponse, error) {
	sub, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, services.Wrap(services.ErrNotFound, "status", "status", id, nil)
	}

	resp := &StatusResponse{
		SubmissionID:   sub.ID,
		Status:         string(sub.Status),
		SubmissionTime: sub.SubmittedAt.Format(timeLayout),
		RetryCount:     sub.RetryCount,
	}

	if sub.Status.IsPending() {
		if position := s.mgr.Position(sub.ID); position > 0 {
			estimate := s.mgr.Estimate(position).Seconds()
			resp.QueuePosition = &position
			resp.EstimatedProcessingTime = &estimate
		}
	}
	if sub.Status == queue.StatusCompleted && sub.ResultJSON != "" {
		var result struct {
			Score float64 `json:"score"`
		}
		if err := json.Unmarshal([]byte(sub.ResultJSON), &result); err == nil {
			resp.Score = &result.Score
		}
	}
	if sub.Status == queue.StatusFailed {
		resp.Error = sub.LastError
	}
	return resp, nil
}

// QueueStatus answers the aggregate view.
func (s *StatusService) QueueStatus(ctx context.Context) (*QueueStatusResponse, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(stats))
	for _, status := range queue.AllStatuses() {
		counts[string(status)] = stats[status]
	}

	resp := &QueueStatusResponse{
		Counts:        counts,
		QueueLength:   s.mgr.QueueSize(),
		ActiveWorkers: s.mgr.ActiveWorkers(),
		MaxWorkers:    s.mgr.MaxWorkers(),
		Suspended:     s.mgr.Suspended(),
	}
	if s.monitor != nil {
		resp.Network = s.monitor.Snapshot()
	}
	return resp, nil
}
