package api

import "suture/internal/netmon"

// SubmitResponse acknowledges an accepted submission.
type SubmitResponse struct {
	SubmissionID            string  `json:"submission_id"`
	Status                  string  `json:"status"`
	QueuePosition           int     `json:"queue_position"`
	EstimatedProcessingTime float64 `json:"estimated_processing_time"`
}

// StatusResponse answers GET /status/{id}. Queue position and estimate are
// present only while the submission still holds a queue slot; score appears
// once completed and error detail once failed.
type StatusResponse struct {
	SubmissionID            string   `json:"submission_id"`
	Status                  string   `json:"status"`
	SubmissionTime          string   `json:"submission_time"`
	QueuePosition           *int     `json:"queue_position,omitempty"`
	EstimatedProcessingTime *float64 `json:"estimated_processing_time,omitempty"`
	Score                   *float64 `json:"score,omitempty"`
	RetryCount              int      `json:"retry_count"`
	Error                   string   `json:"error,omitempty"`
}

// CancelResponse confirms a cancellation request.
type CancelResponse struct {
	SubmissionID string `json:"submission_id"`
	Status       string `json:"status"`
	Message      string `json:"message"`
}

// QueueStatusResponse aggregates queue and worker state.
type QueueStatusResponse struct {
	Counts        map[string]int `json:"counts"`
	QueueLength   int            `json:"queue_length"`
	ActiveWorkers int            `json:"active_workers"`
	MaxWorkers    int            `json:"max_workers"`
	Suspended     bool           `json:"suspended"`
	Network       netmon.State   `json:"network"`
}

// HealthResponse answers GET /health.
type HealthResponse struct {
	Status  string        `json:"status"`
	Version string        `json:"version"`
	Checks  []HealthCheck `json:"checks"`
}

// HealthCheck is one preflight result in the health payload.
type HealthCheck struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

type errorResponse struct {
	Error string `json:"error"`
}
