// Package api exposes the daemon's HTTP surface: submission intake, status
// and queue projections, cancellation, and health. Handlers translate HTTP
// to store, dispatcher, and storage operations and never mutate state
// directly; the status service is a strictly read-only projection over the
// store and the queue.
package api
