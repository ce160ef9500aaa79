// Package logging assembles the structured slog loggers used across suture.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so dispatcher and worker code
// automatically tag log lines with submission identifiers. A no-op logger is
// provided for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits data with the same shape.
package logging
