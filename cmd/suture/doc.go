// Package main hosts the Suture CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into HTTP
// calls against the daemon API: video submission, status lookups,
// cancellation, queue inspection, health checks, and configuration
// scaffolding. It centralizes configuration resolution and client wiring so
// subcommands can focus on user experience.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
