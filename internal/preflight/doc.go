// Package preflight verifies the daemon's runtime requirements: working
// directories, free disk space, the analyzer command, and SMTP reachability.
// The daemon runs the checks at startup and again for every /health request.
package preflight
