// Package daemon assembles and supervises the long-running server: exclusive
// instance locking, the connectivity monitor and its netlink watcher, the
// dispatcher, and the HTTP API listener.
package daemon
