// Package queue persists submissions in SQLite and exposes the helpers for
// driving their lifecycle.
//
// The Store manages database connections, schema initialization, stats
// queries, and the guarded Transition primitive that is the only way a
// submission changes status. The FIFO keeps the in-memory dispatch order;
// every identifier in it carries the sequence number assigned at creation so
// reinsertion after a connectivity outage restores the original relative
// order.
//
// Treat this package as the single source of truth for submission semantics;
// when statuses or fields change, update schema.sql and bump schemaVersion.
package queue
