// Package dispatcher coordinates submission processing.
//
// A single logical loop pops the FIFO head whenever a worker slot is free and
// the network is up, moves the submission to processing through the store's
// guarded transition, and hands it to a bounded worker. Workers run the
// analyzer, then deliver the result email; analysis failures feed the retry
// policy and delivery failures never revert a completed submission.
//
// Connectivity transitions from the monitor suspend and resume dispatch.
// Suspension flips pending submissions to waiting_for_internet and cancels
// in-flight workers with a distinguishing cause; the FIFO keeps its entries
// so recovery restores the original relative order.
package dispatcher
