// Package netmon watches internet connectivity for the dispatcher.
//
// A periodic TCP probe drives a debounced online/offline state: a flip is
// published only after the new state is confirmed by a second consecutive
// probe, so a single dropped packet never suspends the queue. Transitions go
// to a single subscriber channel consumed by the dispatcher. On Linux a
// netlink uevent watcher on the net subsystem triggers an immediate probe
// when interfaces come and go, shortening detection latency without
// tightening the poll interval.
package netmon
