// Package mailqueue delivers outgoing mail on a background worker so that
// request handlers never wait on an SMTP round-trip.
//
// The queue is bounded. When it is full, a message is either dropped and
// counted or the caller blocks until space frees up or its context ends.
// Every delivery failure is logged; nothing is retried.
package mailqueue
