// Package pubsub fans scan events out from broker goroutines into the
// Bubble Tea update loop.
package pubsub

import "time"

// Event wraps one published payload with its publication time. The
// payload type carries all the meaning; brokers are homogeneous, one
// per event kind.
type Event[T any] struct {
	Payload T
	At      time.Time
}
