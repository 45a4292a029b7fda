package scanner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"imeidesk/internal/config"
	"imeidesk/internal/log"
	"imeidesk/internal/pubsub"
)

// DecodeEvent carries one decoded payload off the camera.
type DecodeEvent struct {
	Payload string
	At      time.Time
}

// FatalEvent reports a device failure that ended the session. Published
// at most once per session.
type FatalEvent struct {
	Err *Error
}

// session is one owned capture session. done closes only after the
// device is fully released.
type session struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Scanner owns at most one capture session and publishes decode and
// fatal events on separate brokers. All methods are safe for concurrent
// use.
type Scanner struct {
	device Device
	cfg    config.ScanConfig

	decodes *pubsub.Broker[DecodeEvent]
	fatals  *pubsub.Broker[FatalEvent]

	// startMu serializes Start calls; current is the owned session slot
	// that Stop swaps out from any goroutine.
	startMu sync.Mutex
	current atomic.Pointer[session]
}

// New creates a Scanner over the given device.
func New(device Device, cfg config.ScanConfig) *Scanner {
	return &Scanner{
		device:  device,
		cfg:     cfg,
		decodes: pubsub.NewBroker[DecodeEvent](),
		fatals:  pubsub.NewBroker[FatalEvent](),
	}
}

// Decodes returns the broker delivering decoded payloads.
func (s *Scanner) Decodes() *pubsub.Broker[DecodeEvent] {
	return s.decodes
}

// Fatals returns the broker delivering session-ending device failures.
func (s *Scanner) Fatals() *pubsub.Broker[FatalEvent] {
	return s.fatals
}

// Active reports whether a capture session currently owns the device.
func (s *Scanner) Active() bool {
	return s.current.Load() != nil
}

// Start opens a capture session for the given facing. Any existing
// session is stopped first, and a Start issued while a prior Stop is
// completing waits for the device to be fully released. Returns a
// *Error when the device cannot be opened.
func (s *Scanner) Start(ctx context.Context, facing string) error {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	// Release any session we still own before reopening
	s.stopLocked()

	opts := Options{
		DevicePath: s.cfg.Device(facing),
		Settle:     s.cfg.Settle(),
	}

	sessCtx, cancel := context.WithCancel(ctx)
	stream, err := s.device.Open(sessCtx, opts)
	if err != nil {
		cancel()
		log.ErrorErr(log.CatScan, "open failed", err, "facing", facing)
		return err
	}

	sess := &session{cancel: cancel, done: make(chan struct{})}
	s.current.Store(sess)

	log.Info(log.CatScan, "session started", "facing", facing, "device", opts.DevicePath)

	go s.pump(sess, stream, opts.Settle)
	return nil
}

// Stop ends the current session, if any, and waits until the device is
// released. Idempotent and callable from any state.
func (s *Scanner) Stop() {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	s.stopLocked()
}

func (s *Scanner) stopLocked() {
	sess := s.current.Swap(nil)
	if sess == nil {
		return
	}
	sess.cancel()
	<-sess.done
	log.Info(log.CatScan, "session stopped")
}

// Close shuts the scanner down for good: stops any session and closes
// both brokers.
func (s *Scanner) Close() {
	s.Stop()
	s.decodes.Close()
	s.fatals.Close()
}

// pump reads the stream until it ends, applying the settle window and
// the minimum decode interval, and publishes surviving payloads. A
// stream that ends in error publishes one FatalEvent and clears the
// session slot.
func (s *Scanner) pump(sess *session, stream Stream, settle time.Duration) {
	defer close(sess.done)
	defer stream.Close()

	opened := time.Now()
	minInterval := s.cfg.MinDecodeInterval()
	var lastDecode time.Time

	for payload := range stream.Decodes() {
		now := time.Now()

		// Stale frames right after open are dropped
		if now.Sub(opened) < settle {
			continue
		}
		// Rate limit: surplus decodes are dropped, not queued
		if !lastDecode.IsZero() && now.Sub(lastDecode) < minInterval {
			continue
		}
		lastDecode = now

		s.decodes.Publish(DecodeEvent{Payload: payload, At: now})
	}

	if err := stream.Err(); err != nil {
		// Only the owning session reports; a Stop that already swapped
		// us out means the failure is moot.
		if s.current.CompareAndSwap(sess, nil) {
			s.fatals.Publish(FatalEvent{Err: err})
		}
	}
}
