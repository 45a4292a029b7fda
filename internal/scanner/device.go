// Package scanner drives a camera barcode decoder and publishes decoded
// payloads as events. Exactly one capture session exists at a time; Start
// and Stop serialize through an owned session slot so rapid toggling never
// leaks a device.
package scanner

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"strings"
	"sync"
	"time"

	"imeidesk/internal/log"
)

// Options configures a single capture session.
type Options struct {
	// DevicePath is the video device to open. Empty lets the decoder
	// pick its own default.
	DevicePath string

	// Settle is how long after opening the stream decodes are still
	// considered stale frames and dropped.
	Settle time.Duration
}

// Stream is a live decode stream from an open camera.
type Stream interface {
	// Decodes delivers raw decoded payloads. The channel closes when
	// the stream ends for any reason.
	Decodes() <-chan string

	// Err reports why the stream ended, nil for a clean Close.
	Err() *Error

	// Close releases the camera. Safe to call more than once; returns
	// after the device is fully released.
	Close()
}

// Device opens capture streams. The production implementation shells out
// to a decoder binary; tests substitute scripted devices.
type Device interface {
	Open(ctx context.Context, opts Options) (Stream, error)
}

// zbarDevice runs the zbarcam decoder as a child process and reads
// decoded payloads from its stdout, one per line.
type zbarDevice struct {
	binary string
}

// NewZbarDevice returns a Device backed by the given decoder binary
// (normally "zbarcam").
func NewZbarDevice(binary string) Device {
	if binary == "" {
		binary = "zbarcam"
	}
	return &zbarDevice{binary: binary}
}

type zbarStream struct {
	cancel  context.CancelFunc
	decodes chan string

	mu   sync.Mutex
	err  *Error
	done chan struct{}

	closeOnce sync.Once
}

func (d *zbarDevice) Open(ctx context.Context, opts Options) (Stream, error) {
	procCtx, cancel := context.WithCancel(ctx)

	args := []string{"--raw", "--nodisplay"}
	if opts.DevicePath != "" {
		args = append(args, opts.DevicePath)
	}

	// #nosec G204 -- binary and device path come from config, not user input
	cmd := exec.CommandContext(procCtx, d.binary, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, &Error{Kind: Unknown, Err: err}
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		cancel()
		if strings.Contains(err.Error(), "executable file not found") {
			return nil, &Error{Kind: DeviceNotFound, Message: d.binary + " not installed", Err: err}
		}
		return nil, &Error{Kind: Unknown, Err: err}
	}

	log.Debug(log.CatScan, "decoder started", "binary", d.binary, "pid", cmd.Process.Pid, "device", opts.DevicePath)

	s := &zbarStream{
		cancel:  cancel,
		decodes: make(chan string, 16),
		done:    make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		defer close(s.decodes)

		lines := bufio.NewScanner(stdout)
	read:
		for lines.Scan() {
			payload := strings.TrimSpace(lines.Text())
			if payload == "" {
				continue
			}
			select {
			case s.decodes <- payload:
			case <-procCtx.Done():
				break read
			}
		}

		waitErr := cmd.Wait()
		if waitErr != nil && procCtx.Err() == nil {
			// Process died on its own: classify from stderr
			kind := classifyStderr(stderr.String())
			s.setErr(&Error{Kind: kind, Message: firstLine(stderr.String()), Err: waitErr})
			log.Error(log.CatScan, "decoder exited", "kind", kind, "stderr", firstLine(stderr.String()))
		}
	}()

	return s, nil
}

func (s *zbarStream) Decodes() <-chan string {
	return s.decodes
}

func (s *zbarStream) Err() *Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *zbarStream) setErr(err *Error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *zbarStream) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
	})
	<-s.done
}

// firstLine trims stderr output to its first non-empty line.
func firstLine(output string) string {
	for _, line := range strings.Split(output, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
