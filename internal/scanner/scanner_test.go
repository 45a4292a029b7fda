package scanner

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"imeidesk/internal/config"
)

// fakeStream is a scripted decode stream for tests.
type fakeStream struct {
	decodes chan string
	err     *Error

	mu     sync.Mutex
	closed bool

	released chan struct{}
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		decodes:  make(chan string, 16),
		released: make(chan struct{}),
	}
}

func (s *fakeStream) Decodes() <-chan string { return s.decodes }

func (s *fakeStream) Err() *Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *fakeStream) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.decodes)
		close(s.released)
	}
	s.mu.Unlock()
	<-s.released
}

// emit feeds a payload as if the camera decoded it.
func (s *fakeStream) emit(payload string) {
	s.decodes <- payload
}

// fail ends the stream with a device error.
func (s *fakeStream) fail(err *Error) {
	s.mu.Lock()
	s.err = err
	if !s.closed {
		s.closed = true
		close(s.decodes)
		close(s.released)
	}
	s.mu.Unlock()
}

// fakeDevice hands out fakeStreams and counts opens.
type fakeDevice struct {
	mu      sync.Mutex
	streams []*fakeStream
	opens   atomic.Int32
	openErr *Error
}

func (d *fakeDevice) Open(ctx context.Context, opts Options) (Stream, error) {
	d.opens.Add(1)
	if d.openErr != nil {
		return nil, d.openErr
	}
	s := newFakeStream()
	// Session cancellation releases the device, like the real decoder
	go func() {
		<-ctx.Done()
		s.Close()
	}()
	d.mu.Lock()
	d.streams = append(d.streams, s)
	d.mu.Unlock()
	return s, nil
}

func (d *fakeDevice) lastStream() *fakeStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.streams) == 0 {
		return nil
	}
	return d.streams[len(d.streams)-1]
}

func newTestScanner(device Device) *Scanner {
	return New(device, config.ScanConfig{
		MinDecodeIntervalMs: 10,
		SettleMs:            1, // effectively no settle window in tests
	})
}

func TestScanner_DecodesReachSubscribers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	device := &fakeDevice{}
	s := newTestScanner(device)
	defer s.Close()

	events := s.Decodes().Subscribe(ctx)

	require.NoError(t, s.Start(ctx, "rear"))
	time.Sleep(20 * time.Millisecond) // past the settle window

	device.lastStream().emit("358879090123456")

	select {
	case evt := <-events:
		require.Equal(t, "358879090123456", evt.Payload.Payload)
		require.False(t, evt.Payload.At.IsZero())
	case <-time.After(time.Second):
		t.Fatal("decode never arrived")
	}
}

func TestScanner_RateLimitDropsBursts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	device := &fakeDevice{}
	s := New(device, config.ScanConfig{MinDecodeIntervalMs: 500, SettleMs: 1})
	defer s.Close()

	events := s.Decodes().Subscribe(ctx)

	require.NoError(t, s.Start(ctx, "rear"))
	time.Sleep(20 * time.Millisecond)

	stream := device.lastStream()
	for range 5 {
		stream.emit("358879090123456")
	}

	// First survives, the burst within the interval is dropped
	select {
	case <-events:
	case <-time.After(time.Second):
		t.Fatal("first decode never arrived")
	}

	select {
	case evt := <-events:
		t.Fatalf("burst decode leaked through: %v", evt.Payload)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestScanner_SettleWindowDropsEarlyFrames(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	device := &fakeDevice{}
	s := New(device, config.ScanConfig{MinDecodeIntervalMs: 10, SettleMs: 5000})
	defer s.Close()

	events := s.Decodes().Subscribe(ctx)

	require.NoError(t, s.Start(ctx, "rear"))
	device.lastStream().emit("358879090123456")

	select {
	case evt := <-events:
		t.Fatalf("stale frame leaked through: %v", evt.Payload)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestScanner_StopIdempotent(t *testing.T) {
	ctx := context.Background()

	device := &fakeDevice{}
	s := newTestScanner(device)
	defer s.Close()

	require.NoError(t, s.Start(ctx, "rear"))
	require.True(t, s.Active())

	s.Stop()
	require.False(t, s.Active())

	// Second and third Stop from any state are no-ops
	s.Stop()
	s.Stop()
}

func TestScanner_StopWithoutStart(t *testing.T) {
	s := newTestScanner(&fakeDevice{})
	defer s.Close()

	s.Stop()
	require.False(t, s.Active())
}

func TestScanner_RestartConvergesToOneSession(t *testing.T) {
	ctx := context.Background()

	device := &fakeDevice{}
	s := newTestScanner(device)
	defer s.Close()

	for range 5 {
		require.NoError(t, s.Start(ctx, "rear"))
	}

	require.True(t, s.Active())
	require.Equal(t, int32(5), device.opens.Load())

	// Every superseded stream must be released
	device.mu.Lock()
	for _, stream := range device.streams[:4] {
		select {
		case <-stream.released:
		default:
			t.Fatal("superseded stream was never released")
		}
	}
	device.mu.Unlock()
}

func TestScanner_OpenFailureReturnsError(t *testing.T) {
	device := &fakeDevice{openErr: &Error{Kind: DeviceBusy}}
	s := newTestScanner(device)
	defer s.Close()

	err := s.Start(context.Background(), "rear")
	require.Error(t, err)

	var scanErr *Error
	require.ErrorAs(t, err, &scanErr)
	require.Equal(t, DeviceBusy, scanErr.Kind)
	require.False(t, s.Active())
}

func TestScanner_FatalPublishedOnceAndSessionCleared(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	device := &fakeDevice{}
	s := newTestScanner(device)
	defer s.Close()

	fatals := s.Fatals().Subscribe(ctx)

	require.NoError(t, s.Start(ctx, "rear"))

	device.lastStream().fail(&Error{Kind: PermissionDenied})

	select {
	case evt := <-fatals:
		require.Equal(t, PermissionDenied, evt.Payload.Err.Kind)
	case <-time.After(time.Second):
		t.Fatal("fatal event never arrived")
	}

	require.Eventually(t, func() bool { return !s.Active() },
		time.Second, 10*time.Millisecond, "fatal must clear the session")

	select {
	case evt := <-fatals:
		t.Fatalf("fatal published twice: %v", evt.Payload)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestScanner_StopSuppressesLateFatal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	device := &fakeDevice{}
	s := newTestScanner(device)
	defer s.Close()

	fatals := s.Fatals().Subscribe(ctx)

	require.NoError(t, s.Start(ctx, "rear"))
	stream := device.lastStream()

	// Stop first; an error surfacing during teardown is moot
	go func() {
		time.Sleep(10 * time.Millisecond)
		stream.fail(&Error{Kind: Unknown})
	}()
	s.Stop()

	select {
	case evt := <-fatals:
		t.Fatalf("fatal after stop leaked through: %v", evt.Payload)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestClassifyStderr(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
		want   ErrorKind
	}{
		{"permission", "ERROR: video4linux: Permission denied (13)", PermissionDenied},
		{"missing device", "/dev/video0: No such file or directory", DeviceNotFound},
		{"busy", "v4l2: Device or resource busy", DeviceBusy},
		{"format", "ERROR: unsupported format 'YUYV'", ConstraintsUnsatisfiable},
		{"garbage", "segmentation fault", Unknown},
		{"empty", "", Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, classifyStderr(tt.stderr))
		})
	}
}
