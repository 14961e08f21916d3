package audioio

import (
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var errFakeHost = errors.New("fake host failure")

// fakeHost is a Host whose callbacks are driven by the test.
type fakeHost struct {
	t testing.TB

	mu        sync.Mutex
	endpoints map[Direction][]Endpoint
	listErr   map[Direction]error
	failStep  Step
	failStart bool
	// beforeStart runs inside every stream Start.
	beforeStart func()
	streams     []*fakeStream
	requests    []StreamRequest
}

func newFakeHost(t testing.TB) *fakeHost {
	return &fakeHost{
		t: t,
		endpoints: map[Direction][]Endpoint{
			Input: {
				{ID: "mic0", Name: "Built-in Microphone", IsDefault: true},
				{ID: "usb1", Name: "USB Headset"},
			},
			Output: {
				{ID: "spk0", Name: "Built-in Speakers", IsDefault: true},
				{ID: "usb1", Name: "USB Headset"},
			},
		},
		listErr: map[Direction]error{},
	}
}

func (h *fakeHost) Name() string { return "fake" }

func (h *fakeHost) Endpoints(dir Direction) ([]Endpoint, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.listErr[dir]; err != nil {
		return nil, err
	}
	return append([]Endpoint(nil), h.endpoints[dir]...), nil
}

func (h *fakeHost) OpenStream(req StreamRequest, cb StreamCallbacks) (HardwareStream, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.requests = append(h.requests, req)

	switch h.failStep {
	case StepInitContext, StepInitDevice, StepNegotiate:
		return nil, &HardwareError{Step: h.failStep, Err: errFakeHost}
	}
	if req.DeviceID != "" {
		found := false
		for _, ep := range h.endpoints[req.Direction] {
			found = found || ep.ID == req.DeviceID
		}
		if !found {
			return nil, &HardwareError{Step: StepResolveDevice, Err: ErrDeviceNotFound}
		}
	}

	s := &fakeStream{
		req:         req,
		cb:          cb,
		failStart:   h.failStart,
		beforeStart: h.beforeStart,
		calls:       make(chan string, 16),
	}
	h.streams = append(h.streams, s)
	return s, nil
}

func (h *fakeHost) lastStream() *fakeStream {
	h.t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.streams) == 0 {
		h.t.Fatal("no stream was opened")
	}
	return h.streams[len(h.streams)-1]
}

func (h *fakeHost) streamCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.streams)
}

// fakeStream records the teardown calls made on it.
type fakeStream struct {
	req         StreamRequest
	cb          StreamCallbacks
	failStart   bool
	beforeStart func()
	stopErr     error
	calls       chan string

	mu       sync.Mutex
	started  bool
	teardown []string
}

func (s *fakeStream) record(call string) {
	s.mu.Lock()
	s.teardown = append(s.teardown, call)
	s.mu.Unlock()
	select {
	case s.calls <- call:
	default:
	}
}

func (s *fakeStream) Start() error {
	if s.beforeStart != nil {
		s.beforeStart()
	}
	if s.failStart {
		return errFakeHost
	}
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	return nil
}

func (s *fakeStream) Stop() error {
	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
	s.record("stop")
	return s.stopErr
}

func (s *fakeStream) Uninit() { s.record("uninit") }

func (s *fakeStream) Dispose() error {
	s.record("dispose")
	return nil
}

func (s *fakeStream) isStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *fakeStream) teardownCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.teardown...)
}

// input simulates one capture cycle of frameCount frames whose samples are all value.
func (s *fakeStream) input(frameCount uint32, fill byte) {
	buf := make([]byte, int(frameCount)*s.req.FrameSize())
	for i := range buf {
		buf[i] = fill
	}
	s.cb.Data(nil, buf, frameCount)
}

// output simulates one playback cycle and returns the rendered buffer.
func (s *fakeStream) output(frameCount uint32) []byte {
	buf := make([]byte, int(frameCount)*s.req.FrameSize())
	for i := range buf {
		buf[i] = 0xAA
	}
	s.cb.Data(buf, nil, frameCount)
	return buf
}

func newTestEngine(t testing.TB, host Host, opts ...Option) *Engine {
	opts = append([]Option{WithHost(host), WithLogger(zerolog.Nop())}, opts...)
	e := NewEngine(opts...)
	t.Cleanup(func() { e.Close() })
	return e
}

// recvFrame waits for one frame on c.
func recvFrame(t testing.TB, c chan []byte) []byte {
	t.Helper()
	select {
	case f := <-c:
		return f
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for frame")
	}
	return nil
}
