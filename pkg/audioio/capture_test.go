package audioio

import (
	"bytes"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
)

// frameSink collects copies of delivered frames.
func frameSink(depth int) (chan []byte, FrameFunc) {
	c := make(chan []byte, depth)
	return c, func(frame []byte) {
		c <- append([]byte(nil), frame...)
	}
}

func assertTeardown(t *testing.T, s *fakeStream) {
	t.Helper()
	got := s.teardownCalls()
	want := []string{"stop", "uninit", "dispose"}
	if len(got) != len(want) {
		t.Fatalf("unexpected teardown calls: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected teardown calls: got %v, want %v", got, want)
		}
	}
}

func TestCaptureStartStop(t *testing.T) {
	host := newFakeHost(t)
	e := newTestEngine(t, host)
	frames, onFrame := frameSink(8)

	s, err := e.StartCapture(CaptureConfig{SampleRate: 16000, ChannelCount: 1}, onFrame)
	if err != nil {
		t.Fatal(err)
	}
	if s.State() != StateRunning {
		t.Fatalf("unexpected state: %s", s.State())
	}
	if e.OpenStreams() != 1 {
		t.Fatalf("unexpected open streams: %d", e.OpenStreams())
	}

	stream := host.lastStream()
	if !stream.isStarted() {
		t.Fatal("stream was not started")
	}
	req := stream.req
	if req.Direction != Input || req.SampleRate != 16000 || req.Channels != 1 || req.Format != FormatF32 {
		t.Fatalf("unexpected stream request: %+v", req)
	}
	if req.DeviceID != "" {
		t.Fatalf("default device requested as %q", req.DeviceID)
	}

	stream.input(160, 1)
	frame := recvFrame(t, frames)
	if len(frame) != 640 || len(frame)%4 != 0 {
		t.Fatalf("unexpected frame length %d", len(frame))
	}

	if !s.Stop() {
		t.Fatal("first Stop returned false")
	}
	if s.Stop() {
		t.Fatal("second Stop returned true")
	}
	if e.StopCapture(s) {
		t.Fatal("StopCapture on a closed session returned true")
	}
	if s.State() != StateClosed {
		t.Fatalf("unexpected state: %s", s.State())
	}
	if e.OpenStreams() != 0 {
		t.Fatalf("unexpected open streams: %d", e.OpenStreams())
	}
	assertTeardown(t, stream)
	if stream.isStarted() {
		t.Fatal("stream still started")
	}
	s.Wait()
}

func TestCaptureDefaults(t *testing.T) {
	host := newFakeHost(t)
	e := newTestEngine(t, host)

	s, err := e.StartCapture(CaptureConfig{}, func([]byte) {})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	cfg := s.Config()
	if cfg.SampleRate != DefaultCaptureSampleRate || cfg.ChannelCount != DefaultCaptureChannelCount {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	req := host.lastStream().req
	if req.SampleRate != DefaultCaptureSampleRate || req.Channels != DefaultCaptureChannelCount {
		t.Fatalf("unexpected stream request: %+v", req)
	}
}

func TestCaptureSelectsDevice(t *testing.T) {
	host := newFakeHost(t)
	e := newTestEngine(t, host)

	s, err := e.StartCapture(CaptureConfig{DeviceID: "in:usb1"}, func([]byte) {})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Stop()
	if got := host.lastStream().req.DeviceID; got != "usb1" {
		t.Fatalf("unexpected host device id %q", got)
	}
}

func TestCaptureConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     CaptureConfig
		onFrame FrameFunc
	}{
		{"negative sample rate", CaptureConfig{SampleRate: -1}, func([]byte) {}},
		{"negative channels", CaptureConfig{ChannelCount: -2}, func([]byte) {}},
		{"output device", CaptureConfig{DeviceID: "out:spk0"}, func([]byte) {}},
		{"unprefixed device", CaptureConfig{DeviceID: "mic0"}, func([]byte) {}},
		{"nil callback", CaptureConfig{}, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			host := newFakeHost(t)
			e := newTestEngine(t, host)

			s, err := e.StartCapture(tc.cfg, tc.onFrame)
			if s != nil {
				t.Fatal("got a session on invalid config")
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("unexpected error %v", err)
			}
			if host.streamCount() != 0 {
				t.Fatal("hardware was touched on invalid config")
			}
		})
	}
}

func TestCaptureHardwareFailureRollsBack(t *testing.T) {
	tests := []struct {
		name      string
		failStep  Step
		failStart bool
		deviceID  string
		want      Step
	}{
		{name: "init context", failStep: StepInitContext, want: StepInitContext},
		{name: "unknown device", deviceID: "in:nope", want: StepResolveDevice},
		{name: "init device", failStep: StepInitDevice, want: StepInitDevice},
		{name: "negotiate", failStep: StepNegotiate, want: StepNegotiate},
		{name: "start", failStart: true, want: StepStart},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			host := newFakeHost(t)
			host.failStep = tc.failStep
			host.failStart = tc.failStart
			e := newTestEngine(t, host)

			var calls atomic.Int32
			s, err := e.StartCapture(CaptureConfig{DeviceID: tc.deviceID}, func([]byte) { calls.Add(1) })
			if s != nil {
				t.Fatal("got a session on hardware failure")
			}
			var hwErr *HardwareError
			if !errors.As(err, &hwErr) {
				t.Fatalf("unexpected error %v", err)
			}
			if hwErr.Step != tc.want {
				t.Fatalf("unexpected step: got %q, want %q", hwErr.Step, tc.want)
			}
			if e.OpenStreams() != 0 {
				t.Fatalf("unexpected open streams: %d", e.OpenStreams())
			}
			if tc.failStart {
				stream := host.lastStream()
				assertTeardown(t, stream)
				stream.input(16, 1)
			}
			if tc.deviceID != "" && !errors.Is(err, ErrDeviceNotFound) {
				t.Fatalf("unexpected cause %v", err)
			}

			// The capture slot must be free again.
			host.failStep, host.failStart = "", false
			s, err = e.StartCapture(CaptureConfig{}, func([]byte) {})
			if err != nil {
				t.Fatal(err)
			}
			s.Stop()
			if calls.Load() != 0 {
				t.Fatalf("failed session delivered %d frames", calls.Load())
			}
		})
	}
}

func TestCaptureSkipsShortBuffers(t *testing.T) {
	host := newFakeHost(t)
	e := newTestEngine(t, host)
	frames, onFrame := frameSink(8)

	s, err := e.StartCapture(CaptureConfig{SampleRate: 16000, ChannelCount: 2}, onFrame)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Stop()
	stream := host.lastStream()

	// 10 frames of stereo f32 need 80 bytes.
	stream.cb.Data(nil, make([]byte, 40), 10)
	stream.cb.Data(nil, nil, 0)
	if s.State() != StateRunning {
		t.Fatalf("unexpected state after transient failure: %s", s.State())
	}

	stream.input(10, 7)
	frame := recvFrame(t, frames)
	if len(frame) != 80 {
		t.Fatalf("unexpected frame length %d", len(frame))
	}
	if stats := s.Stats(); stats.Skipped != 2 || stats.Dropped != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestCaptureTrimsOversizedBuffers(t *testing.T) {
	host := newFakeHost(t)
	e := newTestEngine(t, host)
	frames, onFrame := frameSink(8)

	s, err := e.StartCapture(CaptureConfig{SampleRate: 16000}, onFrame)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	host.lastStream().cb.Data(nil, make([]byte, 100), 4)
	if frame := recvFrame(t, frames); len(frame) != 16 {
		t.Fatalf("unexpected frame length %d", len(frame))
	}
}

func TestCaptureDeliversInOrder(t *testing.T) {
	host := newFakeHost(t)
	e := newTestEngine(t, host)
	frames, onFrame := frameSink(32)

	s, err := e.StartCapture(CaptureConfig{SampleRate: 16000}, onFrame)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Stop()
	stream := host.lastStream()

	const n = 20
	for i := 0; i < n; i++ {
		stream.input(8, byte(i))
	}
	for i := 0; i < n; i++ {
		frame := recvFrame(t, frames)
		if !bytes.Equal(frame, bytes.Repeat([]byte{byte(i)}, 32)) {
			t.Fatalf("frame %d out of order: %v", i, frame)
		}
	}
}

func TestCaptureNoDeliveryAfterStop(t *testing.T) {
	host := newFakeHost(t)
	e := newTestEngine(t, host)
	var calls atomic.Int32

	s, err := e.StartCapture(CaptureConfig{}, func([]byte) { calls.Add(1) })
	if err != nil {
		t.Fatal(err)
	}
	stream := host.lastStream()
	s.Stop()
	s.Wait()

	stream.input(32, 1)
	stream.cb.Stopped()
	time.Sleep(10 * time.Millisecond)
	if calls.Load() != 0 {
		t.Fatalf("got %d frames after stop", calls.Load())
	}
}

func TestCaptureDropsWhenConsumerIsSlow(t *testing.T) {
	host := newFakeHost(t)
	e := newTestEngine(t, host, WithBridgeDepth(1))

	entered := make(chan struct{}, 1)
	gate := make(chan struct{})
	s, err := e.StartCapture(CaptureConfig{}, func([]byte) {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-gate
	})
	if err != nil {
		t.Fatal(err)
	}
	stream := host.lastStream()

	stream.input(4, 1)
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for consumer")
	}
	// One frame fits the queue, the rest are dropped without blocking.
	for i := 0; i < 3; i++ {
		stream.input(4, 2)
	}
	if stats := s.Stats(); stats.Dropped != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	close(gate)
	s.Stop()
	s.Wait()
}

func TestCaptureStopFromCallback(t *testing.T) {
	host := newFakeHost(t)
	e := newTestEngine(t, host)

	var sess atomic.Pointer[CaptureSession]
	stopped := make(chan bool, 1)
	s, err := e.StartCapture(CaptureConfig{}, func([]byte) {
		if s := sess.Load(); s != nil {
			stopped <- s.Stop()
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	sess.Store(s)

	host.lastStream().input(4, 1)
	select {
	case ok := <-stopped:
		if !ok {
			t.Fatal("Stop from callback returned false")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for stop")
	}
	s.Wait()
	if e.OpenStreams() != 0 {
		t.Fatalf("unexpected open streams: %d", e.OpenStreams())
	}
}

func TestCaptureBusy(t *testing.T) {
	host := newFakeHost(t)
	e := newTestEngine(t, host)

	first, err := e.StartCapture(CaptureConfig{}, func([]byte) {})
	if err != nil {
		t.Fatal(err)
	}
	_, err = e.StartCapture(CaptureConfig{}, func([]byte) {})
	var hwErr *HardwareError
	if !errors.As(err, &hwErr) || hwErr.Step != StepAcquire || !errors.Is(err, ErrDeviceBusy) {
		t.Fatalf("unexpected error %v", err)
	}
	if host.streamCount() != 1 {
		t.Fatalf("unexpected stream count %d", host.streamCount())
	}

	first.Stop()
	second, err := e.StartCapture(CaptureConfig{}, func([]byte) {})
	if err != nil {
		t.Fatal(err)
	}
	second.Stop()
}

func TestCaptureRepeatedCycles(t *testing.T) {
	host := newFakeHost(t)
	e := newTestEngine(t, host)

	for i := 0; i < 10; i++ {
		s, err := e.StartCapture(CaptureConfig{SampleRate: 48000, ChannelCount: 2}, func([]byte) {})
		if err != nil {
			t.Fatal(err)
		}
		host.lastStream().input(64, byte(i))
		if !s.Stop() {
			t.Fatalf("cycle %d: Stop returned false", i)
		}
		if e.OpenStreams() != 0 {
			t.Fatalf("cycle %d: unexpected open streams %d", i, e.OpenStreams())
		}
	}
	if host.streamCount() != 10 {
		t.Fatalf("unexpected stream count %d", host.streamCount())
	}
}

func TestCaptureDeliversFramesDuringStart(t *testing.T) {
	host := newFakeHost(t)
	e := newTestEngine(t, host)
	host.beforeStart = func() { host.lastStream().input(4, 7) }
	frames, onFrame := frameSink(4)

	s, err := e.StartCapture(CaptureConfig{}, onFrame)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Stop()
	if frame := recvFrame(t, frames); !bytes.Equal(frame, bytes.Repeat([]byte{7}, 16)) {
		t.Fatalf("unexpected frame %v", frame)
	}
}

func TestCaptureStopRacesDelivery(t *testing.T) {
	host := newFakeHost(t)
	e := newTestEngine(t, host)

	for i := 0; i < 200; i++ {
		var halted, late atomic.Bool
		s, err := e.StartCapture(CaptureConfig{}, func([]byte) {
			if halted.Load() {
				late.Store(true)
			}
		})
		if err != nil {
			t.Fatal(err)
		}
		stream := host.lastStream()
		done := make(chan struct{})
		go func() {
			defer close(done)
			for j := 0; j < 50; j++ {
				stream.input(4, byte(j))
			}
		}()

		if !s.Stop() {
			t.Fatalf("cycle %d: Stop returned false", i)
		}
		// A call that was already running when Stop returned may still finish.
		s.bridge.mu.Lock()
		halted.Store(true)
		s.bridge.mu.Unlock()

		<-done
		s.Wait()
		if late.Load() {
			t.Fatalf("cycle %d: frame delivered after Stop returned", i)
		}
	}
}
