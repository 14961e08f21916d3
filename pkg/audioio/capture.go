package audioio

import (
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	DefaultCaptureSampleRate   = 44100
	DefaultCaptureChannelCount = 1
)

// State of a capture or playback session.
type State int32

const (
	StateIdle State = iota
	StateConfiguring
	StateRunning
	StateStopping
	StateClosed
	StateActive
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConfiguring:
		return "configuring"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateClosed:
		return "closed"
	case StateActive:
		return "active"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// CaptureConfig configures a capture session. Zero values select defaults.
type CaptureConfig struct {
	SampleRate   int
	ChannelCount int
	// DeviceID is an "in:" descriptor id; empty selects the system default input.
	DeviceID string
}

// withDefaults validates c and fills in defaults.
func (c CaptureConfig) withDefaults() (CaptureConfig, error) {
	if c.SampleRate < 0 {
		return c, &ConfigError{Field: "sample rate", Reason: "must be > 0"}
	}
	if c.SampleRate == 0 {
		c.SampleRate = DefaultCaptureSampleRate
	}
	if c.ChannelCount < 0 {
		return c, &ConfigError{Field: "channel count", Reason: "must be >= 1"}
	}
	if c.ChannelCount == 0 {
		c.ChannelCount = DefaultCaptureChannelCount
	}
	if c.DeviceID != "" {
		dir, _, err := ParseDeviceID(c.DeviceID)
		if err != nil {
			return c, &ConfigError{Field: "device id", Reason: err.Error()}
		}
		if dir != Input {
			return c, &ConfigError{Field: "device id", Reason: "is not an input device"}
		}
	}
	return c, nil
}

// FrameBytes returns the byte length of frameCount captured frames.
func (c CaptureConfig) FrameBytes(frameCount uint32) int {
	return int(frameCount) * c.ChannelCount * FormatF32.SampleSize()
}

// CaptureStats are counters of a capture session.
type CaptureStats struct {
	Delivered uint64
	Dropped   uint64
	Skipped   uint64
}

// CaptureSession owns one input stream and delivers its frames to a FrameFunc.
type CaptureSession struct {
	id     uint64
	engine *Engine
	config CaptureConfig
	log    zerolog.Logger
	rtLog  zerolog.Logger

	state  atomic.Int32
	guard  *streamGuard
	bridge *CallbackBridge

	skipped     atomic.Uint64
	hostStopped atomic.Bool
}

// StartCapture validates cfg, opens and starts an input stream and returns the
// running session. It fails with *ConfigError before touching hardware, or
// with *HardwareError after rolling back whatever was acquired.
func (e *Engine) StartCapture(cfg CaptureConfig, onFrame FrameFunc) (*CaptureSession, error) {
	if onFrame == nil {
		return nil, &ConfigError{Field: "onFrame", Reason: "must not be nil"}
	}
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	s := &CaptureSession{engine: e, config: cfg}
	s.state.Store(int32(StateConfiguring))
	if !e.capture.CompareAndSwap(nil, s) {
		return nil, &HardwareError{Step: StepAcquire, Err: ErrDeviceBusy}
	}
	s.id = e.newID()
	s.log = e.log.With().Str("session", "capture").Uint64("session_id", s.id).Logger()
	s.rtLog = e.rtLog.With().Str("session", "capture").Uint64("session_id", s.id).Logger()

	if err := s.start(onFrame); err != nil {
		s.state.Store(int32(StateClosed))
		e.capture.CompareAndSwap(s, nil)
		s.log.Error().Err(err).Msg("capture start failed")
		return nil, err
	}
	// StopAll only sees the session once its stream is running.
	e.register(s.id, s)
	return s, nil
}

func (s *CaptureSession) start(onFrame FrameFunc) error {
	var hostID string
	if s.config.DeviceID != "" {
		_, hostID, _ = ParseDeviceID(s.config.DeviceID)
	}
	req := StreamRequest{
		Direction:  Input,
		DeviceID:   hostID,
		SampleRate: uint32(s.config.SampleRate),
		Channels:   uint32(s.config.ChannelCount),
		Format:     FormatF32,
	}

	s.bridge = newCallbackBridge(s.engine.bridgeDepth, onFrame)
	guard, err := s.engine.openStream(req, StreamCallbacks{
		Data:    s.onInput,
		Stopped: s.onHostStopped,
	}, s.log)
	if err != nil {
		s.bridge.Release()
		return err
	}
	s.guard = guard

	err = s.guard.Start()
	if err == nil && !s.state.CompareAndSwap(int32(StateConfiguring), int32(StateRunning)) {
		err = errors.Errorf("session left %s during start", StateConfiguring)
	}
	if err != nil {
		s.state.Store(int32(StateStopping))
		s.bridge.halt()
		s.guard.Release()
		s.bridge.Release()
		return &HardwareError{Step: StepStart, Err: err}
	}

	s.log.Info().Int("sample_rate", s.config.SampleRate).Int("channels", s.config.ChannelCount).
		Str("device_id", s.config.DeviceID).Msg("capture started")
	return nil
}

// onInput runs on the host thread. Frames arriving before Start has returned
// are delivered too.
func (s *CaptureSession) onInput(_, input []byte, frameCount uint32) {
	if st := State(s.state.Load()); st != StateRunning && st != StateConfiguring {
		return
	}
	want := s.config.FrameBytes(frameCount)
	if want == 0 || len(input) < want {
		s.skipped.Add(1)
		s.rtLog.Debug().Err(TransientRenderError{FrameCount: frameCount, Got: len(input), Want: want}).
			Msg("skipping capture frame")
		return
	}
	buf := s.bridge.buffer(want)
	copy(*buf, input[:want])
	s.bridge.Send(buf)
}

func (s *CaptureSession) onHostStopped() {
	s.hostStopped.Store(true)
	if State(s.state.Load()) == StateRunning {
		s.rtLog.Warn().Msg("capture stream stopped by host")
	}
}

// Stop tears the session down: delivery halts, then the hardware stream is
// stopped, uninitialized and disposed, then the bridge is released. Only the
// call that stopped a running session returns true.
func (s *CaptureSession) Stop() bool {
	if !s.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return false
	}
	s.bridge.halt()
	s.guard.Release()
	s.bridge.Release()

	s.state.Store(int32(StateClosed))
	s.engine.untrack(s.id)
	s.engine.capture.CompareAndSwap(s, nil)

	stats := s.Stats()
	s.log.Info().Uint64("delivered", stats.Delivered).Uint64("dropped", stats.Dropped).
		Uint64("skipped", stats.Skipped).Bool("host_stopped", s.hostStopped.Load()).Msg("capture stopped")
	return true
}

// Wait blocks until the delivery goroutine has exited. It must not be called
// from within the FrameFunc.
func (s *CaptureSession) Wait() {
	<-s.bridge.Done()
}

func (s *CaptureSession) State() State {
	return State(s.state.Load())
}

func (s *CaptureSession) Config() CaptureConfig {
	return s.config
}

func (s *CaptureSession) Stats() CaptureStats {
	return CaptureStats{
		Delivered: s.bridge.delivered.Load(),
		Dropped:   s.bridge.dropped.Load(),
		Skipped:   s.skipped.Load(),
	}
}
