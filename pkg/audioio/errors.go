package audioio

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrDeviceBusy is returned when a session of the same direction is already active on the engine.
	ErrDeviceBusy = errors.New("a session of this direction is already active")
	// ErrDeviceNotFound is returned when a requested device id is unknown to the host.
	ErrDeviceNotFound = errors.New("audio device not found")
	// ErrUnsupported is returned when the host cannot serve the requested direction or format.
	ErrUnsupported = errors.New("unsupported by audio host")
	// ErrAudioDisabled is returned by hosts in builds without audio support.
	ErrAudioDisabled = errors.New("audio was disabled during compilation")
)

// ConfigError is returned when caller input is rejected before any hardware is touched.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid capture config: %s %s", e.Field, e.Reason)
}

// Step names the hardware acquisition step that failed.
type Step string

const (
	StepAcquire       Step = "acquire"
	StepInitContext   Step = "init context"
	StepResolveDevice Step = "resolve device"
	StepInitDevice    Step = "init device"
	StepNegotiate     Step = "negotiate format"
	StepStart         Step = "start stream"
)

// HardwareError is returned when device/stream acquisition or format
// negotiation fails. Everything acquired before Step has been released.
type HardwareError struct {
	Step Step
	Err  error
}

func (e *HardwareError) Error() string {
	return fmt.Sprintf("audio hardware failed at %s: %v", e.Step, e.Err)
}

func (e *HardwareError) Unwrap() error { return e.Err }

// hardwareError wraps err unless it already is a *HardwareError.
func hardwareError(step Step, err error) error {
	var hwErr *HardwareError
	if errors.As(err, &hwErr) {
		return hwErr
	}
	return &HardwareError{Step: step, Err: err}
}

// TransientRenderError describes a single host callback whose buffer could not
// be rendered. It never reaches the caller: the frame is skipped and the
// session keeps running.
type TransientRenderError struct {
	FrameCount uint32
	Got        int
	Want       int
}

func (e TransientRenderError) Error() string {
	return fmt.Sprintf("render failed for %d frames: got %d bytes, want %d", e.FrameCount, e.Got, e.Want)
}
