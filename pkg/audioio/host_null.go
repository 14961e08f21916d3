//go:build !cgo || noaudio

// This host is only used in cgo-less and noaudio builds.

package audioio

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

func DefaultHost(log zerolog.Logger) Host {
	return nullHost{}
}

func NewHost(name string, log zerolog.Logger) (Host, error) {
	switch name {
	case "", "malgo", "oto", "null":
		return nullHost{}, nil
	default:
		return nil, errors.Errorf("unknown audio host %q", name)
	}
}

type nullHost struct{}

func (nullHost) Name() string { return "null" }

func (nullHost) Endpoints(Direction) ([]Endpoint, error) {
	return nil, ErrAudioDisabled
}

func (nullHost) OpenStream(StreamRequest, StreamCallbacks) (HardwareStream, error) {
	return nil, &HardwareError{Step: StepInitContext, Err: ErrAudioDisabled}
}
