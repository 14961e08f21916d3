//go:build cgo && !noaudio

package audioio

import (
	"sync"

	"github.com/ebitengine/oto/v3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const otoDefaultEndpoint = "default"

// otoHost plays through oto. oto allows a single context per process with a
// fixed format, so the first stream decides it and later streams must match.
// It has no capture support.
type otoHost struct {
	log zerolog.Logger

	mu         sync.Mutex
	ctx        *oto.Context
	sampleRate int
	channels   int
}

// NewOtoHost returns an output-only Host backed by oto.
func NewOtoHost(log zerolog.Logger) Host {
	return &otoHost{log: log.With().Str("host", "oto").Logger()}
}

func (h *otoHost) Name() string { return "oto" }

func (h *otoHost) Endpoints(dir Direction) ([]Endpoint, error) {
	if dir != Output {
		return nil, nil
	}
	return []Endpoint{{ID: otoDefaultEndpoint, Name: "System default output", IsDefault: true}}, nil
}

func (h *otoHost) context(req StreamRequest) (*oto.Context, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ctx != nil {
		if h.sampleRate != int(req.SampleRate) || h.channels != int(req.Channels) {
			return nil, errors.Errorf("oto context is %d Hz/%d ch, want %d Hz/%d ch",
				h.sampleRate, h.channels, req.SampleRate, req.Channels)
		}
		return h.ctx, nil
	}

	// Remember that you should **not** create more than one context
	h.log.Info().Msg("oto context - will wait until ready")
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   int(req.SampleRate),
		ChannelCount: int(req.Channels),
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, err
	}
	<-ready
	h.log.Info().Msg("oto context ready")

	h.ctx, h.sampleRate, h.channels = ctx, int(req.SampleRate), int(req.Channels)
	return ctx, nil
}

func (h *otoHost) OpenStream(req StreamRequest, cb StreamCallbacks) (HardwareStream, error) {
	if req.Direction != Output {
		return nil, &HardwareError{Step: StepInitDevice, Err: errors.Wrap(ErrUnsupported, "oto cannot capture")}
	}
	if req.DeviceID != "" && req.DeviceID != otoDefaultEndpoint {
		return nil, &HardwareError{Step: StepResolveDevice, Err: errors.Wrapf(ErrDeviceNotFound, "oto device %s", req.DeviceID)}
	}
	if req.Format != FormatS16 {
		return nil, &HardwareError{Step: StepNegotiate, Err: errors.Wrapf(ErrUnsupported, "oto format %s", req.Format)}
	}
	ctx, err := h.context(req)
	if err != nil {
		return nil, &HardwareError{Step: StepInitContext, Err: err}
	}

	player := ctx.NewPlayer(&renderReader{proc: cb.Data, frameSize: req.FrameSize()})
	return &otoStream{player: player, stopped: cb.Stopped}, nil
}

type otoStream struct {
	player  *oto.Player
	stopped func()
}

func (s *otoStream) Start() error {
	s.player.Play()
	return nil
}

func (s *otoStream) Stop() error {
	s.player.Pause()
	if s.stopped != nil {
		s.stopped()
	}
	return nil
}

func (s *otoStream) Uninit() {
	// Close waits for the player's reader to be released.
	_ = s.player.Close()
}

func (s *otoStream) Dispose() error { return nil }
