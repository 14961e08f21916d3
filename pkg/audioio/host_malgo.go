//go:build cgo && !noaudio

package audioio

import (
	"strings"

	"github.com/gen2brain/malgo"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// DefaultHost returns the miniaudio host.
func DefaultHost(log zerolog.Logger) Host {
	return NewMalgoHost(log)
}

// NewHost returns the host registered under name: "malgo" or "oto".
func NewHost(name string, log zerolog.Logger) (Host, error) {
	switch name {
	case "", "malgo":
		return NewMalgoHost(log), nil
	case "oto":
		return NewOtoHost(log), nil
	default:
		return nil, errors.Errorf("unknown audio host %q", name)
	}
}

// Go itself cannot talk to audio hardware; malgo binds miniaudio, which can.
type malgoHost struct {
	log zerolog.Logger
}

// NewMalgoHost returns a Host backed by miniaudio. Every stream gets its own
// miniaudio context, released together with the stream.
func NewMalgoHost(log zerolog.Logger) Host {
	return &malgoHost{log: log.With().Str("host", "malgo").Logger()}
}

func (h *malgoHost) Name() string { return "malgo" }

func (h *malgoHost) initContext() (*malgo.AllocatedContext, error) {
	return malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		h.log.Debug().Msg(strings.Replace("miniaudio: "+message, "\n", "", -1))
	})
}

func disposeContext(ctx *malgo.AllocatedContext) error {
	err := ctx.Uninit()
	ctx.Free()
	return err
}

func toMalgoDeviceType(dir Direction) malgo.DeviceType {
	if dir == Output {
		return malgo.Playback
	}
	return malgo.Capture
}

func toMalgoFormat(f SampleFormat) malgo.FormatType {
	if f == FormatS16 {
		return malgo.FormatS16
	}
	return malgo.FormatF32
}

func encodeDeviceID(id malgo.DeviceID) string {
	return encodeHostDeviceID(id[:])
}

func decodeDeviceID(id string) (malgo.DeviceID, error) {
	var res malgo.DeviceID
	err := decodeHostDeviceID(id, res[:])
	return res, err
}

func (h *malgoHost) listEndpoints(ctx *malgo.AllocatedContext, dir Direction) ([]Endpoint, error) {
	typ := toMalgoDeviceType(dir)
	devices, err := ctx.Devices(typ)
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s devices", dir)
	}

	res := make([]Endpoint, 0, len(devices))
	seen := make(map[string]struct{}, len(devices))
	for _, dev := range devices {
		full, err := ctx.DeviceInfo(typ, dev.ID, malgo.Shared)
		if err != nil {
			h.log.Debug().Err(err).Str("name", dev.Name()).Msg("skipping device without info")
			continue
		}
		id := encodeDeviceID(full.ID)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		res = append(res, Endpoint{
			ID:        id,
			Name:      full.Name(),
			IsDefault: full.IsDefault == 1,
		})
	}
	return res, nil
}

func (h *malgoHost) Endpoints(dir Direction) ([]Endpoint, error) {
	ctx, err := h.initContext()
	if err != nil {
		return nil, errors.Wrap(err, "init miniaudio context")
	}
	defer func() {
		if err := disposeContext(ctx); err != nil {
			h.log.Debug().Err(err).Msg("miniaudio context uninit failed")
		}
	}()
	return h.listEndpoints(ctx, dir)
}

func (h *malgoHost) OpenStream(req StreamRequest, cb StreamCallbacks) (stream HardwareStream, err error) {
	ctx, err := h.initContext()
	if err != nil {
		return nil, &HardwareError{Step: StepInitContext, Err: err}
	}
	// Roll back the context on any later failure.
	defer func() {
		if err != nil {
			if uerr := disposeContext(ctx); uerr != nil {
				h.log.Debug().Err(uerr).Msg("miniaudio context uninit failed")
			}
		}
	}()

	typ := toMalgoDeviceType(req.Direction)
	deviceConfig := malgo.DefaultDeviceConfig(typ)
	deviceConfig.SampleRate = req.SampleRate
	deviceConfig.Alsa.NoMMap = 1
	sub := &deviceConfig.Capture
	if req.Direction == Output {
		sub = &deviceConfig.Playback
	}
	sub.Format = toMalgoFormat(req.Format)
	sub.Channels = req.Channels

	var deviceID malgo.DeviceID
	if req.DeviceID != "" {
		deviceID, err = h.resolveDevice(ctx, req)
		if err != nil {
			return nil, &HardwareError{Step: StepResolveDevice, Err: err}
		}
		sub.DeviceID = deviceID.Pointer()
	}

	callbacks := malgo.DeviceCallbacks{
		Data: malgo.DataProc(cb.Data),
		Stop: cb.Stopped,
	}
	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, &HardwareError{Step: StepInitDevice, Err: errors.Wrapf(err, "init %s device", req.Direction)}
	}

	if err = negotiated(device, req); err != nil {
		device.Uninit()
		return nil, &HardwareError{Step: StepNegotiate, Err: err}
	}

	h.log.Debug().Stringer("direction", req.Direction).Uint32("sample_rate", device.SampleRate()).
		Uint32("channels", req.Channels).Stringer("format", req.Format).Msg("miniaudio device initialized")
	return &malgoStream{ctx: ctx, device: device}, nil
}

// resolveDevice makes sure the requested endpoint exists before asking
// miniaudio to open it.
func (h *malgoHost) resolveDevice(ctx *malgo.AllocatedContext, req StreamRequest) (malgo.DeviceID, error) {
	id, err := decodeDeviceID(req.DeviceID)
	if err != nil {
		return id, err
	}
	endpoints, err := h.listEndpoints(ctx, req.Direction)
	if err != nil {
		return id, err
	}
	for _, ep := range endpoints {
		if ep.ID == req.DeviceID {
			return id, nil
		}
	}
	return id, errors.Wrapf(ErrDeviceNotFound, "%s device %s", req.Direction, req.DeviceID)
}

func negotiated(device *malgo.Device, req StreamRequest) error {
	format, channels := device.CaptureFormat(), device.CaptureChannels()
	if req.Direction == Output {
		format, channels = device.PlaybackFormat(), device.PlaybackChannels()
	}
	switch {
	case format != toMalgoFormat(req.Format):
		return errors.Errorf("device format %d, want %s", format, req.Format)
	case channels != req.Channels:
		return errors.Errorf("device has %d channels, want %d", channels, req.Channels)
	case device.SampleRate() != req.SampleRate:
		return errors.Errorf("device sample rate %d, want %d", device.SampleRate(), req.SampleRate)
	}
	return nil
}

// malgoStream owns a miniaudio device and the context it was created in.
type malgoStream struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
}

func (s *malgoStream) Start() error { return s.device.Start() }

func (s *malgoStream) Stop() error {
	if !s.device.IsStarted() {
		return nil
	}
	return s.device.Stop()
}

func (s *malgoStream) Uninit() { s.device.Uninit() }

func (s *malgoStream) Dispose() error { return disposeContext(s.ctx) }
