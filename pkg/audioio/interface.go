package audioio

// Direction of a hardware endpoint or stream.
type Direction int

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	switch d {
	case Input:
		return "input"
	case Output:
		return "output"
	default:
		return "unknown"
	}
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// SampleFormat is the PCM sample encoding of a hardware stream.
type SampleFormat int

const (
	FormatF32 SampleFormat = iota
	FormatS16
)

// SampleSize returns the size of a single sample in bytes.
func (f SampleFormat) SampleSize() int {
	switch f {
	case FormatF32:
		return 4
	case FormatS16:
		return 2
	default:
		return 0
	}
}

func (f SampleFormat) String() string {
	switch f {
	case FormatF32:
		return "f32"
	case FormatS16:
		return "s16"
	default:
		return "unknown"
	}
}

// Endpoint is one host endpoint as reported for a single direction.
type Endpoint struct {
	// ID is the host's stable identifier, without a direction prefix.
	ID        string
	Name      string
	IsDefault bool
}

// DataProc is invoked by the host on its real-time thread. For output streams
// output must be filled with frameCount frames; for input streams input holds
// the captured frames. Implementations must not block.
type DataProc func(output, input []byte, frameCount uint32)

// StreamCallbacks are the callbacks installed on a hardware stream.
type StreamCallbacks struct {
	Data DataProc
	// Stopped is called when the host stops the stream, including on device loss. Optional.
	Stopped func()
}

// StreamRequest describes the stream a session wants from the host.
type StreamRequest struct {
	Direction Direction
	// DeviceID is a host endpoint id; empty selects the system default.
	DeviceID   string
	SampleRate uint32
	Channels   uint32
	Format     SampleFormat
}

// FrameSize returns the number of bytes in one interleaved frame.
func (r StreamRequest) FrameSize() int {
	return int(r.Channels) * r.Format.SampleSize()
}

// Host is the host audio subsystem.
type Host interface {
	Name() string
	// Endpoints lists the endpoints of one direction. It must not cache.
	Endpoints(dir Direction) ([]Endpoint, error)
	// OpenStream acquires and configures a stream without starting it. On
	// failure everything partially acquired is released and a *HardwareError
	// naming the failed step is returned.
	OpenStream(req StreamRequest, cb StreamCallbacks) (HardwareStream, error)
}

// HardwareStream is a live connection to one endpoint. Once Stop returns the
// host invokes no further callbacks.
type HardwareStream interface {
	Start() error
	Stop() error
	Uninit()
	Dispose() error
}
