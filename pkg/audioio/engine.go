package audioio

import (
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// session is what the engine tracks for forced teardown.
type session interface {
	Stop() bool
}

// Engine owns the hosts and all sessions created through it. At most one
// capture and one playback session may be active at a time.
type Engine struct {
	host         Host
	playbackHost Host
	log          zerolog.Logger
	rtLog        zerolog.Logger
	bridgeDepth  int

	capture  atomic.Pointer[CaptureSession]
	playback atomic.Pointer[PlaybackSession]

	nextID      atomic.Uint64
	sessions    *xsync.MapOf[uint64, session]
	openStreams atomic.Int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithHost sets the host used for capture, enumeration and, unless
// WithPlaybackHost is given, playback.
func WithHost(h Host) Option {
	return func(e *Engine) { e.host = h }
}

// WithPlaybackHost sets a separate host for output streams and output enumeration.
func WithPlaybackHost(h Host) Option {
	return func(e *Engine) { e.playbackHost = h }
}

func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithBridgeDepth sets how many captured frames may queue for the consumer.
func WithBridgeDepth(depth int) Option {
	return func(e *Engine) { e.bridgeDepth = depth }
}

// NewEngine creates an engine. Without WithHost it uses DefaultHost.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		log:         log.Logger,
		bridgeDepth: DefaultBridgeDepth,
		sessions:    xsync.NewMapOf[uint64, session](),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.host == nil {
		e.host = DefaultHost(e.log)
	}
	if e.playbackHost == nil {
		e.playbackHost = e.host
	}
	// The host thread must never be flooded with log writes.
	e.rtLog = e.log.Sample(&zerolog.BurstSampler{Burst: 5, Period: time.Second})
	return e
}

func (e *Engine) hostFor(dir Direction) Host {
	if dir == Output {
		return e.playbackHost
	}
	return e.host
}

// openStream opens a stream on the host for req.Direction and guards it.
func (e *Engine) openStream(req StreamRequest, cb StreamCallbacks, log zerolog.Logger) (*streamGuard, error) {
	stream, err := e.hostFor(req.Direction).OpenStream(req, cb)
	if err != nil {
		return nil, hardwareError(StepInitDevice, err)
	}
	e.openStreams.Add(1)
	return newStreamGuard(stream, log, func() { e.openStreams.Add(-1) }), nil
}

func (e *Engine) newID() uint64 {
	return e.nextID.Add(1)
}

// register makes s visible to StopAll.
func (e *Engine) register(id uint64, s session) {
	e.sessions.Store(id, s)
}

func (e *Engine) track(s session) uint64 {
	id := e.newID()
	e.register(id, s)
	return id
}

func (e *Engine) untrack(id uint64) {
	e.sessions.Delete(id)
}

// OpenStreams returns the number of hardware streams currently held by sessions.
func (e *Engine) OpenStreams() int {
	return int(e.openStreams.Load())
}

// StopCapture stops s. It returns true only for the call that stopped a
// running session.
func (e *Engine) StopCapture(s *CaptureSession) bool {
	if s == nil {
		return false
	}
	return s.Stop()
}

// NewPlayback creates an idle playback session. Hardware is acquired lazily
// by the first Play.
func (e *Engine) NewPlayback() *PlaybackSession {
	p := &PlaybackSession{engine: e}
	p.id = e.track(p)
	p.log = e.log.With().Str("session", "playback").Uint64("session_id", p.id).Logger()
	return p
}

// Play replaces the pending samples of p. See PlaybackSession.Play.
func (e *Engine) Play(p *PlaybackSession, samples []int16) bool {
	if p == nil {
		return false
	}
	return p.Play(samples)
}

// StopAll stops every session created by this engine and returns how many
// were running.
func (e *Engine) StopAll() int {
	stopped := 0
	e.sessions.Range(func(_ uint64, s session) bool {
		if s.Stop() {
			stopped++
		}
		return true
	})
	return stopped
}

// Close stops all sessions. Hosts hold no resources outside of sessions.
func (e *Engine) Close() error {
	n := e.StopAll()
	e.log.Info().Int("stopped_sessions", n).Int("open_streams", e.OpenStreams()).Msg("audio engine closed")
	return nil
}
