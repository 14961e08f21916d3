package audioio

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Playback streams always use this format.
const (
	PlaybackSampleRate = 16000
	PlaybackChannels   = 1
	PlaybackFormat     = FormatS16
)

// sampleQueue is one Play call's worth of samples. samples is never mutated
// after publication; cursor is only advanced by the host thread.
type sampleQueue struct {
	samples []int16
	cursor  atomic.Int64
}

func (q *sampleQueue) remaining() int {
	return len(q.samples) - int(q.cursor.Load())
}

// drainInto writes up to want samples into out and returns how many were written.
func (q *sampleQueue) drainInto(out []byte, want int) int {
	cursor := int(q.cursor.Load())
	n := len(q.samples) - cursor
	if n > want {
		n = want
	}
	if n <= 0 {
		return 0
	}
	for i, sample := range q.samples[cursor : cursor+n] {
		binary.NativeEndian.PutUint16(out[i*2:], uint16(sample))
	}
	q.cursor.Store(int64(cursor + n))
	return n
}

// PlaybackStats are counters of a playback session.
type PlaybackStats struct {
	RenderedFrames uint64
	UnderrunFrames uint64
}

// PlaybackSession owns one output stream. Play swaps in new samples without
// ever making the host thread wait: the pending queue is published through
// an atomic pointer.
type PlaybackSession struct {
	id     uint64
	engine *Engine
	log    zerolog.Logger

	// mu serializes Play and Stop. The render callback never takes it.
	mu      sync.Mutex
	state   atomic.Int32
	guard   *streamGuard
	pending atomic.Pointer[sampleQueue]

	rendered  atomic.Uint64
	underruns atomic.Uint64
}

// Play replaces whatever is still queued with samples (16-bit signed PCM,
// mono, 16 kHz). The first Play acquires and starts the output stream. It
// returns false, leaving all state unchanged, for empty samples, and false if
// the stream could not be set up.
func (p *PlaybackSession) Play(samples []int16) bool {
	if len(samples) == 0 {
		return false
	}
	q := &sampleQueue{samples: append([]int16(nil), samples...)}

	p.mu.Lock()
	defer p.mu.Unlock()

	if State(p.state.Load()) == StateActive {
		p.pending.Store(q)
		return true
	}

	p.pending.Store(q)
	if err := p.activateLocked(); err != nil {
		p.pending.Store(nil)
		p.log.Error().Err(err).Msg("playback start failed")
		return false
	}
	return true
}

func (p *PlaybackSession) activateLocked() error {
	e := p.engine
	if !e.playback.CompareAndSwap(nil, p) {
		return &HardwareError{Step: StepAcquire, Err: ErrDeviceBusy}
	}

	guard, err := e.openStream(StreamRequest{
		Direction:  Output,
		SampleRate: PlaybackSampleRate,
		Channels:   PlaybackChannels,
		Format:     PlaybackFormat,
	}, StreamCallbacks{
		Data: p.render,
		Stopped: func() {
			if State(p.state.Load()) == StateActive {
				e.rtLog.Warn().Uint64("session_id", p.id).Msg("playback stream stopped by host")
			}
		},
	}, p.log)
	if err != nil {
		e.playback.CompareAndSwap(p, nil)
		return err
	}

	prev := p.state.Load()
	p.guard = guard
	p.state.Store(int32(StateActive))
	if err := guard.Start(); err != nil {
		p.state.Store(prev)
		guard.Release()
		p.guard = nil
		e.playback.CompareAndSwap(p, nil)
		return &HardwareError{Step: StepStart, Err: err}
	}
	p.log.Info().Msg("playback started")
	return nil
}

// render runs on the host thread. Anything the pending queue cannot supply is
// silence.
func (p *PlaybackSession) render(output, _ []byte, frameCount uint32) {
	want := int(frameCount) * PlaybackChannels
	if capacity := len(output) / PlaybackFormat.SampleSize(); want > capacity {
		want = capacity
	}

	written := 0
	if q := p.pending.Load(); q != nil {
		written = q.drainInto(output, want)
	}
	clear(output[written*PlaybackFormat.SampleSize():])

	p.rendered.Add(uint64(frameCount))
	if written < want {
		p.underruns.Add(uint64((want - written) / PlaybackChannels))
	}
}

// Stop halts the output stream, discards pending samples and releases the
// hardware. Only the call that stopped an active session returns true.
// A later Play starts a new stream.
func (p *PlaybackSession) Stop() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.state.CompareAndSwap(int32(StateActive), int32(StateStopped)) {
		return false
	}
	// Releasing stops the stream first, so no render runs past this point.
	p.guard.Release()
	p.guard = nil
	p.pending.Store(nil)
	p.engine.playback.CompareAndSwap(p, nil)

	stats := p.Stats()
	p.log.Info().Uint64("rendered_frames", stats.RenderedFrames).
		Uint64("underrun_frames", stats.UnderrunFrames).Msg("playback stopped")
	return true
}

// Close stops the session and forgets it; the engine no longer tracks it.
func (p *PlaybackSession) Close() {
	p.Stop()
	p.engine.untrack(p.id)
}

// Pending returns how many samples are still queued.
func (p *PlaybackSession) Pending() int {
	if q := p.pending.Load(); q != nil {
		return q.remaining()
	}
	return 0
}

func (p *PlaybackSession) State() State {
	return State(p.state.Load())
}

func (p *PlaybackSession) Stats() PlaybackStats {
	return PlaybackStats{
		RenderedFrames: p.rendered.Load(),
		UnderrunFrames: p.underruns.Load(),
	}
}
