package audioio

import (
	"sync"

	"github.com/rs/zerolog"
)

// streamGuard owns a HardwareStream and releases it exactly once, in the
// order stop, uninit, dispose. Every exit path of a session goes through
// Release.
type streamGuard struct {
	stream    HardwareStream
	log       zerolog.Logger
	once      sync.Once
	onRelease func()
}

func newStreamGuard(stream HardwareStream, log zerolog.Logger, onRelease func()) *streamGuard {
	return &streamGuard{
		stream:    stream,
		log:       log,
		onRelease: onRelease,
	}
}

// Start starts the guarded stream.
func (g *streamGuard) Start() error {
	return g.stream.Start()
}

// Release tears the stream down. Teardown errors are logged, not returned:
// there is no caller left that could act on them. It reports whether this
// call performed the release.
func (g *streamGuard) Release() (released bool) {
	g.once.Do(func() {
		released = true
		if err := g.stream.Stop(); err != nil {
			g.log.Warn().Err(err).Msg("hardware stream stop failed")
		}
		g.stream.Uninit()
		if err := g.stream.Dispose(); err != nil {
			g.log.Warn().Err(err).Msg("hardware stream dispose failed")
		}
		if g.onRelease != nil {
			g.onRelease()
		}
		g.log.Debug().Msg("hardware stream released")
	})
	return
}
