// Package audioio captures microphone audio and plays PCM samples through the
// host audio subsystem.
//
// An Engine hands out sessions. A CaptureSession delivers every hardware
// cycle as one frame of interleaved float32 samples to a FrameFunc running on
// its own goroutine; the host thread never waits for the consumer. A
// PlaybackSession plays 16 kHz mono int16 samples; each Play replaces what is
// still queued and underruns are rendered as silence.
//
// Hardware streams are released exactly once, in the order stop, uninit,
// dispose, whether a session stops normally, fails to start or is torn down
// by Engine.Close.
package audioio
