package networking

import (
	"encoding/json"
	"net/http"
	"sync/atomic"

	"github.com/petrzlen/saira-audio/pkg/audio_utils"
	"github.com/petrzlen/saira-audio/pkg/audioio"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// AudioLink bridges one websocket client to the audio engine. Every captured
// frame goes out as one binary message of interleaved float32 samples in the
// machine's byte order. Every binary message received replaces whatever is
// still playing; it is either raw S16LE mono 16 kHz PCM or a whole wav, flac
// or mp3 file at 16 kHz.
type AudioLink struct {
	capture  *audioio.CaptureSession
	playback *audioio.PlaybackSession
	log      zerolog.Logger

	reader chan []byte
	writer chan []byte
	done   chan struct{}

	dropped atomic.Uint64
}

// NewAudioLink starts capturing with cfg. Captured frames wait for the
// client in a queue of depth messages; frames beyond that are dropped.
func NewAudioLink(engine *audioio.Engine, cfg audioio.CaptureConfig, depth int, log zerolog.Logger) (*AudioLink, error) {
	l := &AudioLink{
		log:    log,
		reader: make(chan []byte),
		writer: make(chan []byte, depth),
		done:   make(chan struct{}),
	}
	capture, err := engine.StartCapture(cfg, l.onFrame)
	if err != nil {
		return nil, err
	}
	l.capture = capture
	l.playback = engine.NewPlayback()
	go l.readLoop()

	log.Info().Int("sample_rate", capture.Config().SampleRate).Int("channels", capture.Config().ChannelCount).
		Msg("audio link opened")
	return l, nil
}

func (l *AudioLink) GetReader() chan<- []byte { return l.reader }

func (l *AudioLink) GetWriter() <-chan []byte { return l.writer }

// Done is closed once the link has released its sessions.
func (l *AudioLink) Done() <-chan struct{} { return l.done }

// onFrame copies the frame, the capture session reuses its buffer.
func (l *AudioLink) onFrame(frame []byte) {
	msg := append([]byte(nil), frame...)
	select {
	case l.writer <- msg:
	default:
		if n := l.dropped.Add(1); n%100 == 1 {
			l.log.Warn().Uint64("dropped", n).Msg("websocket client is behind, dropping frames")
		}
	}
}

func (l *AudioLink) readLoop() {
	defer l.close()
	for msg := range l.reader {
		samples, err := decodeMessage(msg)
		if err != nil {
			l.log.Warn().Err(err).Int("bytes", len(msg)).Msg("cannot decode received audio, skipping")
			continue
		}
		if len(samples) == 0 {
			continue
		}
		if !l.playback.Play(samples) {
			l.log.Warn().Int("samples", len(samples)).Msg("cannot play received audio, skipping")
		}
	}
}

func decodeMessage(msg []byte) ([]int16, error) {
	format := audio_utils.SniffFormat(msg)
	if format == "" {
		return audio_utils.BytesToInt16(msg), nil
	}
	buf, err := audio_utils.DecodeBytes(msg, format)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s message", format)
	}
	return audio_utils.PlaybackSamples(buf, audioio.PlaybackSampleRate)
}

func (l *AudioLink) close() {
	l.capture.Stop()
	// No frame can reach the writer once the delivery goroutine is gone.
	l.capture.Wait()
	l.playback.Close()
	close(l.writer)

	stats := l.capture.Stats()
	l.log.Info().Uint64("delivered", stats.Delivered).Uint64("dropped", l.dropped.Load()).
		Uint64("playback_underruns", l.playback.Stats().UnderrunFrames).Msg("audio link closed")
	close(l.done)
}

// AudioLinkFactory creates an AudioLink per connection. A busy capture
// device rejects the connection with 409.
func AudioLinkFactory(engine *audioio.Engine, cfg audioio.CaptureConfig, depth int, log zerolog.Logger) HandlerFactory {
	return func(r *http.Request) (WebsocketMessageHandler, int, error) {
		link, err := NewAudioLink(engine, cfg, depth, log.With().Str("client_ip", getClientIpAddress(r)).Logger())
		if err != nil {
			var cfgErr *audioio.ConfigError
			switch {
			case errors.Is(err, audioio.ErrDeviceBusy):
				return nil, http.StatusConflict, err
			case errors.As(err, &cfgErr):
				return nil, http.StatusBadRequest, err
			default:
				return nil, http.StatusServiceUnavailable, err
			}
		}
		return link, http.StatusOK, nil
	}
}

// DevicesHandler serves the current device list as JSON.
func DevicesHandler(engine *audioio.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(engine.ListDevices()); err != nil {
			errLog(err, "encoding device list")
		}
	}
}

// NewMux routes /devices and the /audio websocket.
func NewMux(engine *audioio.Engine, cfg audioio.CaptureConfig, depth int, log zerolog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/devices", DevicesHandler(engine))
	mux.HandleFunc("/audio", NewWebsocketHandlerFunc(AudioLinkFactory(engine, cfg, depth, log)))
	return mux
}
