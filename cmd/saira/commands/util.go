package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/go-audio/audio"
	"github.com/petrzlen/saira-audio/pkg/audio_utils"
	"github.com/petrzlen/saira-audio/pkg/audioio"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// osFs is where recordings are written and input files are read from.
var osFs = afero.NewOsFs()

func dbg(err error) {
	if err != nil {
		log.Debug().Err(err).Msg("sth non-essential failed")
	}
}

// newEngine builds an engine from the configured hosts.
func newEngine() (*audioio.Engine, error) {
	host, err := audioio.NewHost(cfg.Host, log.Logger)
	if err != nil {
		return nil, err
	}
	opts := []audioio.Option{
		audioio.WithHost(host),
		audioio.WithLogger(log.Logger),
		audioio.WithBridgeDepth(cfg.BridgeDepth),
	}
	if cfg.PlaybackHost != "" && cfg.PlaybackHost != cfg.Host {
		playbackHost, err := audioio.NewHost(cfg.PlaybackHost, log.Logger)
		if err != nil {
			return nil, err
		}
		opts = append(opts, audioio.WithPlaybackHost(playbackHost))
	}
	return audioio.NewEngine(opts...), nil
}

// setupSignalHandler cancels the returned context on SIGINT or SIGTERM.
func setupSignalHandler(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigs)
		select {
		case sig := <-sigs:
			log.Info().Str("signal", sig.String()).Msg("received signal, shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// waitForEnter returns when Enter is pressed, after d (if positive) or when
// ctx is done.
func waitForEnter(ctx context.Context, prompt string, d time.Duration) {
	enter := make(chan struct{})
	go func() {
		fmt.Println(prompt)
		_, err := fmt.Scanln()
		dbg(err)
		close(enter)
	}()

	var timeout <-chan time.Time
	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case <-enter:
	case <-timeout:
	case <-ctx.Done():
	}
}

// captureFlags are the flags shared by the commands that capture.
type captureFlags struct {
	deviceID   string
	sampleRate int
	channels   int
	duration   time.Duration
}

func (f *captureFlags) register(cmd *cobra.Command, defaultRate int) {
	cmd.Flags().StringVarP(&f.deviceID, "device", "d", "", "input device id from 'saira devices' (default: system default)")
	cmd.Flags().IntVarP(&f.sampleRate, "rate", "r", defaultRate, "capture sample rate (0: from config)")
	cmd.Flags().IntVarP(&f.channels, "channels", "c", 0, "capture channel count (0: from config)")
	cmd.Flags().DurationVarP(&f.duration, "duration", "t", 0, "stop after this long (0: until Enter)")
}

func (f *captureFlags) config() audioio.CaptureConfig {
	c := audioio.CaptureConfig{
		SampleRate:   cfg.SampleRate,
		ChannelCount: cfg.Channels,
		DeviceID:     cfg.DeviceID,
	}
	if f.sampleRate != 0 {
		c.SampleRate = f.sampleRate
	}
	if f.channels != 0 {
		c.ChannelCount = f.channels
	}
	if f.deviceID != "" {
		c.DeviceID = f.deviceID
	}
	return c
}

// recorder keeps captured frames as 16-bit samples.
type recorder struct {
	mu      sync.Mutex
	samples []int16
}

func (r *recorder) onFrame(frame []byte) {
	samples := audio_utils.FloatToInt16(audio_utils.Float32Samples(frame))
	r.mu.Lock()
	r.samples = append(r.samples, samples...)
	r.mu.Unlock()
}

func (r *recorder) Samples() []int16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.samples
}

// record captures until Enter, the flag duration or ctx is done.
func record(ctx context.Context, engine *audioio.Engine, flags *captureFlags) (*recorder, audioio.CaptureConfig, error) {
	rec := &recorder{}
	session, err := engine.StartCapture(flags.config(), rec.onFrame)
	if err != nil {
		return nil, audioio.CaptureConfig{}, err
	}
	waitForEnter(ctx, "Recording, press Enter to stop...", flags.duration)
	engine.StopCapture(session)
	session.Wait()

	stats := session.Stats()
	log.Info().Int("samples", len(rec.Samples())).Uint64("dropped", stats.Dropped).Uint64("skipped", stats.Skipped).
		Msg("recording finished")
	return rec, session.Config(), nil
}

// saveWav writes samples as a wav file, creating its directory.
func saveWav(path string, samples []int16, sampleRate, channels int) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := osFs.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "failed to create directory")
		}
	}
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	return audio_utils.WriteWavFile(osFs, path, &audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{SampleRate: sampleRate, NumChannels: channels},
		SourceBitDepth: 16,
	})
}

// playAndWait plays samples and returns once they have been rendered or ctx
// is done.
func playAndWait(ctx context.Context, engine *audioio.Engine, samples []int16) error {
	p := engine.NewPlayback()
	defer p.Close()
	if !engine.Play(p, samples) {
		return errors.New("cannot start playback")
	}

	duration := time.Duration(len(samples)) * time.Second / audioio.PlaybackSampleRate
	log.Info().Dur("duration", duration).Msg("playing")
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for p.Pending() > 0 {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	// Let the device play out its own buffer.
	select {
	case <-ctx.Done():
	case <-time.After(200 * time.Millisecond):
	}
	stats := p.Stats()
	log.Info().Uint64("rendered_frames", stats.RenderedFrames).Msg("playback finished")
	return nil
}
