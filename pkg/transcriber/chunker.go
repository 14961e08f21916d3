package transcriber

import (
	"sync"
	"time"

	"github.com/petrzlen/saira-audio/pkg/audio_utils"
	"github.com/petrzlen/saira-audio/pkg/models"
	"github.com/rs/zerolog"
)

const chunkerCreator = "transcriber.chunker"

// Chunker collects captured float32 frames into fixed length WAV chunks. Write
// is meant to be used as the capture FrameFunc; it never blocks; a chunk the
// consumer is not ready for is dropped.
type Chunker struct {
	sampleRate  int
	channels    int
	chunkLength time.Duration
	chunkSize   int
	log         zerolog.Logger

	mu      sync.Mutex
	samples []int16
	started time.Time
	closed  bool
	out     chan models.AudioData
	dropped int
}

// NewChunker creates a Chunker for audio captured at sampleRate with channels
// interleaved channels. Chunks are buffered up to depth.
func NewChunker(sampleRate, channels int, chunkLength time.Duration, depth int, log zerolog.Logger) *Chunker {
	chunkSize := int(chunkLength.Seconds()*float64(sampleRate)) * channels
	if chunkSize <= 0 {
		chunkSize = sampleRate * channels
	}
	return &Chunker{
		sampleRate:  sampleRate,
		channels:    channels,
		chunkLength: chunkLength,
		chunkSize:   chunkSize,
		log:         log,
		samples:     make([]int16, 0, chunkSize),
		out:         make(chan models.AudioData, depth),
	}
}

// Chunks is closed by Close.
func (c *Chunker) Chunks() <-chan models.AudioData {
	return c.out
}

// Write appends one captured frame. The frame is converted right away, so
// it may be reused once Write returns.
func (c *Chunker) Write(frame []byte) {
	samples := audio_utils.FloatToInt16(audio_utils.Float32Samples(frame))

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if len(c.samples) == 0 {
		c.started = time.Now()
	}
	for len(samples) > 0 {
		n := min(c.chunkSize-len(c.samples), len(samples))
		c.samples = append(c.samples, samples[:n]...)
		samples = samples[n:]
		if len(c.samples) == c.chunkSize {
			c.emitLocked()
		}
	}
}

func (c *Chunker) emitLocked() {
	if len(c.samples) == 0 {
		return
	}
	data, err := audio_utils.ConvertTwoByteSamplesToWav(audio_utils.Int16ToBytes(c.samples), uint32(c.sampleRate), uint32(c.channels))
	length := time.Duration(len(c.samples)/c.channels) * time.Second / time.Duration(c.sampleRate)
	c.samples = c.samples[:0]
	if err != nil {
		c.log.Error().Err(err).Msg("cannot encode audio chunk, skipping")
		return
	}

	trace := models.NewTrace(chunkerCreator)
	trace.CreatedAt = c.started
	chunk := models.AudioData{
		EventType: models.AudioInput,
		ByteData:  data,
		Format:    "wav",
		Length:    length,
		Trace:     trace,
	}
	select {
	case c.out <- chunk:
		c.log.Debug().Int("wav_bytes", len(data)).Dur("length", length).Msg("audio chunk ready")
	default:
		c.dropped++
		c.log.Warn().Int("dropped", c.dropped).Msg("transcriber is behind, dropping audio chunk")
	}
}

// Flush emits whatever was collected so far followed by a SubmitPrompt.
func (c *Chunker) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.emitLocked()
	select {
	case c.out <- models.NewAudioDataSubmit(chunkerCreator):
	default:
		c.log.Warn().Msg("transcriber is behind, dropping submit")
	}
}

// Close flushes and closes the Chunks channel. Later writes are ignored.
func (c *Chunker) Close() {
	c.Flush()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.out)
}
