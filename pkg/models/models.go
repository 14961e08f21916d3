package models

import (
	"time"

	"github.com/rs/zerolog/log"
)

type Trace struct {
	CreatedAt time.Time
	Creator   string

	ReceivedAt time.Time

	ProcessedAt time.Time
	Processor   string
}

func (t Trace) Log() {
	log.Trace().Time("created_at", t.CreatedAt).Str("creator", t.Creator).Time("processed_at", t.ProcessedAt).
		Str("processor", t.Processor).Dur("dur_to_process", t.ProcessedAt.Sub(t.CreatedAt)).Msg("tracing")
}

func NewTrace(creator string) Trace {
	return Trace{
		CreatedAt: time.Now(),
		Creator:   creator,
	}
}

type AudioDataEvent int

const (
	// AudioInput carries captured audio, encoded as Format.
	AudioInput AudioDataEvent = iota
	// AudioOutput carries audio to be played.
	AudioOutput
	// SubmitPrompt marks the end of an utterance; it carries no audio.
	SubmitPrompt
)

func (e AudioDataEvent) String() string {
	switch e {
	case AudioInput:
		return "audio_input"
	case AudioOutput:
		return "audio_output"
	case SubmitPrompt:
		return "submit_prompt"
	default:
		return "unknown"
	}
}

// AudioData is one chunk flowing between the audio engine and its consumers.
type AudioData struct {
	EventType AudioDataEvent
	ByteData  []byte
	Format    string
	Length    time.Duration
	Text      string // text representation
	Trace     Trace
}

func NewAudioDataSubmit(creator string) AudioData {
	return AudioData{
		EventType: SubmitPrompt,
		Trace:     NewTrace(creator),
	}
}
