package transcriber

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/petrzlen/saira-audio/pkg/models"
	"github.com/rs/zerolog/log"
)

const processorName = "transcribe_open_ai_whisper"

// TranscribeAudioRoutine transcribes audio chunks until audioChunksChan is
// closed or ctx is done, then closes textChunksChan and returns the full
// transcript. SubmitPrompt events are passed through and reset the prompt.
func TranscribeAudioRoutine(ctx context.Context, transcriber Transcriber, audioChunksChan <-chan models.AudioData, textChunksChan chan<- models.AudioData) string {
	log.Info().Msg("TranscribeAudioRoutine started")
	defer close(textChunksChan)

	var transcriptBuilder strings.Builder
	var fullTranscript []string
	transcriptRepetitions := 0

	for {
		var audioChunk models.AudioData
		var ok bool
		select {
		case <-ctx.Done():
			log.Info().Err(ctx.Err()).Msg("TranscribeAudioRoutine cancelled")
			return strings.Join(fullTranscript, " ")
		case audioChunk, ok = <-audioChunksChan:
		}
		if !ok {
			break
		}
		audioChunk.Trace.ReceivedAt = time.Now()

		if audioChunk.EventType == models.SubmitPrompt {
			log.Info().Msg("TranscribeAudioRoutine encountered SubmitPrompt; will clear state to start working on the next")
			if transcriptBuilder.Len() > 0 {
				fullTranscript = append(fullTranscript, strings.TrimSpace(transcriptBuilder.String()))
			}
			transcriptBuilder.Reset()
			transcriptRepetitions = 0
			textChunksChan <- audioChunk
			continue
		}

		recordingBytes := audioChunk.ByteData
		previousWords := transcriptBuilder.String()
		transcript, err := transcriber.SendAudio(ctx, bytes.NewReader(recordingBytes), audioChunk.Format, previousWords)
		if err != nil {
			log.Error().Err(err).Int("chunk_byte_length", len(recordingBytes)).Msg("cannot transcribe audio, skipping chunk")
			continue
		}
		if transcript == "" {
			continue
		}
		// Whisper repeats the prompt's last words when it hears silence.
		if len(transcript) >= 3 && strings.HasSuffix(previousWords, transcript) {
			transcriptRepetitions++
			log.Info().Int("repetitions", transcriptRepetitions).Str("transcript", transcript).Msg("transcript repeated previous words, skipping chunk")
			continue
		}
		transcriptRepetitions = 0

		transcriptBuilder.WriteString(" ")
		transcriptBuilder.WriteString(transcript)

		audioChunk.Text = transcript
		audioChunk.Trace.ProcessedAt = time.Now()
		audioChunk.Trace.Processor = processorName
		audioChunk.Trace.Log()
		textChunksChan <- audioChunk
	}

	if transcriptBuilder.Len() > 0 {
		fullTranscript = append(fullTranscript, strings.TrimSpace(transcriptBuilder.String()))
	}
	finalTranscript := strings.Join(fullTranscript, " ")
	log.Info().Str("transcript", finalTranscript).Msg("TranscribeAudioRoutine finished")
	return finalTranscript
}
