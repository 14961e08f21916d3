package transcriber

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

var nonASCIIRegex = regexp.MustCompile(`[^\x00-\x7F]+`)

type openAIWhisper struct {
	client   *openai.Client
	language string
}

// NewOpenAIWhisper returns a Transcriber backed by the OpenAI whisper-1 model.
// An empty language lets the model detect it.
func NewOpenAIWhisper(client *openai.Client, language string) Transcriber {
	return &openAIWhisper{
		client:   client,
		language: language,
	}
}

func (o *openAIWhisper) SendAudio(ctx context.Context, input io.Reader, fileExtension string, prompt string) (result string, err error) {
	startTime := time.Now()
	req := openai.AudioRequest{
		Model:  openai.Whisper1,
		Reader: input,
		// Only the extension matters, the file is never opened.
		FilePath: fmt.Sprintf("chunk.%s", fileExtension),
		// Whisper uses up to 244 tokens of previous words to improve accuracy.
		Prompt:   prompt,
		Language: o.language,
	}

	log.Debug().Str("model", req.Model).Str("prompt", prompt).Msg("create transcription request")
	resp, err := o.client.CreateTranscription(ctx, req)
	if err != nil {
		return "", errors.Wrap(err, "cannot create transcription")
	}

	result = cleanTranscript(resp.Text, o.language)
	if result != resp.Text {
		log.Info().Str("original_text", resp.Text).Str("processed_text", result).Msg("transcription post-processing removed some text")
	}
	log.Debug().Str("transcription", result).Dur("time_elapsed", time.Since(startTime)).Msg("received transcription")
	return result, nil
}

// cleanTranscript drops what whisper tends to hallucinate on silence: for
// English that is any non-ASCII text and the "MBC" news credit.
func cleanTranscript(text string, language string) string {
	if language == "" || language == "en" {
		text = nonASCIIRegex.ReplaceAllString(text, "")
		text = strings.ReplaceAll(text, "MBC", "")
	}
	return strings.TrimSpace(text)
}
