package transcriber

import (
	"context"
	"io"
)

// Transcriber turns an encoded audio file into text.
type Transcriber interface {
	SendAudio(ctx context.Context, input io.Reader, fileExtension string, prompt string) (result string, err error)
}
