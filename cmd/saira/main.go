// Command saira captures and plays PCM audio through the host's audio devices.
//
// Usage:
//
//	saira [flags] <command> [args]
//
// Commands:
//
//	devices     - list input and output devices
//	record      - record from an input device into a wav file
//	play        - play a 16 kHz wav, mp3 or flac file
//	tone        - play a sine tone or a short melody
//	loopback    - record, then play the recording back
//	transcribe  - transcribe live input with OpenAI whisper
//	serve       - expose capture and playback over a websocket
//
// Configuration is read from SAIRA_* environment variables and a .env file.
package main

import (
	"os"

	"github.com/petrzlen/saira-audio/cmd/saira/commands"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := commands.Execute(); err != nil {
		log.Error().Err(err).Msg("saira failed")
		os.Exit(1)
	}
}
