package commands

import (
	"context"

	"github.com/petrzlen/saira-audio/pkg/audio_utils"
	"github.com/petrzlen/saira-audio/pkg/audioio"
	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play FILE",
	Short: "Play a wav, mp3 or flac file",
	Long: `Play a wav, mp3 or flac file on the default output device.

The file must be sampled at 16 kHz; nothing is resampled. Stereo files are
mixed down to mono.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := setupSignalHandler(context.Background())
		defer cancel()

		buf, err := audio_utils.DecodeFile(osFs, args[0])
		if err != nil {
			return err
		}
		samples, err := audio_utils.PlaybackSamples(buf, audioio.PlaybackSampleRate)
		if err != nil {
			return err
		}

		engine, err := newEngine()
		if err != nil {
			return err
		}
		defer engine.Close()
		return playAndWait(ctx, engine, samples)
	},
}
