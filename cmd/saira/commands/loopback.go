package commands

import (
	"context"

	"github.com/petrzlen/saira-audio/pkg/audioio"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var loopbackFlags captureFlags

var loopbackCmd = &cobra.Command{
	Use:   "loopback",
	Short: "Record, then play the recording back",
	Long: `Record from an input device until Enter is pressed or --duration passes,
then play the recording on the default output device.

Capture runs at the playback format, 16 kHz mono.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if loopbackFlags.channels > 1 {
			return errors.New("loopback records a single channel")
		}
		loopbackFlags.channels = audioio.PlaybackChannels
		loopbackFlags.sampleRate = audioio.PlaybackSampleRate

		ctx, cancel := setupSignalHandler(context.Background())
		defer cancel()

		engine, err := newEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		rec, _, err := record(ctx, engine, &loopbackFlags)
		if err != nil {
			return err
		}
		samples := rec.Samples()
		if len(samples) == 0 {
			return errors.New("nothing was recorded")
		}
		return playAndWait(ctx, engine, samples)
	},
}

func init() {
	loopbackFlags.register(loopbackCmd, audioio.PlaybackSampleRate)
	_ = loopbackCmd.Flags().MarkHidden("rate")
}
