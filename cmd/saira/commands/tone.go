package commands

import (
	"context"
	"time"

	"github.com/petrzlen/saira-audio/pkg/audio_utils"
	"github.com/petrzlen/saira-audio/pkg/audioio"
	"github.com/spf13/cobra"
)

var (
	toneFrequency float64
	toneDuration  time.Duration
	toneAmplitude float64
)

var toneCmd = &cobra.Command{
	Use:   "tone",
	Short: "Play a sine tone or a short melody",
	Long: `Play a sine tone on the default output device. Without --freq a C major
scale is played instead.

Examples:
  saira tone
  saira tone --freq 440 -t 2s`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := setupSignalHandler(context.Background())
		defer cancel()

		var samples []int16
		if toneFrequency > 0 {
			samples = audio_utils.SineWave(toneFrequency, toneDuration, audioio.PlaybackSampleRate, toneAmplitude)
		} else {
			samples = audio_utils.Melody(audio_utils.Scale(), audioio.PlaybackSampleRate, toneAmplitude)
		}

		engine, err := newEngine()
		if err != nil {
			return err
		}
		defer engine.Close()
		return playAndWait(ctx, engine, samples)
	},
}

func init() {
	toneCmd.Flags().Float64Var(&toneFrequency, "freq", 0, "tone frequency in Hz (0: play a scale)")
	toneCmd.Flags().DurationVarP(&toneDuration, "duration", "t", time.Second, "tone duration")
	toneCmd.Flags().Float64Var(&toneAmplitude, "amplitude", 0.3, "amplitude between 0 and 1")
}
