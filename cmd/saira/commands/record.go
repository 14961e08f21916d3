package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	recordFlags  captureFlags
	recordOutput string
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record from an input device into a wav file",
	Long: `Record from an input device until Enter is pressed or --duration passes,
then write a 16-bit PCM wav file.

Examples:
  saira record -t 5s
  saira record -d in:0a1b2c -r 48000 -c 2 -o take1.wav`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := setupSignalHandler(context.Background())
		defer cancel()

		engine, err := newEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		rec, capCfg, err := record(ctx, engine, &recordFlags)
		if err != nil {
			return err
		}

		out := recordOutput
		if out == "" {
			out = filepath.Join(cfg.OutputDir, fmt.Sprintf("recording-%s.wav", time.Now().Format("20060102-150405")))
		}
		if err := saveWav(out, rec.Samples(), capCfg.SampleRate, capCfg.ChannelCount); err != nil {
			return err
		}
		log.Info().Str("path", out).Msg("recording saved")
		return nil
	},
}

func init() {
	recordFlags.register(recordCmd, 0)
	recordCmd.Flags().StringVarP(&recordOutput, "out", "o", "", "output wav file (default: <output dir>/recording-<time>.wav)")
}
