package commands

import (
	"github.com/petrzlen/saira-audio/internal/config"
	"github.com/petrzlen/saira-audio/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfg config.Config

	envFile          string
	logLevel         string
	hostName         string
	playbackHostName string
)

var rootCmd = &cobra.Command{
	Use:   "saira",
	Short: "Real-time PCM capture and playback",
	Long: `saira captures PCM audio from input devices and plays PCM audio on the
default output device.

Captured audio is 32-bit float, playback audio is 16-bit signed mono at 16 kHz.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var files []string
		if envFile != "" {
			files = append(files, envFile)
		}
		var err error
		if cfg, err = config.Load(files...); err != nil {
			return err
		}
		flags := cmd.Flags()
		if flags.Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		if flags.Changed("host") {
			cfg.Host = hostName
		}
		if flags.Changed("playback-host") {
			cfg.PlaybackHost = playbackHostName
		}
		return logging.Setup(cfg.LogLevel)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&envFile, "env", "", "env file to load instead of .env")
	pf.StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	pf.StringVar(&hostName, "host", "malgo", "audio host for capture and enumeration (malgo)")
	pf.StringVar(&playbackHostName, "playback-host", "", "audio host for playback (malgo, oto); defaults to --host")

	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(toneCmd)
	rootCmd.AddCommand(loopbackCmd)
	rootCmd.AddCommand(transcribeCmd)
	rootCmd.AddCommand(serveCmd)
}
