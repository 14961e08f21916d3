package commands

import (
	"context"
	"net/http"
	"time"

	"github.com/petrzlen/saira-audio/internal/networking"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	serveFlags captureFlags
	serveAddr  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose capture and playback over a websocket",
	Long: `Serve the audio devices over HTTP.

  GET /devices  device list as JSON
  GET /audio    websocket; binary messages out carry captured float32 frames,
                binary messages in carry 16-bit little endian 16 kHz mono PCM
                to play

Only one /audio client is served at a time.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := setupSignalHandler(context.Background())
		defer cancel()

		engine, err := newEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		addr := serveAddr
		if addr == "" {
			addr = cfg.ListenAddr
		}
		srv := &http.Server{
			Addr:              addr,
			Handler:           networking.NewMux(engine, serveFlags.config(), cfg.BridgeDepth, log.Logger),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			log.Info().Str("addr", addr).Msg("serving audio")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "http server")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			// Websocket connections are hijacked, Shutdown does not wait for them.
			engine.StopAll()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}

func init() {
	serveFlags.register(serveCmd, 0)
	_ = serveCmd.Flags().MarkHidden("duration")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: SAIRA_LISTEN_ADDR or :8081)")
}
