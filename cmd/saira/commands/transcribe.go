package commands

import (
	"context"
	"fmt"

	"github.com/petrzlen/saira-audio/pkg/audioio"
	"github.com/petrzlen/saira-audio/pkg/models"
	"github.com/petrzlen/saira-audio/pkg/transcriber"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var transcribeFlags captureFlags

var transcribeCmd = &cobra.Command{
	Use:   "transcribe",
	Short: "Transcribe live input with OpenAI whisper",
	Long: `Capture from an input device and print the transcript as it arrives.

Audio is sent to whisper in chunks of SAIRA_CHUNK_SECONDS. Requires
OPEN_AI_API_KEY.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.OpenAIAPIKey == "" {
			return errors.New("OPEN_AI_API_KEY is not set")
		}
		ctx, cancel := setupSignalHandler(context.Background())
		defer cancel()

		engine, err := newEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		capCfg := transcribeFlags.config()
		if capCfg.SampleRate == 0 {
			capCfg.SampleRate = audioio.DefaultCaptureSampleRate
		}
		if capCfg.ChannelCount == 0 {
			capCfg.ChannelCount = audioio.DefaultCaptureChannelCount
		}
		chunker := transcriber.NewChunker(capCfg.SampleRate, capCfg.ChannelCount, cfg.ChunkLength, 16, log.Logger)
		whisper := transcriber.NewOpenAIWhisper(openai.NewClient(cfg.OpenAIAPIKey), cfg.Language)

		g, gctx := errgroup.WithContext(ctx)
		textChunks := make(chan models.AudioData, 16)
		var finalTranscript string
		g.Go(func() error {
			finalTranscript = transcriber.TranscribeAudioRoutine(gctx, whisper, chunker.Chunks(), textChunks)
			return nil
		})
		g.Go(func() error {
			for chunk := range textChunks {
				if chunk.EventType == models.AudioInput {
					fmt.Println(chunk.Text)
				}
			}
			return nil
		})

		session, err := engine.StartCapture(capCfg, chunker.Write)
		if err != nil {
			chunker.Close()
			dbg(g.Wait())
			return err
		}
		waitForEnter(ctx, "Transcribing, press Enter to stop...", transcribeFlags.duration)
		engine.StopCapture(session)
		session.Wait()
		chunker.Close()

		if err := g.Wait(); err != nil {
			return err
		}
		fmt.Printf("\nTranscript: %s\n", finalTranscript)
		return nil
	},
}

func init() {
	transcribeFlags.register(transcribeCmd, 16000)
}
