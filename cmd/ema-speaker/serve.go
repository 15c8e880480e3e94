package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	orchestration "github.com/koscakluka/ema-speaker/core"
	"github.com/koscakluka/ema-speaker/core/texttospeech"
	"github.com/koscakluka/ema-speaker/internal/config"
	"github.com/koscakluka/ema-speaker/internal/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var envFile string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the speaker service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var envFiles []string
		if envFile != "" {
			envFiles = append(envFiles, envFile)
		}
		cfg, err := config.Load(envFiles...)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return serve(ctx, cfg)
	},
}

func init() {
	serveCmd.Flags().StringVar(&envFile, "env-file", "", "dotenv file to load (default .env)")
}

func serve(ctx context.Context, cfg *config.Config) error {
	completion, err := newCompletionClient(ctx, cfg)
	if err != nil {
		return err
	}

	tts, sampleRate, err := newTextToSpeechClient(cfg)
	if err != nil {
		return err
	}

	output, closeOutput, err := newAudioOutput(cfg, sampleRate)
	if err != nil {
		return err
	}
	defer closeOutput()

	opts := []orchestration.OrchestratorOption{
		orchestration.WithCompletionClient(completion),
		orchestration.WithTextToSpeechClient(tts),
		orchestration.WithAudioOutput(output),
		orchestration.WithVoiceProfile(texttospeech.VoiceProfile{
			Voice:    cfg.Voice,
			Language: cfg.Language,
			Speed:    cfg.Speed,
		}),
		orchestration.WithHistoryLimit(cfg.HistoryLimit),
		orchestration.WithCompletionTimeout(cfg.CompletionTimeout),
		orchestration.WithSynthesisTimeout(cfg.SynthesisTimeout),
		orchestration.WithSpoolDir(cfg.SpoolDir),
	}
	if cfg.SystemPrompt != "" {
		opts = append(opts, orchestration.WithSystemPrompt(cfg.SystemPrompt))
	}
	orchestrator := orchestration.NewOrchestrator(opts...)

	if cfg.APIKey == "" {
		slog.Warn("EMA_API_KEY is not set, the speaker API is unprotected")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		orchestrator.Orchestrate(ctx,
			orchestration.WithTurnErrorCallback(func(turn orchestration.Turn, err error) {
				slog.Error("turn failed", "turn", turn.ID, "error", err)
			}),
			orchestration.WithTurnEndCallback(func(turn orchestration.Turn) {
				slog.Info("turn finished", "turn", turn.ID, "state", turn.State, "duration", turn.Duration())
			}),
			orchestration.WithStateChangeCallback(func(from, to orchestration.State) {
				slog.Debug("state changed", "from", from, "to", to)
			}),
		)
		<-ctx.Done()
		orchestrator.Close()
		return nil
	})
	g.Go(func() error {
		router := server.NewRouter(orchestrator, server.Config{
			APIKey:         cfg.APIKey,
			AllowedOrigins: cfg.AllowedOrigins(),
		})
		if err := server.ListenAndServe(ctx, cfg.Address, router); err != nil {
			return fmt.Errorf("speaker service: %w", err)
		}
		return nil
	})

	slog.Info("speaker service started",
		"address", cfg.Address,
		"completion", cfg.CompletionProvider,
		"speech", cfg.SpeechProvider,
		"audio", cfg.AudioBackend)
	return g.Wait()
}
