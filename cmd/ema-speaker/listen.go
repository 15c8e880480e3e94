package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/koscakluka/ema-speaker/core/audio/miniaudio"
	deepgramstt "github.com/koscakluka/ema-speaker/core/speechtotext/deepgram"
	"github.com/koscakluka/ema-speaker/internal/listener"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var listenConfigFile string

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Transcribe the microphone and drive the speaker service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		v, err := loadListenConfig(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		transcriber, err := deepgramstt.NewTranscriptionClient(
			deepgramstt.WithAPIKey(v.GetString("deepgram_api_key")),
			deepgramstt.WithLanguage(v.GetString("language")),
		)
		if err != nil {
			return fmt.Errorf("failed to create transcription client: %w", err)
		}
		defer transcriber.Close()

		microphone, err := miniaudio.NewClient()
		if err != nil {
			return fmt.Errorf("failed to open microphone: %w", err)
		}
		defer microphone.Close()

		speaker := listener.NewSpeakerClient(v.GetString("server_address"),
			listener.WithAPIKey(v.GetString("api_key")))

		return listener.New(speaker, transcriber, microphone,
			listener.WithInterruptInterval(v.GetDuration("interrupt_interval")),
			listener.WithSilenceThreshold(v.GetDuration("silence_threshold")),
		).Run(ctx)
	},
}

func init() {
	listenCmd.Flags().StringVar(&listenConfigFile, "config", "config.json", "listener config file")
	listenCmd.Flags().String("server-address", "", "speaker service address, overrides server_address")
	listenCmd.Flags().String("language", "", "recognition language, overrides language")
}

func loadListenConfig(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault("server_address", "localhost:8000")
	v.SetDefault("language", "ru-RU")
	v.SetDefault("interrupt_interval", 500*time.Millisecond)
	v.SetDefault("silence_threshold", 2*time.Second)

	v.SetEnvPrefix("EMA")
	v.AutomaticEnv()
	_ = v.BindEnv("deepgram_api_key", "DEEPGRAM_API_KEY")

	v.SetConfigFile(listenConfigFile)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, os.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read %s: %w", listenConfigFile, err)
		}
	}

	if err := v.BindPFlag("server_address", cmd.Flags().Lookup("server-address")); err != nil {
		return nil, err
	}
	if err := v.BindPFlag("language", cmd.Flags().Lookup("language")); err != nil {
		return nil, err
	}

	return v, nil
}
