package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gifcast/internal/pipeline"
	"gifcast/internal/server"
	"gifcast/internal/source"
)

func run(cmd *cobra.Command) error {
	addr, _ := cmd.Flags().GetString("addr")
	uploadsDir, _ := cmd.Flags().GetString("uploads")
	outputsDir, _ := cmd.Flags().GetString("outputs")
	workDir, _ := cmd.Flags().GetString("work")
	maxUploadMB, _ := cmd.Flags().GetInt64("max-upload-mb")
	dev, _ := cmd.Flags().GetBool("dev")

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := pipeline.Config{
		UploadsDir:     uploadsDir,
		OutputsDir:     outputsDir,
		WorkDir:        workDir,
		PublicBasePath: "/gifs",
		MaxUploadBytes: maxUploadMB << 20,

		FFmpegPath:  getenvDefault("FFMPEG_PATH", "ffmpeg"),
		FFprobePath: getenvDefault("FFPROBE_PATH", "ffprobe"),

		SpeechBackend:      getenvDefault("SPEECH_BACKEND", pipeline.BackendGoogle),
		SpeechAPIKey:       os.Getenv("SPEECH_API_KEY"),
		SpeechLanguage:     getenvDefault("SPEECH_LANGUAGE", "en-US"),
		SpeechBaseURL:      os.Getenv("SPEECH_BASE_URL"),
		SpeechAllowedHosts: splitHosts(os.Getenv("SPEECH_ALLOWED_HOSTS")),

		WhisperBin:   os.Getenv("WHISPER_BIN"),
		WhisperModel: os.Getenv("WHISPER_MODEL"),

		Logger: logger,
	}

	runner, err := pipeline.New(cfg)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	resolver := source.NewResolver(uploadsDir, cfg.MaxUploadBytes)
	app := server.NewApp(logger, runner, resolver, outputsDir, cfg.MaxUploadBytes, dev)

	srv := &http.Server{
		Addr:              addr,
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		return srv.Close()
	}
	logger.Info("server stopped")
	return nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func splitHosts(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
