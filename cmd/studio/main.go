package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/charstudio/internal/config"
	"github.com/snappy-loop/charstudio/internal/handlers"
	"github.com/snappy-loop/charstudio/internal/llm"
	"github.com/snappy-loop/charstudio/internal/metrics"
	"github.com/snappy-loop/charstudio/internal/middleware"
	"github.com/snappy-loop/charstudio/internal/studio"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg := config.Load()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().Msg("Starting 3D character studio")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	llmClient, err := llm.NewClient(ctx, llm.Options{
		APIKey:      cfg.GeminiAPIKey,
		APIEndpoint: cfg.GeminiAPIEndpoint,
		ModelImage:  cfg.GeminiModelImage,
		AspectRatio: cfg.GeminiAspectRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize LLM client")
	}

	collector := metrics.NewCollector("charstudio")
	store := studio.NewStore(ctx, llmClient, cfg.SessionTTL, collector)
	go store.Run(ctx, time.Minute)

	h := handlers.NewHandler(store, cfg.MaxFileSize)

	r := mux.NewRouter()
	r.Use(middleware.Logger)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods("GET")
	r.Handle("/metrics", collector.Handler()).Methods("GET")
	api := h.Register(r)
	api.Use(middleware.RateLimit(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst))

	// WriteTimeout is left unset: websocket connections stay open for the life of the page.
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("Studio listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down studio...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}
	cancel()
	store.Close()
	log.Info().Msg("Studio exited")
}
