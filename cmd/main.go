package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/wayfindr/kiosk/adapters/camera"
	"github.com/wayfindr/kiosk/adapters/llm"
	"github.com/wayfindr/kiosk/adapters/settings"
	"github.com/wayfindr/kiosk/adapters/stt"
	"github.com/wayfindr/kiosk/adapters/tts"
	"github.com/wayfindr/kiosk/adapters/voice"
	"github.com/wayfindr/kiosk/domain/repositories"
	"github.com/wayfindr/kiosk/internal/api"
	"github.com/wayfindr/kiosk/internal/auth"
	"github.com/wayfindr/kiosk/internal/config"
	"github.com/wayfindr/kiosk/internal/kiosk"
	"github.com/wayfindr/kiosk/internal/websocket"
	"github.com/wayfindr/kiosk/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load(logger)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Settings persist the responder URL and the exit password hash.
	settingsStore, err := settings.NewFileStore(cfg.SettingsPath, logger)
	if err != nil {
		logger.Fatal("Failed to open settings store", zap.Error(err))
	}
	serverURL, err := settingsStore.ServerURL()
	if err != nil {
		logger.Fatal("Failed to read server URL", zap.Error(err))
	}

	// Chat backend
	var responder repositories.Responder
	var endpoints []api.BaseURLSetter
	chatClient := llm.NewChatClient(serverURL, logger)
	endpoints = append(endpoints, chatClient)
	switch cfg.Responder {
	case "gemini":
		gemini, err := llm.NewGeminiResponder(logger)
		if err != nil {
			logger.Fatal("Failed to initialize Gemini responder", zap.Error(err))
		}
		responder = gemini
	default:
		responder = chatClient
	}

	// Conversation store
	conversation := usecase.NewConversation(responder, usecase.ConversationConfig{
		ContextDepth:      cfg.ContextDepth,
		ContinuousContext: cfg.ContinuousContext,
	}, logger)

	// Voice backends
	var recognizer repositories.Recognizer
	var synthesizer repositories.Synthesizer
	if cfg.UseMockVoice {
		recognizer = stt.NewMockRecognizer(logger)
		synthesizer = tts.NewMockSynthesizer(logger)
	} else {
		recognizer = stt.NewGoogleRecognizer(logger)
		synthesizer, err = tts.NewElevenLabsSynthesizer(tts.NewElevenLabsConfigFromEnv(), logger)
		if err != nil {
			logger.Fatal("Failed to initialize synthesizer", zap.Error(err))
		}
	}

	// Session orchestrator
	orchestrator := kiosk.NewOrchestrator(conversation, settingsStore, kiosk.DefaultTiming(), logger)

	// UI bridge
	hub := websocket.NewHub(orchestrator, logger)
	go hub.Run()

	// Voice adapter, with response audio fanned out to connected shells.
	callbacks := orchestrator.VoiceCallbacks()
	innerSpeakingStart := callbacks.OnSpeakingStart
	callbacks.OnSpeakingStart = func(text string) {
		hub.BroadcastSpeakingStart(text)
		innerSpeakingStart(text)
	}
	callbacks.OnAudioChunk = hub.BroadcastAudio
	innerSpeakingDone := callbacks.OnSpeakingDone
	callbacks.OnSpeakingDone = func() {
		hub.BroadcastSpeakingEnd()
		innerSpeakingDone()
	}
	voiceAdapter := voice.NewAdapter(recognizer, synthesizer, repositories.AudioConfig{
		SampleRate: cfg.AudioSampleRate,
		Encoding:   cfg.AudioEncoding,
		Language:   cfg.Language,
	}, callbacks, logger)
	orchestrator.AttachVoice(voiceAdapter)
	orchestrator.SetStatusSink(hub.BroadcastStatus)

	go orchestrator.Run(ctx)

	// Optional camera side-channel
	uploader := camera.NewHTTPUploader(serverURL, logger)
	endpoints = append(endpoints, uploader)
	if cfg.CameraStreamInterval > 0 {
		streamer := camera.NewStreamer(
			camera.NewMockFrameSource(), uploader,
			repositories.CameraFront, cfg.CameraStreamInterval, logger)
		go streamer.Run(ctx)
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	api.InitRoutes(e, api.Deps{
		Session:     orchestrator,
		Store:       conversation,
		Settings:    settingsStore,
		Auth:        auth.NewAuthenticator(cfg.JWTSecret, cfg.TokenTTL),
		Hub:         hub,
		Endpoints:   endpoints,
		PairingCode: cfg.PairingCode,
		Logger:      logger,
	})

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Kiosk agent started", zap.String("port", cfg.Port))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Kiosk agent is shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Kiosk agent exited")
}
