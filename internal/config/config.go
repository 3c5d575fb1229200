package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config holds the agent's runtime configuration, loaded from the
// environment with sensible defaults for a provisioned kiosk.
type Config struct {
	// Port is the HTTP listen port for the control API and UI socket.
	Port string
	// SettingsPath is the JSON settings file location.
	SettingsPath string
	// PairingCode gates UI shell token issuance.
	PairingCode string
	// JWTSecret signs pairing tokens.
	JWTSecret string
	// TokenTTL bounds pairing token lifetime.
	TokenTTL time.Duration

	// ContextDepth is the number of prior messages sent as request
	// context.
	ContextDepth int
	// ContinuousContext toggles sending prior messages at all.
	ContinuousContext bool

	// Responder selects the chat backend: "http" or "gemini".
	Responder string

	// AudioSampleRate, AudioEncoding and Language configure recognition.
	AudioSampleRate int
	AudioEncoding   string
	Language        string

	// UseMockVoice swaps both speech backends for mocks.
	UseMockVoice bool

	// CameraStreamInterval enables the periodic snapshot uploader when
	// positive.
	CameraStreamInterval time.Duration
}

// Load reads configuration from the environment. A .env file in the
// working directory is honored when present.
func Load(logger *zap.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using environment")
	}

	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		SettingsPath:         getEnv("SETTINGS_PATH", "kiosk_settings.json"),
		PairingCode:          getEnv("PAIRING_CODE", "000000"),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		TokenTTL:             getEnvDuration("TOKEN_TTL", 24*time.Hour),
		ContextDepth:         getEnvInt("CONTEXT_DEPTH", 10),
		ContinuousContext:    getEnvBool("CONTINUOUS_CONTEXT", true),
		Responder:            getEnv("RESPONDER", "http"),
		AudioSampleRate:      getEnvInt("AUDIO_SAMPLE_RATE", 16000),
		AudioEncoding:        getEnv("AUDIO_ENCODING", "LINEAR16"),
		Language:             getEnv("LANGUAGE", "en-US"),
		UseMockVoice:         getEnvBool("USE_MOCK_VOICE", false),
		CameraStreamInterval: getEnvDuration("CAMERA_STREAM_INTERVAL", 0),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.Responder != "http" && cfg.Responder != "gemini" {
		return nil, fmt.Errorf("RESPONDER must be http or gemini, got %q", cfg.Responder)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
