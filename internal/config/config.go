package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains all runtime settings for the career guide service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	ProviderTimeout  time.Duration
	IdleTimeout      time.Duration
	HistoryWindow    int
	MetricsNamespace string
	DefaultLanguage  string

	AllowAnyOrigin bool
	FrontendURL    string

	LogLevel  string
	LogFormat string

	DatabaseURL string

	LLMProvider      string
	AWSRegion        string
	BedrockModelID   string
	BedrockMaxTokens int
	GeminiAPIKey     string
	GeminiModel      string
	LLMHTTPURL       string
	LLMHTTPAPIKey    string
	LLMHTTPModel     string

	SpeechProvider  string
	SarvamAPIKey    string
	SarvamBaseURL   string
	SarvamSTTModel  string
	SarvamTTSModel  string
	SarvamSpeaker   string
	AudioSampleRate int
}

// Load reads a .env file when present, then environment variables, and
// applies safe defaults. Variables already set in the environment win over
// the .env file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8000"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "sahaj"),
		DefaultLanguage:  envOrDefault("APP_DEFAULT_LANGUAGE", "hi-IN"),
		FrontendURL:      stringsTrimSpace("APP_FRONTEND_URL"),
		LogLevel:         strings.ToLower(envOrDefault("APP_LOG_LEVEL", "info")),
		LogFormat:        strings.ToLower(envOrDefault("APP_LOG_FORMAT", "json")),
		DatabaseURL:      stringsTrimSpace("DATABASE_URL"),

		LLMProvider:      strings.ToLower(envOrDefault("LLM_PROVIDER", "auto")),
		AWSRegion:        envOrDefault("AWS_REGION", "us-east-1"),
		BedrockModelID:   stringsTrimSpace("BEDROCK_MODEL_ID"),
		BedrockMaxTokens: 1024,
		GeminiAPIKey:     stringsTrimSpace("GEMINI_API_KEY"),
		GeminiModel:      stringsTrimSpace("GEMINI_MODEL"),
		LLMHTTPURL:       stringsTrimSpace("LLM_HTTP_URL"),
		LLMHTTPAPIKey:    stringsTrimSpace("LLM_HTTP_API_KEY"),
		LLMHTTPModel:     stringsTrimSpace("LLM_HTTP_MODEL"),

		SpeechProvider:  strings.ToLower(envOrDefault("SPEECH_PROVIDER", "auto")),
		SarvamAPIKey:    stringsTrimSpace("SARVAM_API_KEY"),
		SarvamBaseURL:   envOrDefault("SARVAM_BASE_URL", "https://api.sarvam.ai"),
		SarvamSTTModel:  envOrDefault("SARVAM_STT_MODEL", "saaras:v3"),
		SarvamTTSModel:  envOrDefault("SARVAM_TTS_MODEL", "bulbul:v3"),
		SarvamSpeaker:   envOrDefault("SARVAM_TTS_SPEAKER", "anushka"),
		AudioSampleRate: 16000,

		ShutdownTimeout: 15 * time.Second,
		ProviderTimeout: 25 * time.Second,
		IdleTimeout:     10 * time.Minute,
		HistoryWindow:   10,
	}

	var err error
	if cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return Config{}, err
	}
	if cfg.ProviderTimeout, err = durationFromEnv("APP_PROVIDER_TIMEOUT", cfg.ProviderTimeout); err != nil {
		return Config{}, err
	}
	if cfg.IdleTimeout, err = durationFromEnv("APP_IDLE_TIMEOUT", cfg.IdleTimeout); err != nil {
		return Config{}, err
	}
	if cfg.HistoryWindow, err = intFromEnv("APP_HISTORY_WINDOW", cfg.HistoryWindow); err != nil {
		return Config{}, err
	}
	if cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin); err != nil {
		return Config{}, err
	}
	if cfg.BedrockMaxTokens, err = intFromEnv("BEDROCK_MAX_TOKENS", cfg.BedrockMaxTokens); err != nil {
		return Config{}, err
	}
	if cfg.AudioSampleRate, err = intFromEnv("AUDIO_SAMPLE_RATE", cfg.AudioSampleRate); err != nil {
		return Config{}, err
	}

	if cfg.ProviderTimeout < time.Second {
		return Config{}, fmt.Errorf("APP_PROVIDER_TIMEOUT must be at least 1s")
	}
	if cfg.IdleTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_IDLE_TIMEOUT must be at least 5s")
	}
	if cfg.HistoryWindow < 1 {
		return Config{}, fmt.Errorf("APP_HISTORY_WINDOW must be positive")
	}
	if cfg.BedrockMaxTokens <= 0 {
		return Config{}, fmt.Errorf("BEDROCK_MAX_TOKENS must be positive")
	}
	if cfg.AudioSampleRate <= 0 {
		return Config{}, fmt.Errorf("AUDIO_SAMPLE_RATE must be positive")
	}
	switch cfg.LogFormat {
	case "json", "console":
	default:
		return Config{}, fmt.Errorf("APP_LOG_FORMAT must be json or console")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
