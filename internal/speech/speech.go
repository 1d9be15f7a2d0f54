package speech

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// DefaultLanguage is used when neither the client nor the provider names one.
const DefaultLanguage = "hi-IN"

// Transcript is the result of one speech-to-text call.
type Transcript struct {
	Text       string
	Language   string
	Confidence float64
}

// Provider converts between audio and text. TextToSpeech returns nil audio
// and no error for languages it cannot synthesize.
type Provider interface {
	SpeechToText(ctx context.Context, audio []byte, languageHint string) (Transcript, error)
	TextToSpeech(ctx context.Context, text, language, speaker string) ([]byte, error)
}

// Translator converts text between two supported language codes.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

var synthesisLanguages = map[string]struct{}{
	"hi-IN": {}, "bn-IN": {}, "ta-IN": {}, "te-IN": {}, "kn-IN": {}, "ml-IN": {},
	"mr-IN": {}, "gu-IN": {}, "pa-IN": {}, "od-IN": {}, "en-IN": {},
}

// SupportsSynthesis reports whether lang is on the synthesis allow-list.
func SupportsSynthesis(lang string) bool {
	_, ok := synthesisLanguages[strings.TrimSpace(lang)]
	return ok
}

// Config selects and tunes the speech backend.
type Config struct {
	Mode       string
	APIKey     string
	BaseURL    string
	STTModel   string
	TTSModel   string
	Speaker    string
	SampleRate int
	Logger     *zap.Logger
}

// NewProvider resolves the configured backend. In auto mode Sarvam is used
// when an API key is present and the mock otherwise.
func NewProvider(cfg Config) (Provider, string, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	switch mode {
	case "", "auto":
		if strings.TrimSpace(cfg.APIKey) != "" {
			return NewSarvamProvider(cfg), "sarvam", nil
		}
		if cfg.Logger != nil {
			cfg.Logger.Warn("SARVAM_API_KEY not set, using mock speech provider")
		}
		return NewMockProvider(), "mock", nil
	case "sarvam":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, "", fmt.Errorf("SARVAM_API_KEY is required for sarvam mode")
		}
		return NewSarvamProvider(cfg), "sarvam", nil
	case "mock":
		return NewMockProvider(), "mock", nil
	default:
		return nil, "", fmt.Errorf("unsupported SPEECH_PROVIDER %q (expected auto|sarvam|mock)", cfg.Mode)
	}
}
