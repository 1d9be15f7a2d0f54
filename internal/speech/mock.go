package speech

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/sahaj-careers/sahaj/internal/audio"
)

// MockProvider is the offline fallback. It "transcribes" payloads that are
// plain UTF-8 text and synthesizes silence for supported languages.
type MockProvider struct{}

func NewMockProvider() *MockProvider { return &MockProvider{} }

func (p *MockProvider) SpeechToText(ctx context.Context, clip []byte, languageHint string) (Transcript, error) {
	if err := ctx.Err(); err != nil {
		return Transcript{}, err
	}
	lang := strings.TrimSpace(languageHint)
	if lang == "" {
		lang = DefaultLanguage
	}
	if audio.IsWAV(clip) || !utf8.Valid(clip) {
		return Transcript{Language: lang}, nil
	}
	return Transcript{Text: strings.TrimSpace(string(clip)), Language: lang, Confidence: 1}, nil
}

func (p *MockProvider) TextToSpeech(ctx context.Context, text, language, _ string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !SupportsSynthesis(language) || strings.TrimSpace(text) == "" {
		return nil, nil
	}
	// 20ms of silence per character.
	pcm := make([]byte, utf8.RuneCountInString(text)*ttsSampleRate/50*2)
	return audio.EncodeWAVPCM16LE(pcm, ttsSampleRate), nil
}

// Translate echoes text; the mock has no translation model.
func (p *MockProvider) Translate(ctx context.Context, text, _, _ string) (string, error) {
	return text, ctx.Err()
}
