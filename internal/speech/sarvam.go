package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/sahaj-careers/sahaj/internal/audio"
	"github.com/sahaj-careers/sahaj/internal/reliability"
)

const (
	defaultSarvamBaseURL = "https://api.sarvam.ai"
	defaultSTTModel      = "saaras:v3"
	defaultTTSModel      = "bulbul:v3"
	defaultSpeaker       = "anushka"
	translateModel       = "mayura:v1"
	ttsSampleRate        = 24000

	sarvamTimeout     = 30 * time.Second
	sarvamMaxRetries  = 2
	sarvamBackoffBase = 200 * time.Millisecond
	sarvamBackoffCap  = 2 * time.Second
)

// SarvamProvider uses the Sarvam speech-to-text and text-to-speech APIs.
type SarvamProvider struct {
	apiKey     string
	baseURL    string
	sttModel   string
	ttsModel   string
	speaker    string
	sampleRate int
	client     *http.Client
}

func NewSarvamProvider(cfg Config) *SarvamProvider {
	p := &SarvamProvider{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		sttModel:   strings.TrimSpace(cfg.STTModel),
		ttsModel:   strings.TrimSpace(cfg.TTSModel),
		speaker:    strings.TrimSpace(cfg.Speaker),
		sampleRate: cfg.SampleRate,
		client:     &http.Client{Timeout: sarvamTimeout},
	}
	if p.baseURL == "" {
		p.baseURL = defaultSarvamBaseURL
	}
	if p.sttModel == "" {
		p.sttModel = defaultSTTModel
	}
	if p.ttsModel == "" {
		p.ttsModel = defaultTTSModel
	}
	if p.speaker == "" {
		p.speaker = defaultSpeaker
	}
	if p.sampleRate <= 0 {
		p.sampleRate = audio.DefaultSampleRate
	}
	return p
}

type sttResponse struct {
	Transcript   string   `json:"transcript"`
	LanguageCode string   `json:"language_code"`
	Confidence   *float64 `json:"confidence"`
}

func (p *SarvamProvider) SpeechToText(ctx context.Context, clip []byte, languageHint string) (Transcript, error) {
	wav, err := audio.EnsureWAV(clip, p.sampleRate)
	if err != nil {
		return Transcript{}, err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return Transcript{}, err
	}
	if _, err := fw.Write(wav); err != nil {
		return Transcript{}, err
	}
	_ = mw.WriteField("model", p.sttModel)
	_ = mw.WriteField("mode", "transcribe")
	if hint := strings.TrimSpace(languageHint); hint != "" {
		_ = mw.WriteField("language_code", hint)
	}
	if err := mw.Close(); err != nil {
		return Transcript{}, err
	}
	payload := body.Bytes()

	var out sttResponse
	err = p.call(ctx, "/speech-to-text", mw.FormDataContentType(), payload, &out)
	if err != nil {
		return Transcript{}, fmt.Errorf("sarvam speech-to-text: %w", err)
	}

	lang := strings.TrimSpace(out.LanguageCode)
	if lang == "" {
		lang = DefaultLanguage
	}
	t := Transcript{Text: strings.TrimSpace(out.Transcript), Language: lang}
	if out.Confidence != nil {
		t.Confidence = *out.Confidence
	}
	return t, nil
}

type ttsRequest struct {
	TargetLanguageCode  string `json:"target_language_code"`
	Text                string `json:"text"`
	Model               string `json:"model"`
	Speaker             string `json:"speaker"`
	SpeechSampleRate    int    `json:"speech_sample_rate"`
	EnablePreprocessing bool   `json:"enable_preprocessing"`
}

type ttsResponse struct {
	Audios []string `json:"audios"`
}

func (p *SarvamProvider) TextToSpeech(ctx context.Context, text, language, speaker string) ([]byte, error) {
	if !SupportsSynthesis(language) || strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if strings.TrimSpace(speaker) == "" {
		speaker = p.speaker
	}
	payload, err := json.Marshal(ttsRequest{
		TargetLanguageCode:  language,
		Text:                text,
		Model:               p.ttsModel,
		Speaker:             speaker,
		SpeechSampleRate:    ttsSampleRate,
		EnablePreprocessing: true,
	})
	if err != nil {
		return nil, err
	}

	var out ttsResponse
	if err := p.call(ctx, "/text-to-speech", "application/json", payload, &out); err != nil {
		return nil, fmt.Errorf("sarvam text-to-speech: %w", err)
	}
	if len(out.Audios) == 0 || out.Audios[0] == "" {
		return nil, nil
	}
	clip, err := base64.StdEncoding.DecodeString(out.Audios[0])
	if err != nil {
		return nil, fmt.Errorf("decode sarvam audio: %w", err)
	}
	return clip, nil
}

type translateRequest struct {
	SourceLanguageCode string `json:"source_language_code"`
	TargetLanguageCode string `json:"target_language_code"`
	Input              string `json:"input"`
	Model              string `json:"model"`
	Mode               string `json:"mode"`
}

// Translate returns text unchanged when source and target match.
func (p *SarvamProvider) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if strings.TrimSpace(text) == "" || sourceLang == targetLang {
		return text, nil
	}
	payload, err := json.Marshal(translateRequest{
		SourceLanguageCode: sourceLang,
		TargetLanguageCode: targetLang,
		Input:              text,
		Model:              translateModel,
		Mode:               "formal",
	})
	if err != nil {
		return "", err
	}
	var out struct {
		TranslatedText string `json:"translated_text"`
	}
	if err := p.call(ctx, "/translate", "application/json", payload, &out); err != nil {
		return "", fmt.Errorf("sarvam translate: %w", err)
	}
	if out.TranslatedText == "" {
		return text, nil
	}
	return out.TranslatedText, nil
}

// call posts payload to path with retries on transport errors and retryable
// statuses, decoding the JSON response into out.
func (p *SarvamProvider) call(ctx context.Context, path, contentType string, payload []byte, out any) error {
	return reliability.Retry(ctx, sarvamMaxRetries, sarvamBackoffBase, sarvamBackoffCap, func(int) (bool, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return false, err
		}
		req.Header.Set("api-subscription-key", p.apiKey)
		req.Header.Set("Content-Type", contentType)

		res, err := p.client.Do(req)
		if err != nil {
			return ctx.Err() == nil, err
		}
		defer res.Body.Close()

		b, err := io.ReadAll(io.LimitReader(res.Body, 16<<20))
		if err != nil {
			return false, err
		}
		if res.StatusCode != http.StatusOK {
			return reliability.IsRetryableHTTPStatus(res.StatusCode), fmt.Errorf("HTTP %d: %s", res.StatusCode, strings.TrimSpace(string(b)))
		}
		if err := json.Unmarshal(b, out); err != nil {
			return false, fmt.Errorf("decode response: %w", err)
		}
		return false, nil
	})
}
