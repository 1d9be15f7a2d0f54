package speech

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sahaj-careers/sahaj/internal/audio"
)

func TestSarvamSpeechToText(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/speech-to-text" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("api-subscription-key"); got != "k" {
			t.Errorf("api-subscription-key = %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm() error = %v", err)
			return
		}
		if r.FormValue("model") != "saaras:v3" || r.FormValue("mode") != "transcribe" || r.FormValue("language_code") != "ta-IN" {
			t.Errorf("form = %v", r.MultipartForm.Value)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile() error = %v", err)
			return
		}
		defer f.Close()
		b, _ := io.ReadAll(f)
		if hdr.Filename != "audio.wav" || !audio.IsWAV(b) {
			t.Errorf("uploaded file %q is not a WAV stream", hdr.Filename)
		}
		_, _ = w.Write([]byte(`{"transcript":" vanakkam ","language_code":"ta-IN","confidence":0.9}`))
	}))
	defer ts.Close()

	p := NewSarvamProvider(Config{APIKey: "k", BaseURL: ts.URL})
	got, err := p.SpeechToText(context.Background(), []byte{0, 1, 2, 3}, "ta-IN")
	if err != nil {
		t.Fatalf("SpeechToText() error = %v", err)
	}
	if got.Text != "vanakkam" || got.Language != "ta-IN" || got.Confidence != 0.9 {
		t.Fatalf("SpeechToText() = %+v", got)
	}
}

func TestSarvamSpeechToTextDefaultsLanguage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"transcript":"haan"}`))
	}))
	defer ts.Close()

	got, err := NewSarvamProvider(Config{APIKey: "k", BaseURL: ts.URL}).SpeechToText(context.Background(), []byte{1, 2}, "")
	if err != nil {
		t.Fatalf("SpeechToText() error = %v", err)
	}
	if got.Language != DefaultLanguage {
		t.Fatalf("Language = %q, want %q", got.Language, DefaultLanguage)
	}
}

func TestSarvamTextToSpeech(t *testing.T) {
	clip := []byte("RIFF-fake-audio")
	var req ttsRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(map[string]any{"audios": []string{base64.StdEncoding.EncodeToString(clip)}})
	}))
	defer ts.Close()

	got, err := NewSarvamProvider(Config{APIKey: "k", BaseURL: ts.URL}).TextToSpeech(context.Background(), "Namaste", "hi-IN", "")
	if err != nil {
		t.Fatalf("TextToSpeech() error = %v", err)
	}
	if string(got) != string(clip) {
		t.Fatalf("TextToSpeech() = %q, want %q", got, clip)
	}
	if req.Speaker != "anushka" || req.Model != "bulbul:v3" || req.SpeechSampleRate != 24000 || !req.EnablePreprocessing {
		t.Fatalf("request = %+v", req)
	}
}

func TestSarvamTextToSpeechUnsupportedLanguage(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer ts.Close()

	got, err := NewSarvamProvider(Config{APIKey: "k", BaseURL: ts.URL}).TextToSpeech(context.Background(), "Bonjour", "fr-FR", "")
	if err != nil {
		t.Fatalf("TextToSpeech() error = %v", err)
	}
	if got != nil {
		t.Fatalf("TextToSpeech() = %v, want nil audio", got)
	}
	if calls.Load() != 0 {
		t.Fatalf("provider was called for unsupported language")
	}
}

func TestSarvamRetriesTooManyRequests(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"transcript":"ok","language_code":"hi-IN"}`))
	}))
	defer ts.Close()

	got, err := NewSarvamProvider(Config{APIKey: "k", BaseURL: ts.URL}).SpeechToText(context.Background(), []byte{1, 2}, "")
	if err != nil {
		t.Fatalf("SpeechToText() error = %v", err)
	}
	if got.Text != "ok" || calls.Load() != 2 {
		t.Fatalf("got %q after %d calls", got.Text, calls.Load())
	}
}

func TestSarvamRejectsEmptyAudio(t *testing.T) {
	if _, err := NewSarvamProvider(Config{APIKey: "k"}).SpeechToText(context.Background(), nil, ""); err == nil {
		t.Fatalf("SpeechToText() expected error for empty audio")
	}
}

func TestSarvamTranslate(t *testing.T) {
	var req translateRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/translate" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		_, _ = w.Write([]byte(`{"translated_text":"Hello"}`))
	}))
	defer ts.Close()

	p := NewSarvamProvider(Config{APIKey: "k", BaseURL: ts.URL})
	got, err := p.Translate(context.Background(), "Namaste", "hi-IN", "en-IN")
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if got != "Hello" || req.Model != "mayura:v1" || req.Input != "Namaste" {
		t.Fatalf("Translate() = %q, request %+v", got, req)
	}

	same, err := p.Translate(context.Background(), "Namaste", "hi-IN", "hi-IN")
	if err != nil || same != "Namaste" {
		t.Fatalf("Translate(same language) = %q, %v", same, err)
	}
}
