package speech

import (
	"context"
	"testing"

	"github.com/sahaj-careers/sahaj/internal/audio"
)

func TestSupportsSynthesis(t *testing.T) {
	for _, lang := range []string{"hi-IN", "en-IN", "od-IN", " ta-IN "} {
		if !SupportsSynthesis(lang) {
			t.Fatalf("SupportsSynthesis(%q) = false", lang)
		}
	}
	for _, lang := range []string{"", "en-US", "ur-IN", "hi"} {
		if SupportsSynthesis(lang) {
			t.Fatalf("SupportsSynthesis(%q) = true", lang)
		}
	}
}

func TestNewProviderModes(t *testing.T) {
	cases := []struct {
		cfg     Config
		want    string
		wantErr bool
	}{
		{cfg: Config{}, want: "mock"},
		{cfg: Config{APIKey: "k"}, want: "sarvam"},
		{cfg: Config{Mode: "mock", APIKey: "k"}, want: "mock"},
		{cfg: Config{Mode: "sarvam"}, wantErr: true},
		{cfg: Config{Mode: "whisper"}, wantErr: true},
	}
	for _, tc := range cases {
		_, name, err := NewProvider(tc.cfg)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("NewProvider(%+v) expected error", tc.cfg)
			}
			continue
		}
		if err != nil || name != tc.want {
			t.Fatalf("NewProvider(%+v) = %q, %v; want %q", tc.cfg, name, err, tc.want)
		}
	}
}

func TestMockProvider(t *testing.T) {
	p := NewMockProvider()
	got, err := p.SpeechToText(context.Background(), []byte(" mera naam Asha "), "")
	if err != nil {
		t.Fatalf("SpeechToText() error = %v", err)
	}
	if got.Text != "mera naam Asha" || got.Language != DefaultLanguage {
		t.Fatalf("SpeechToText() = %+v", got)
	}

	got, err = p.SpeechToText(context.Background(), audio.EncodeWAVPCM16LE([]byte{0, 0}, 16000), "bn-IN")
	if err != nil || got.Text != "" || got.Language != "bn-IN" {
		t.Fatalf("SpeechToText(wav) = %+v, %v", got, err)
	}

	clip, err := p.TextToSpeech(context.Background(), "Namaste", "hi-IN", "")
	if err != nil || !audio.IsWAV(clip) {
		t.Fatalf("TextToSpeech() = %d bytes, %v", len(clip), err)
	}
	clip, err = p.TextToSpeech(context.Background(), "Hello", "en-US", "")
	if err != nil || clip != nil {
		t.Fatalf("TextToSpeech(unsupported) = %v, %v; want nil", clip, err)
	}
}
