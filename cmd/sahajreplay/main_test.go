package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sahaj-careers/sahaj/internal/config"
	"github.com/sahaj-careers/sahaj/internal/conversation"
	"github.com/sahaj-careers/sahaj/internal/httpapi"
	"github.com/sahaj-careers/sahaj/internal/llm"
	"github.com/sahaj-careers/sahaj/internal/session"
	"github.com/sahaj-careers/sahaj/internal/speech"
	"github.com/sahaj-careers/sahaj/internal/store"
	"github.com/sahaj-careers/sahaj/internal/voice"
)

func TestParseFlags(t *testing.T) {
	cfg, err := parseFlags([]string{"-turns", "2", "-texts", "a| |b", "-base-url", "http://x/"})
	if err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}
	if cfg.turns != 2 || cfg.baseURL != "http://x" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if len(cfg.texts) != 2 || cfg.texts[0] != "a" || cfg.texts[1] != "b" {
		t.Fatalf("texts = %v, want [a b]", cfg.texts)
	}

	if _, err := parseFlags([]string{"-turns", "0"}); err == nil {
		t.Fatalf("parseFlags() with zero turns error = nil")
	}
}

func TestVoiceURL(t *testing.T) {
	cases := map[string]string{
		"http://127.0.0.1:8000":      "ws://127.0.0.1:8000/ws/voice",
		"https://sahaj.example/api/": "wss://sahaj.example/api/ws/voice",
	}
	for in, want := range cases {
		got, err := voiceURL(in)
		if err != nil {
			t.Fatalf("voiceURL(%q) error = %v", in, err)
		}
		if got != want {
			t.Fatalf("voiceURL(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := voiceURL("ftp://host"); err == nil {
		t.Fatalf("voiceURL(ftp) error = nil")
	}
}

func TestPercentile(t *testing.T) {
	values := []time.Duration{40, 10, 30, 20}
	if got := percentile(values, 0.5); got != 20 {
		t.Fatalf("p50 = %d, want 20", got)
	}
	if got := percentile(values, 0.95); got != 40 {
		t.Fatalf("p95 = %d, want 40", got)
	}
	if got := percentile(nil, 0.5); got != 0 {
		t.Fatalf("percentile(nil) = %d, want 0", got)
	}
}

func TestRunAgainstInProcessServer(t *testing.T) {
	st := store.NewMemoryStore()
	sp := speech.NewMockProvider()
	handler := voice.NewHandler(
		voice.Config{ProviderTimeout: 2 * time.Second},
		st,
		conversation.NewOrchestrator(llm.NewMockProvider(), 10, nil),
		sp,
		session.NewManager(time.Minute),
		nil,
		nil,
	)
	srv := httpapi.New(config.Config{DefaultLanguage: "hi-IN", MetricsNamespace: "replay_test"}, st, handler, sp, nil, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	for _, audio := range []bool{false, true} {
		cfg := options{
			baseURL:     ts.URL,
			language:    "hi-IN",
			turns:       3,
			audio:       audio,
			turnTimeout: 5 * time.Second,
			texts:       []string{"mera naam Ravi hai", "main Pune se hoon"},
		}
		var progress bytes.Buffer
		rep, err := run(context.Background(), cfg, &progress)
		if err != nil {
			t.Fatalf("run(audio=%t) error = %v", audio, err)
		}
		if rep.SessionID == "" || len(rep.Turns) != 3 {
			t.Fatalf("report = %+v", rep)
		}
		for i, turn := range rep.Turns {
			if turn.Err != "" {
				t.Fatalf("turn %d error = %s", i+1, turn.Err)
			}
		}
	}
}
