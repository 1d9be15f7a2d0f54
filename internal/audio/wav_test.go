package audio

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"
)

func TestEncodeWAVPCM16LEHeader(t *testing.T) {
	pcm := make([]byte, 320)
	wav := EncodeWAVPCM16LE(pcm, 16000)
	if len(wav) != 44+len(pcm) {
		t.Fatalf("len = %d, want %d", len(wav), 44+len(pcm))
	}
	if !IsWAV(wav) {
		t.Fatalf("IsWAV() = false for encoded stream")
	}
	if got := binary.LittleEndian.Uint32(wav[24:]); got != 16000 {
		t.Fatalf("sample rate = %d, want 16000", got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:]); got != uint32(len(pcm)) {
		t.Fatalf("data size = %d, want %d", got, len(pcm))
	}
}

func TestEnsureWAV(t *testing.T) {
	if _, err := EnsureWAV(nil, 16000); !errors.Is(err, ErrEmptyAudio) {
		t.Fatalf("EnsureWAV(nil) error = %v, want ErrEmptyAudio", err)
	}

	wav := EncodeWAVPCM16LE([]byte{1, 2, 3, 4}, 8000)
	got, err := EnsureWAV(wav, 16000)
	if err != nil {
		t.Fatalf("EnsureWAV() error = %v", err)
	}
	if len(got) != len(wav) {
		t.Fatalf("EnsureWAV() rewrapped an existing WAV stream")
	}

	got, err = EnsureWAV([]byte{1, 2, 3, 4}, 0)
	if err != nil {
		t.Fatalf("EnsureWAV() error = %v", err)
	}
	if !IsWAV(got) || binary.LittleEndian.Uint32(got[24:]) != DefaultSampleRate {
		t.Fatalf("raw PCM was not wrapped at the default rate")
	}
}

func TestPCMDuration(t *testing.T) {
	if got := PCMDuration(32000, 16000); got != time.Second {
		t.Fatalf("PCMDuration() = %v, want 1s", got)
	}
	if got := PCMDuration(100, 0); got != 0 {
		t.Fatalf("PCMDuration() = %v, want 0", got)
	}
}
