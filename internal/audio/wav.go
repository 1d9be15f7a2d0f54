package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

// DefaultSampleRate is assumed for raw client audio when none is configured.
const DefaultSampleRate = 16000

const (
	wavHeaderSize = 44
	channels      = 1
	bitsPerSample = 16
)

// ErrEmptyAudio is returned for zero length payloads.
var ErrEmptyAudio = errors.New("audio payload is empty")

// IsWAV reports whether b starts with a RIFF/WAVE header.
func IsWAV(b []byte) bool {
	return len(b) >= 12 && bytes.Equal(b[0:4], []byte("RIFF")) && bytes.Equal(b[8:12], []byte("WAVE"))
}

// EnsureWAV returns b unchanged when it is already a WAV stream and wraps it
// as mono PCM16LE at sampleRate otherwise.
func EnsureWAV(b []byte, sampleRate int) ([]byte, error) {
	if len(b) == 0 {
		return nil, ErrEmptyAudio
	}
	if IsWAV(b) {
		return b, nil
	}
	return EncodeWAVPCM16LE(b, sampleRate), nil
}

// EncodeWAVPCM16LE wraps raw PCM16LE mono samples in a canonical WAV header.
func EncodeWAVPCM16LE(pcm []byte, sampleRate int) []byte {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	blockAlign := channels * bitsPerSample / 8
	le := binary.LittleEndian

	out := make([]byte, wavHeaderSize+len(pcm))
	copy(out[0:], "RIFF")
	le.PutUint32(out[4:], uint32(36+len(pcm)))
	copy(out[8:], "WAVE")
	copy(out[12:], "fmt ")
	le.PutUint32(out[16:], 16)
	le.PutUint16(out[20:], 1) // PCM
	le.PutUint16(out[22:], channels)
	le.PutUint32(out[24:], uint32(sampleRate))
	le.PutUint32(out[28:], uint32(sampleRate*blockAlign))
	le.PutUint16(out[32:], uint16(blockAlign))
	le.PutUint16(out[34:], bitsPerSample)
	copy(out[36:], "data")
	le.PutUint32(out[40:], uint32(len(pcm)))
	copy(out[wavHeaderSize:], pcm)
	return out
}

// PCMDuration is the playback length of raw mono PCM16LE audio.
func PCMDuration(pcmBytes, sampleRate int) time.Duration {
	if sampleRate <= 0 || pcmBytes <= 0 {
		return 0
	}
	samples := pcmBytes / (bitsPerSample / 8)
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}
