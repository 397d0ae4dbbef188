package audioprobe

import (
	"context"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/fasttts-labs/fasttts-core/internal/config"
)

func newTestProber(t *testing.T, bitrate int) *Prober {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	p, err := New(config.ProbeConfig{TimeoutSec: 10}, bitrate, logger)
	if err != nil {
		t.Fatalf("new prober: %v", err)
	}
	return p
}

// silenceWAV produces a playable WAV blob of the given duration.
func silenceWAV(t *testing.T, durationMS int) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "silence.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav: %v", err)
	}

	sampleRate := 16000
	samples := sampleRate * durationMS / 1000
	buf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:   make([]int, samples),
	}
	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close wav encoder: %v", err)
	}
	f.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read wav: %v", err)
	}
	return data
}

func TestDurationFromWavMetadata(t *testing.T) {
	p := newTestProber(t, 128000)
	data := silenceWAV(t, 1500)

	ms, err := p.DurationMS(context.Background(), data)
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if math.Abs(ms-1500) > 50 {
		t.Fatalf("expected ~1500ms, got %v", ms)
	}
}

func TestByteRateFallback(t *testing.T) {
	p := newTestProber(t, 128000)
	// Not a recognizable container, no ffprobe available in the sandbox:
	// 16000 bytes at 128kbps is exactly one second.
	data := make([]byte, 16000)
	for i := range data {
		data[i] = 0x42
	}

	ms, err := p.DurationMS(context.Background(), data)
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if math.Abs(ms-1000) > 1 {
		t.Fatalf("expected ~1000ms byte-rate estimate, got %v", ms)
	}
}

func TestDurationFloor(t *testing.T) {
	p := newTestProber(t, 128000)
	ms, err := p.DurationMS(context.Background(), []byte{0x01})
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if ms != minDurationMS {
		t.Fatalf("expected floor %v, got %v", minDurationMS, ms)
	}
}

func TestEmptyAudioFails(t *testing.T) {
	p := newTestProber(t, 128000)
	if _, err := p.DurationMS(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty input")
	}
}
