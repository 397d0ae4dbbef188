package synth

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// mockPerRuneMS sizes mock audio so longer chunks take proportionally longer,
// mirroring how real synthesis behaves.
const mockPerRuneMS = 80

type mockProvider struct {
	sampleRate int
}

// NewMock returns a provider that produces silent WAV audio sized to the
// request text. Used in tests and for development without credentials.
func NewMock(sampleRate int) Provider {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return &mockProvider{sampleRate: sampleRate}
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Synthesize(ctx context.Context, req Request) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-time.After(time.Millisecond):
	}
	if req.Text == "" {
		return Result{}, failure(FailureData, "no text to synthesize")
	}

	durationMS := len([]rune(req.Text)) * mockPerRuneMS
	if durationMS < 200 {
		durationMS = 200
	}
	data, err := silentWAV(m.sampleRate, durationMS)
	if err != nil {
		return Result{}, failure(FailureData, "generate mock audio: %w", err)
	}
	return Result{
		Audio:  data,
		Coarse: &CoarseTiming{Text: req.Text, StartMS: 0, EndMS: float64(durationMS)},
	}, nil
}

func silentWAV(sampleRate, durationMS int) ([]byte, error) {
	var sink memWriteSeeker
	samples := sampleRate * durationMS / 1000
	buf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:   make([]int, samples),
	}
	enc := wav.NewEncoder(&sink, sampleRate, 16, 1, 1)
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("close wav encoder: %w", err)
	}
	return sink.buf, nil
}

// memWriteSeeker satisfies the WAV encoder's need to seek back and patch
// header sizes without touching the filesystem.
type memWriteSeeker struct {
	buf []byte
	pos int
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	if need := m.pos + len(p); need > len(m.buf) {
		grown := make([]byte, need)
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[m.pos:], p)
	m.pos += len(p)
	return len(p), nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var next int
	switch whence {
	case io.SeekStart:
		next = int(offset)
	case io.SeekCurrent:
		next = m.pos + int(offset)
	case io.SeekEnd:
		next = len(m.buf) + int(offset)
	default:
		return 0, fmt.Errorf("unsupported whence %d", whence)
	}
	if next < 0 {
		return 0, fmt.Errorf("negative seek position %d", next)
	}
	m.pos = next
	return int64(next), nil
}
