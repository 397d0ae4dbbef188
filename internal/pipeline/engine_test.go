package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/fasttts-labs/fasttts-core/internal/audioprobe"
	"github.com/fasttts-labs/fasttts-core/internal/config"
	"github.com/fasttts-labs/fasttts-core/internal/synth"
	"github.com/fasttts-labs/fasttts-core/internal/textseg"
	"github.com/fasttts-labs/fasttts-core/internal/timing"
)

type fakeProvider struct {
	errs  []error
	calls int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Synthesize(ctx context.Context, req synth.Request) (synth.Result, error) {
	call := f.calls
	f.calls++
	if call < len(f.errs) && f.errs[call] != nil {
		return synth.Result{}, f.errs[call]
	}
	return synth.Result{
		Audio:  []byte{0xA0 + byte(call), 0x02, 0x03, 0x04},
		Coarse: &synth.CoarseTiming{Text: req.Text, StartMS: 0, EndMS: 1000},
	}, nil
}

type fakeAligner struct {
	available   bool
	err         error
	calls       int
	gotAudio    []byte
	gotWords    []string
	gotDuration float64
}

func (f *fakeAligner) Available(ctx context.Context) bool { return f.available }

func (f *fakeAligner) Align(ctx context.Context, audio []byte, words []string, totalDurationMS float64) ([]timing.WordTiming, error) {
	f.calls++
	f.gotAudio = append([]byte(nil), audio...)
	f.gotWords = append([]string(nil), words...)
	f.gotDuration = totalDurationMS
	if f.err != nil {
		return nil, f.err
	}
	out := make([]timing.WordTiming, 0, len(words))
	for i, w := range words {
		out = append(out, timing.WordTiming{
			Word:       w,
			StartMS:    float64(i * 100),
			EndMS:      float64(i*100 + 90),
			Source:     timing.SourceAligned,
			Confidence: 1,
		})
	}
	return out, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, provider synth.Provider, aligner *fakeAligner, maxWords int) *Engine {
	t.Helper()
	seg, err := textseg.New(maxWords)
	if err != nil {
		t.Fatalf("new segmenter: %v", err)
	}
	prober, err := audioprobe.New(config.ProbeConfig{
		FFprobeCommand: "missing-ffprobe-binary",
		TimeoutSec:     1,
	}, 128000, testLogger())
	if err != nil {
		t.Fatalf("new prober: %v", err)
	}
	client := synth.NewClient(provider, time.Millisecond, testLogger())

	opts := Options{CallsPerMinute: 60, DefaultVoice: "v1", Format: "mp3"}
	if aligner == nil {
		return New(seg, client, synth.NewCatalog(nil), prober, nil, opts, testLogger())
	}
	return New(seg, client, synth.NewCatalog(nil), prober, aligner, opts, testLogger())
}

const shortText = "今天天气很好。"

func TestSingleChunkSingleCall(t *testing.T) {
	provider := &fakeProvider{}
	e := newTestEngine(t, provider, nil, 120)

	out, err := e.Synthesize(context.Background(), Request{Text: shortText}, nil)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if provider.calls != 1 {
		t.Fatalf("expected 1 provider call, got %d", provider.calls)
	}
	if out.Chunks != 1 {
		t.Fatalf("expected 1 chunk, got %d", out.Chunks)
	}
	if out.Aligned {
		t.Fatal("no aligner configured, output should not be aligned")
	}
	if len(out.Timings) == 0 {
		t.Fatal("expected estimated timings")
	}
	for _, w := range out.Timings {
		if w.Source != timing.SourceEstimated || w.Confidence != 0 {
			t.Fatalf("expected estimated timing, got %+v", w)
		}
	}
}

func TestMultiChunkOffsetsAccumulate(t *testing.T) {
	provider := &fakeProvider{}
	e := newTestEngine(t, provider, nil, 6)
	e.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	text := strings.Repeat("今天天气很好。明天可能下雨。", 4)
	out, err := e.Synthesize(context.Background(), Request{Text: text}, nil)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if out.Chunks < 2 {
		t.Fatalf("expected multiple chunks, got %d", out.Chunks)
	}
	if provider.calls != out.Chunks {
		t.Fatalf("expected one call per chunk, got %d calls for %d chunks", provider.calls, out.Chunks)
	}
	if out.DurationMS != float64(out.Chunks)*1000 {
		t.Fatalf("expected %d x 1000ms, got %f", out.Chunks, out.DurationMS)
	}
	last := out.Timings[len(out.Timings)-1]
	if last.StartMS < 1000 {
		t.Fatalf("later chunk timings should be offset past the first chunk, got start %f", last.StartMS)
	}
	for i := 1; i < len(out.Timings); i++ {
		if out.Timings[i].StartMS < out.Timings[i-1].EndMS {
			t.Fatalf("timeline not monotonic at %d: %+v then %+v", i, out.Timings[i-1], out.Timings[i])
		}
	}
}

func TestRateLimitedChunkRetriedOnce(t *testing.T) {
	provider := &fakeProvider{errs: []error{
		&synth.ProviderError{Kind: synth.FailureRateLimited, Err: fmt.Errorf("429")},
	}}
	e := newTestEngine(t, provider, nil, 120)

	out, err := e.Synthesize(context.Background(), Request{Text: shortText}, nil)
	if err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if provider.calls != 2 {
		t.Fatalf("expected 2 provider calls, got %d", provider.calls)
	}
	if out.Chunks != 1 {
		t.Fatalf("expected 1 chunk, got %d", out.Chunks)
	}
}

func TestRateLimitExhaustedFailsRequest(t *testing.T) {
	rl := &synth.ProviderError{Kind: synth.FailureRateLimited, Err: fmt.Errorf("429")}
	provider := &fakeProvider{errs: []error{rl, rl}}
	e := newTestEngine(t, provider, nil, 120)

	_, err := e.Synthesize(context.Background(), Request{Text: shortText}, nil)
	var perr *Error
	if !errors.As(err, &perr) || perr.Kind != KindRateLimited {
		t.Fatalf("expected rate-limited pipeline error, got %v", err)
	}
	if perr.ChunkIndex != 0 {
		t.Fatalf("expected failure attributed to chunk 0, got %d", perr.ChunkIndex)
	}
}

func TestDataErrorNotRetried(t *testing.T) {
	provider := &fakeProvider{errs: []error{
		&synth.ProviderError{Kind: synth.FailureData, Err: fmt.Errorf("empty audio")},
	}}
	e := newTestEngine(t, provider, nil, 120)

	_, err := e.Synthesize(context.Background(), Request{Text: shortText}, nil)
	var perr *Error
	if !errors.As(err, &perr) || perr.Kind != KindProviderData {
		t.Fatalf("expected provider data error, got %v", err)
	}
	if provider.calls != 1 {
		t.Fatalf("data errors must not be retried, got %d calls", provider.calls)
	}
}

func TestMultiChunkAlignsCombinedAudioOnce(t *testing.T) {
	provider := &fakeProvider{}
	aligner := &fakeAligner{available: true}
	e := newTestEngine(t, provider, aligner, 6)
	e.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	text := strings.Repeat("今天天气很好。明天可能下雨。", 4)
	out, err := e.Synthesize(context.Background(), Request{Text: text}, nil)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if out.Chunks < 2 {
		t.Fatalf("expected multiple chunks, got %d", out.Chunks)
	}
	if aligner.calls != 1 {
		t.Fatalf("expected a single alignment pass over the combined audio, got %d calls", aligner.calls)
	}
	if len(aligner.gotAudio) != out.Chunks*4 {
		t.Fatalf("aligner should receive all %d chunks concatenated, got %d bytes", out.Chunks, len(aligner.gotAudio))
	}
	if aligner.gotAudio[0] != 0xA0 || aligner.gotAudio[4] != 0xA1 {
		t.Fatalf("combined audio out of chunk order: % x", aligner.gotAudio[:8])
	}
	if aligner.gotDuration != out.DurationMS {
		t.Fatalf("aligner should receive the total duration %f, got %f", out.DurationMS, aligner.gotDuration)
	}
	if got, want := len(aligner.gotWords), len(out.Timings); got < want {
		t.Fatalf("aligner should receive the full transcript, got %d words for %d timings", got, want)
	}
	if !out.Aligned {
		t.Fatal("combined pass should supersede the estimates")
	}
}

func TestAlignedTimingsPreferred(t *testing.T) {
	provider := &fakeProvider{}
	aligner := &fakeAligner{available: true}
	e := newTestEngine(t, provider, aligner, 120)

	out, err := e.Synthesize(context.Background(), Request{Text: shortText}, nil)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if !out.Aligned {
		t.Fatal("expected aligned output")
	}
	if aligner.calls != 1 {
		t.Fatalf("expected 1 alignment call, got %d", aligner.calls)
	}
	for _, w := range out.Timings {
		if w.Source != timing.SourceAligned {
			t.Fatalf("expected aligned source, got %+v", w)
		}
	}
}

func TestAlignmentFailureFallsBackToEstimates(t *testing.T) {
	provider := &fakeProvider{}
	aligner := &fakeAligner{available: true, err: fmt.Errorf("aligner crashed")}
	e := newTestEngine(t, provider, aligner, 120)

	out, err := e.Synthesize(context.Background(), Request{Text: shortText}, nil)
	if err != nil {
		t.Fatalf("alignment failure must not fail the request: %v", err)
	}
	if out.Aligned {
		t.Fatal("output should fall back to estimated timings")
	}
	for _, w := range out.Timings {
		if w.Source != timing.SourceEstimated {
			t.Fatalf("expected estimated timing, got %+v", w)
		}
	}
}

func TestUnavailableAlignerSkipsAlignCalls(t *testing.T) {
	provider := &fakeProvider{}
	aligner := &fakeAligner{available: false}
	e := newTestEngine(t, provider, aligner, 120)

	out, err := e.Synthesize(context.Background(), Request{Text: shortText}, nil)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if aligner.calls != 0 {
		t.Fatalf("unavailable aligner must not be invoked, got %d calls", aligner.calls)
	}
	if out.Aligned {
		t.Fatal("expected estimated output")
	}
}

func TestEmptyTextRejected(t *testing.T) {
	e := newTestEngine(t, &fakeProvider{}, nil, 120)
	_, err := e.Synthesize(context.Background(), Request{Text: "   "}, nil)
	var perr *Error
	if !errors.As(err, &perr) || perr.Kind != KindInvalidInput {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}

func TestUnknownVoiceRejected(t *testing.T) {
	seg, err := textseg.New(120)
	if err != nil {
		t.Fatalf("new segmenter: %v", err)
	}
	prober, err := audioprobe.New(config.ProbeConfig{FFprobeCommand: "missing-ffprobe-binary", TimeoutSec: 1}, 128000, testLogger())
	if err != nil {
		t.Fatalf("new prober: %v", err)
	}
	client := synth.NewClient(&fakeProvider{}, time.Millisecond, testLogger())
	e := New(seg, client, synth.NewCatalog(synth.MinimaxVoices()), prober, nil,
		Options{CallsPerMinute: 60, DefaultVoice: "Chinese (Mandarin)_Gentleman"}, testLogger())

	_, err = e.Synthesize(context.Background(), Request{Text: shortText, Voice: "bogus-voice"}, nil)
	var perr *Error
	if !errors.As(err, &perr) || perr.Kind != KindInvalidInput {
		t.Fatalf("expected invalid input for unknown voice, got %v", err)
	}
}

func TestCancellationStopsRun(t *testing.T) {
	provider := &fakeProvider{}
	e := newTestEngine(t, provider, nil, 6)
	e.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	text := strings.Repeat("今天天气很好。明天可能下雨。", 4)
	_, err := e.Synthesize(ctx, Request{Text: text}, nil)
	var perr *Error
	if !errors.As(err, &perr) || perr.Kind != KindCancelled {
		t.Fatalf("expected cancelled error, got %v", err)
	}
}

func TestProgressReported(t *testing.T) {
	provider := &fakeProvider{}
	e := newTestEngine(t, provider, nil, 120)

	var stages []string
	report := func(stage string, done, total int) { stages = append(stages, stage) }
	if _, err := e.Synthesize(context.Background(), Request{Text: shortText}, report); err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	want := []string{"segmenting", "synthesizing", "aligning", "finalizing"}
	if len(stages) != len(want) {
		t.Fatalf("expected stages %v, got %v", want, stages)
	}
	for i, stage := range want {
		if stages[i] != stage {
			t.Fatalf("expected stage %q at position %d, got %v", stage, i, stages)
		}
	}
}
