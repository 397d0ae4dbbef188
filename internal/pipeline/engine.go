// Package pipeline orchestrates a synthesis request end to end: text
// normalization, chunking, paced provider calls, duration probing, one
// forced-alignment pass over the combined audio with estimated fallback,
// and final timeline normalization.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fasttts-labs/fasttts-core/internal/align"
	"github.com/fasttts-labs/fasttts-core/internal/audioprobe"
	"github.com/fasttts-labs/fasttts-core/internal/progress"
	"github.com/fasttts-labs/fasttts-core/internal/ratelimit"
	"github.com/fasttts-labs/fasttts-core/internal/synth"
	"github.com/fasttts-labs/fasttts-core/internal/textnorm"
	"github.com/fasttts-labs/fasttts-core/internal/textseg"
	"github.com/fasttts-labs/fasttts-core/internal/timing"
)

// Request is one synthesis job.
type Request struct {
	Text   string
	Voice  string
	Speed  float64
	Volume float64
}

// Output is the finished audio plus its word timeline.
type Output struct {
	Audio      []byte
	Format     string
	DurationMS float64
	Timings    []timing.WordTiming
	Chunks     int
	Aligned    bool
}

// ProgressFunc receives stage transitions while a request runs. May be nil.
type ProgressFunc func(stage string, chunksDone, chunksTotal int)

// Options carries the per-engine knobs that do not belong to a component.
type Options struct {
	CallsPerMinute int
	DefaultVoice   string
	DefaultSpeed   float64
	DefaultVolume  float64
	Format         string
}

// Engine wires the pipeline stages together. One engine serves many
// requests; each request gets its own rate governor.
type Engine struct {
	segmenter  *textseg.Segmenter
	client     *synth.Client
	catalog    *synth.Catalog
	prober     *audioprobe.Prober
	aligner    align.Aligner
	normalizer *timing.Normalizer
	opts       Options
	logger     *slog.Logger

	requests  metric.Int64Counter
	durations metric.Float64Histogram

	sleep func(ctx context.Context, d time.Duration) error
}

// New assembles an engine. aligner may be nil, in which case every word
// timing is estimated.
func New(segmenter *textseg.Segmenter, client *synth.Client, catalog *synth.Catalog,
	prober *audioprobe.Prober, aligner align.Aligner, opts Options, logger *slog.Logger) *Engine {
	if opts.Format == "" {
		opts.Format = "mp3"
	}
	if opts.DefaultSpeed == 0 {
		opts.DefaultSpeed = 1
	}
	if opts.DefaultVolume == 0 {
		opts.DefaultVolume = 1
	}
	if opts.DefaultVoice == "" {
		opts.DefaultVoice = catalog.Default()
	}
	meter := otel.Meter("github.com/fasttts-labs/fasttts-core/internal/pipeline")
	requests, _ := meter.Int64Counter("synthesis.requests",
		metric.WithDescription("Finished synthesis requests by outcome."))
	durations, _ := meter.Float64Histogram("synthesis.duration_ms",
		metric.WithDescription("Audio duration produced per successful request."),
		metric.WithUnit("ms"))
	return &Engine{
		segmenter:  segmenter,
		client:     client,
		catalog:    catalog,
		prober:     prober,
		aligner:    aligner,
		normalizer: timing.NewNormalizer(),
		opts:       opts,
		logger:     logger.With(slog.String("component", "pipeline")),
		requests:   requests,
		durations:  durations,
		sleep:      sleepCtx,
	}
}

// Synthesize runs the full pipeline for one request.
func (e *Engine) Synthesize(ctx context.Context, req Request, report ProgressFunc) (Output, error) {
	out, err := e.run(ctx, req, report)
	if err != nil {
		outcome := "unknown"
		var perr *Error
		if errors.As(err, &perr) {
			outcome = perr.Kind.String()
		}
		e.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
		return Output{}, err
	}
	e.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", "ok"),
		attribute.Bool("aligned", out.Aligned)))
	e.durations.Record(ctx, out.DurationMS)
	return out, nil
}

func (e *Engine) run(ctx context.Context, req Request, report ProgressFunc) (Output, error) {
	notify := func(stage string, done, total int) {
		if report != nil {
			report(stage, done, total)
		}
	}

	voice := req.Voice
	if voice == "" {
		voice = e.opts.DefaultVoice
	}
	if !e.catalog.Validate(voice) {
		return Output{}, failf(KindInvalidInput, "unknown voice %q", voice)
	}
	speed := req.Speed
	if speed == 0 {
		speed = e.opts.DefaultSpeed
	}
	volume := req.Volume
	if volume == 0 {
		volume = e.opts.DefaultVolume
	}

	notify(progress.StageSegmenting, 0, 0)
	text := textnorm.Preprocess(req.Text)
	chunks := e.segmenter.Split(text)
	if len(chunks) == 0 {
		return Output{}, failf(KindInvalidInput, "no synthesizable text in request")
	}

	start := time.Now()
	e.logger.Info("synthesis started",
		slog.Int("chunks", len(chunks)),
		slog.Int("text_runes", len([]rune(text))),
		slog.String("voice", voice))

	governor := ratelimit.New(e.opts.CallsPerMinute)

	var (
		audio     []byte
		estimates []timing.WordTiming
		allWords  []string
		offsetMS  float64
	)

	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return Output{}, classify(err, chunk.Index)
		}
		notify(progress.StageSynthesizing, chunk.Index, len(chunks))

		if wait := governor.Wait(chunk.Index, len(chunks)); wait > 0 {
			if err := e.sleep(ctx, wait); err != nil {
				return Output{}, classify(err, chunk.Index)
			}
		}
		governor.MarkCall()

		result, err := e.client.Synthesize(ctx, synth.Request{
			Text:   chunk.Text,
			Voice:  voice,
			Speed:  speed,
			Volume: volume,
		})
		if err != nil {
			return Output{}, classify(err, chunk.Index)
		}

		durationMS, err := e.chunkDuration(ctx, result)
		if err != nil {
			return Output{}, &Error{Kind: KindDurationProbe, ChunkIndex: chunk.Index, Err: err}
		}

		words := e.segmenter.Words(chunk.Text)
		estimates = append(estimates, timing.Offset(timing.Estimate(words, durationMS), offsetMS)...)
		allWords = append(allWords, words...)

		audio = append(audio, result.Audio...)
		offsetMS += durationMS
	}

	notify(progress.StageAligning, len(chunks), len(chunks))
	timeline := e.combinedAlignment(ctx, audio, allWords, offsetMS, estimates)

	notify(progress.StageFinalizing, len(chunks), len(chunks))
	timeline = e.normalizer.Normalize(timeline)

	e.logger.Info("synthesis finished",
		slog.Int("chunks", len(chunks)),
		slog.Float64("duration_ms", offsetMS),
		slog.Bool("aligned", timing.HasAligned(timeline)),
		slog.Duration("elapsed", time.Since(start)))

	return Output{
		Audio:      audio,
		Format:     e.opts.Format,
		DurationMS: offsetMS,
		Timings:    timeline,
		Chunks:     len(chunks),
		Aligned:    timing.HasAligned(timeline),
	}, nil
}

// chunkDuration sizes one chunk's audio, preferring the provider's coarse
// timing over probing when present.
func (e *Engine) chunkDuration(ctx context.Context, result synth.Result) (float64, error) {
	if result.Coarse != nil && result.Coarse.EndMS > result.Coarse.StartMS {
		return result.Coarse.EndMS - result.Coarse.StartMS, nil
	}
	return e.prober.DurationMS(ctx, result.Audio)
}

// combinedAlignment runs one forced-alignment pass over the whole combined
// audio. Per-chunk alignment would reintroduce boundary drift, so the chunk
// loop only produces estimates and this single pass supersedes them
// wholesale when it yields anything. Alignment problems never fail the
// request; they only lower timing quality.
func (e *Engine) combinedAlignment(ctx context.Context, audio []byte, words []string,
	totalDurationMS float64, estimates []timing.WordTiming) []timing.WordTiming {
	if e.aligner == nil || !e.aligner.Available(ctx) {
		return estimates
	}
	aligned, err := e.aligner.Align(ctx, audio, words, totalDurationMS)
	if err != nil {
		e.logger.Warn("combined alignment failed, keeping estimated timings",
			slog.String("error", err.Error()))
		return estimates
	}
	if len(aligned) == 0 {
		return estimates
	}
	return aligned
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
