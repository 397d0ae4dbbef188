package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/fasttts-labs/fasttts-core/internal/config"
	"github.com/fasttts-labs/fasttts-core/internal/pipeline"
	"github.com/fasttts-labs/fasttts-core/internal/timing"
)

func TestRequestContextWithoutTimeout(t *testing.T) {
	ctx, cancel := requestContext(context.Background(), config.ServiceConfig{})
	defer cancel()
	if _, ok := ctx.Deadline(); ok {
		t.Fatal("zero timeout must not set a deadline")
	}
}

func TestRequestContextWithTimeout(t *testing.T) {
	ctx, cancel := requestContext(context.Background(), config.ServiceConfig{RequestTimeoutSec: 30})
	defer cancel()
	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("expected a deadline")
	}
	if remaining := time.Until(deadline); remaining <= 0 || remaining > 30*time.Second {
		t.Fatalf("unexpected deadline %v from now", remaining)
	}
}

func TestFailedResultCarriesErrorKind(t *testing.T) {
	err := &pipeline.Error{Kind: pipeline.KindRateLimited, ChunkIndex: 2, Err: fmt.Errorf("429")}
	result := failedResult("req-1", err)
	if result.ErrorKind != "rate_limited" {
		t.Fatalf("unexpected error kind %q", result.ErrorKind)
	}
	if result.Error == "" {
		t.Fatal("expected error message")
	}
	if len(result.Audio) != 0 || len(result.Timings) != 0 {
		t.Fatal("failed result must not carry audio or timings")
	}
}

func TestFailedResultPlainError(t *testing.T) {
	result := failedResult("req-1", fmt.Errorf("boom"))
	if result.ErrorKind != "" {
		t.Fatalf("plain errors should have no kind, got %q", result.ErrorKind)
	}
}

func TestSuccessResultWireShape(t *testing.T) {
	out := pipeline.Output{
		Audio:      []byte{0x01},
		Format:     "mp3",
		DurationMS: 1500,
		Chunks:     2,
		Aligned:    true,
		Timings: []timing.WordTiming{
			{Word: "你好", StartMS: 0, EndMS: 500, Source: timing.SourceAligned, Confidence: 1},
			{Word: "世界", StartMS: 500, EndMS: 1500, Source: timing.SourceEstimated, Confidence: 0},
		},
	}
	result := successResult("req-9", out)
	if result.RequestID != "req-9" || !result.Aligned || result.Chunks != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(result.Timings) != 2 {
		t.Fatalf("expected 2 wire timings, got %d", len(result.Timings))
	}
	if result.Timings[0].Source != "aligned" || result.Timings[1].Source != "estimated" {
		t.Fatalf("unexpected sources %+v", result.Timings)
	}
}
