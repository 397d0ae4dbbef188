// Package align produces per-word timings for synthesized audio by driving
// an external forced aligner. When no aligner is installed the pipeline
// falls back to estimated timings, so unavailability is reported as a
// distinct condition rather than a failure.
package align

import (
	"context"
	"errors"

	"github.com/fasttts-labs/fasttts-core/internal/timing"
)

// ErrUnavailable reports that no alignment backend is installed or that its
// required models are missing. Callers treat this differently from an
// alignment run that started and failed.
var ErrUnavailable = errors.New("alignment backend unavailable")

// Aligner maps chunk audio back onto its words.
type Aligner interface {
	// Available reports whether the backend can be used at all. The result
	// is cached for the lifetime of the aligner.
	Available(ctx context.Context) bool

	// Align maps the combined audio of a whole request back onto its words.
	// Timings are relative to the start of the audio; words the aligner
	// could not place are simply absent from the result. totalDurationMS is
	// the probed duration of the audio and bounds the output: intervals the
	// tool places past the end of the audio are discarded or clamped.
	Align(ctx context.Context, audio []byte, words []string, totalDurationMS float64) ([]timing.WordTiming, error)
}
