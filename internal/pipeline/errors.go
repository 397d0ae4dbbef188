package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/fasttts-labs/fasttts-core/internal/synth"
)

// Kind classifies pipeline failures for callers that branch on them.
type Kind int

const (
	// KindInvalidInput marks requests that cannot produce audio, such as
	// empty text or an unknown voice.
	KindInvalidInput Kind = iota
	// KindRateLimited means the provider rejected a chunk twice for rate
	// limiting, exhausting the retry budget.
	KindRateLimited
	// KindTransient covers network-level provider failures.
	KindTransient
	// KindProviderData marks malformed or empty provider responses.
	KindProviderData
	// KindDurationProbe means no probe tier could size a chunk's audio.
	KindDurationProbe
	// KindCancelled means the caller abandoned the request mid-run.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindRateLimited:
		return "rate_limited"
	case KindTransient:
		return "transient"
	case KindProviderData:
		return "provider_data"
	case KindDurationProbe:
		return "duration_probe"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error wraps a pipeline failure with its classification and, when the
// failure happened inside the chunk loop, the index of the failing chunk.
type Error struct {
	Kind       Kind
	ChunkIndex int
	Err        error
}

func (e *Error) Error() string {
	if e.ChunkIndex >= 0 {
		return fmt.Sprintf("pipeline %s failure on chunk %d: %v", e.Kind, e.ChunkIndex, e.Err)
	}
	return fmt.Sprintf("pipeline %s failure: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func failf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, ChunkIndex: -1, Err: fmt.Errorf(format, args...)}
}

// classify maps an error surfaced during the chunk loop onto a pipeline
// error carrying the chunk index.
func classify(err error, chunkIndex int) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindCancelled, ChunkIndex: chunkIndex, Err: err}
	}
	var perr *synth.ProviderError
	if errors.As(err, &perr) {
		kind := KindTransient
		switch perr.Kind {
		case synth.FailureRateLimited:
			kind = KindRateLimited
		case synth.FailureData:
			kind = KindProviderData
		}
		return &Error{Kind: kind, ChunkIndex: chunkIndex, Err: err}
	}
	return &Error{Kind: KindTransient, ChunkIndex: chunkIndex, Err: err}
}
