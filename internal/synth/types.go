// Package synth calls the external speech synthesis provider for one chunk
// of text and classifies its failures so the pipeline can branch on them.
package synth

import (
	"context"
	"fmt"
)

// Request carries the text and voice parameters for one provider call.
type Request struct {
	Text   string
	Voice  string
	Speed  float64
	Volume float64
}

// CoarseTiming is the whole-utterance timing range some providers return.
// It covers the entire submitted text without per-word resolution.
type CoarseTiming struct {
	Text    string
	StartMS float64
	EndMS   float64
}

// Result is the provider output for one chunk.
type Result struct {
	Audio  []byte
	Coarse *CoarseTiming
}

// Provider is the contract every synthesis backend implements.
type Provider interface {
	Name() string
	Synthesize(ctx context.Context, req Request) (Result, error)
}

// FailureKind classifies provider errors for retry decisions.
type FailureKind int

const (
	// FailureTransient covers network-level errors worth retrying.
	FailureTransient FailureKind = iota
	// FailureRateLimited marks a requests-per-minute rejection; retry after
	// a cooldown.
	FailureRateLimited
	// FailureData marks a malformed or empty response. Retrying cannot help.
	FailureData
)

func (k FailureKind) String() string {
	switch k {
	case FailureRateLimited:
		return "rate_limited"
	case FailureData:
		return "data"
	default:
		return "transient"
	}
}

// ProviderError wraps a provider failure with its classification.
type ProviderError struct {
	Kind FailureKind
	Err  error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("synthesis %s failure: %v", e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func failure(kind FailureKind, format string, args ...any) error {
	return &ProviderError{Kind: kind, Err: fmt.Errorf(format, args...)}
}
