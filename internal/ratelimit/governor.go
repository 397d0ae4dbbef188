// Package ratelimit paces outbound provider calls so a synthesis job stays
// under the provider's requests-per-minute ceiling.
package ratelimit

import "time"

const (
	// burstThreshold is the job size at or below which full rate accounting
	// is skipped: three calls cannot approach a per-minute ceiling.
	burstThreshold = 3

	burstDelay = 100 * time.Millisecond
)

// Governor computes advisory waits between provider calls. It is not a hard
// token bucket: the provider enforces the true limit and rate-limit responses
// are handled by the synthesis client. One Governor belongs to exactly one
// pipeline invocation.
type Governor struct {
	callsPerMinute int
	lastCallAt     time.Time
	clock          func() time.Time
}

func New(callsPerMinute int) *Governor {
	if callsPerMinute <= 0 {
		callsPerMinute = 1
	}
	return &Governor{callsPerMinute: callsPerMinute, clock: time.Now}
}

// Wait returns the pause required before issuing the call for chunkIndex.
// The first chunk never waits; small jobs use a fixed burst delay.
func (g *Governor) Wait(chunkIndex, totalChunks int) time.Duration {
	if chunkIndex == 0 {
		return 0
	}
	if totalChunks <= burstThreshold {
		return burstDelay
	}
	requiredGap := time.Minute / time.Duration(g.callsPerMinute)
	elapsed := g.clock().Sub(g.lastCallAt)
	if elapsed >= requiredGap {
		return 0
	}
	return requiredGap - elapsed
}

// MarkCall records the start of a provider call. Call it immediately before
// the request goes out so the next gap measures from call start.
func (g *Governor) MarkCall() {
	g.lastCallAt = g.clock()
}
