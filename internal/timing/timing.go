// Package timing owns the canonical word-timing record and the passes that
// turn raw alignment or estimation output into it.
package timing

// Source records how a word timing was produced.
type Source string

const (
	// SourceAligned marks timings produced by forced alignment.
	SourceAligned Source = "aligned"
	// SourceEstimated marks timings derived from proportional estimation.
	SourceEstimated Source = "estimated"
)

// WordTiming is the per-word record handed to callers. StartMS is strictly
// less than EndMS, and normalized lists are sorted and non-overlapping.
type WordTiming struct {
	Word       string  `json:"word"`
	StartMS    float64 `json:"start_ms"`
	EndMS      float64 `json:"end_ms"`
	Source     Source  `json:"source"`
	Confidence float64 `json:"confidence"`
}

// DurationMS reports the span covered by the timing.
func (t WordTiming) DurationMS() float64 {
	return t.EndMS - t.StartMS
}

// HasAligned reports whether at least one entry came from forced alignment.
// The orchestrator uses this to decide whether an alignment pass supersedes
// the per-chunk estimates.
func HasAligned(timings []WordTiming) bool {
	for _, t := range timings {
		if t.Source == SourceAligned {
			return true
		}
	}
	return false
}
