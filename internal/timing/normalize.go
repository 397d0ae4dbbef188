package timing

import (
	"sort"
	"strings"
	"unicode"
)

// Normalizer applies the canonicalization passes every timing list goes
// through before being returned: script normalization, punctuation filtering
// and monotonicity enforcement. Running it twice is a no-op.
type Normalizer struct {
	converter *Converter
}

func NewNormalizer() *Normalizer {
	return &Normalizer{converter: NewConverter()}
}

// Offset shifts every timestamp by offsetMS, moving chunk-local timings onto
// the global timeline.
func Offset(timings []WordTiming, offsetMS float64) []WordTiming {
	if offsetMS == 0 || len(timings) == 0 {
		return timings
	}
	shifted := make([]WordTiming, len(timings))
	for i, t := range timings {
		t.StartMS += offsetMS
		t.EndMS += offsetMS
		shifted[i] = t
	}
	return shifted
}

// Normalize canonicalizes a timing list: variant spellings become simplified
// forms, pure-punctuation entries are dropped, and the remaining entries are
// sorted and made strictly non-overlapping.
func (n *Normalizer) Normalize(timings []WordTiming) []WordTiming {
	if len(timings) == 0 {
		return nil
	}

	out := make([]WordTiming, 0, len(timings))
	for _, t := range timings {
		word := strings.TrimSpace(t.Word)
		if word == "" || !isLexical(word) {
			continue
		}
		t.Word = n.converter.Convert(word)
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].StartMS < out[j].StartMS })

	prevEnd := 0.0
	for i := range out {
		if out[i].StartMS < prevEnd {
			out[i].StartMS = prevEnd
		}
		if out[i].EndMS <= out[i].StartMS {
			out[i].EndMS = out[i].StartMS + 1
		}
		prevEnd = out[i].EndMS
	}
	return out
}

// isLexical reports whether the word carries at least one letter or digit;
// entries made purely of punctuation or symbols are non-lexical.
func isLexical(word string) bool {
	for _, r := range word {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return true
		}
	}
	return false
}
