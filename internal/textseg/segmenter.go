// Package textseg splits text into provider-sized chunks along natural
// sentence and clause boundaries.
package textseg

import (
	"fmt"
	"strings"

	"github.com/go-ego/gse"
)

const (
	// DefaultMaxWords is the per-chunk word budget applied when the caller
	// does not configure one.
	DefaultMaxWords = 120

	minSearchRange = 5
)

var sentenceEndings = map[rune]bool{
	'。': true, '！': true, '？': true, '!': true, '?': true, '.': true,
}

var clauseBreaks = map[rune]bool{
	'，': true, '、': true, ',': true, ';': true, '；': true,
}

// Chunk is one bounded slice of the input text. Index ordering is fixed once
// segmentation completes; concatenating chunk texts in index order
// reconstructs the tokenized input.
type Chunk struct {
	Index int
	Text  string
}

// Segmenter tokenizes text with a dictionary-based word segmenter and groups
// the tokens into chunks no larger than the configured budget.
type Segmenter struct {
	seg      gse.Segmenter
	maxWords int
}

func New(maxWords int) (*Segmenter, error) {
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}
	s := &Segmenter{maxWords: maxWords}
	if err := s.seg.LoadDict(); err != nil {
		return nil, fmt.Errorf("load segmentation dictionary: %w", err)
	}
	return s, nil
}

// MaxWords reports the configured per-chunk budget.
func (s *Segmenter) MaxWords() int { return s.maxWords }

// Words tokenizes text and drops whitespace-only tokens. The same tokenizer
// feeds both chunking and fallback timing estimation so the two stay in sync.
func (s *Segmenter) Words(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	raw := s.seg.Cut(text, true)
	words := make([]string, 0, len(raw))
	for _, w := range raw {
		if strings.TrimSpace(w) != "" {
			words = append(words, w)
		}
	}
	return words
}

// Split segments text into ordered chunks. Texts within budget come back as a
// single chunk; larger texts break at the strongest punctuation found inside
// a tolerance band around each budget boundary, or exactly at the budget when
// the band holds no punctuation.
func (s *Segmenter) Split(text string) []Chunk {
	words := s.Words(text)
	if len(words) == 0 {
		return nil
	}
	if len(words) <= s.maxWords {
		return []Chunk{{Index: 0, Text: strings.Join(words, "")}}
	}

	var chunks []Chunk
	start := 0
	for start < len(words) {
		if start+s.maxWords >= len(words) {
			chunks = append(chunks, Chunk{Index: len(chunks), Text: strings.Join(words[start:], "")})
			break
		}
		remaining := len(words) - start
		target := s.maxWords
		if remaining < target {
			target = remaining
		}
		breakPoint := findBreakPoint(words[start:], target)
		chunks = append(chunks, Chunk{Index: len(chunks), Text: strings.Join(words[start:start+breakPoint], "")})
		start += breakPoint
	}
	return chunks
}

// findBreakPoint searches a tolerance band around target for the strongest
// punctuation token: sentence endings beat clause breaks, and ties go to the
// position closest to the target. Without punctuation the break lands exactly
// on the target.
func findBreakPoint(words []string, target int) int {
	searchRange := target * 20 / 100
	if searchRange < minSearchRange {
		searchRange = minSearchRange
	}
	minPos := target - searchRange
	if minPos < 1 {
		minPos = 1
	}
	maxPos := target + searchRange
	if maxPos > len(words) {
		maxPos = len(words)
	}

	bestPos, bestPriority := target, -1
	for i := minPos; i < maxPos; i++ {
		priority := tokenPriority(words[i])
		if priority > bestPriority ||
			(priority == bestPriority && abs(i-target) < abs(bestPos-target)) {
			bestPos, bestPriority = i, priority
		}
	}
	if bestPos < 1 {
		bestPos = 1
	}
	return bestPos
}

func tokenPriority(word string) int {
	priority := -1
	for _, r := range word {
		switch {
		case sentenceEndings[r]:
			return 2
		case clauseBreaks[r]:
			priority = 1
		}
	}
	return priority
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
