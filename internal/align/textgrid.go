package align

import (
	"bufio"
	"strconv"
	"strings"

	"github.com/fasttts-labs/fasttts-core/internal/timing"
)

// silence labels MFA emits for non-speech intervals.
var silenceLabels = map[string]bool{
	"":    true,
	"sil": true,
	"sp":  true,
	"spn": true,
}

// parseTextGrid extracts the word intervals from a Praat TextGrid in long
// text format. Only the tier named "words" is read; phone tiers are skipped.
func parseTextGrid(content string) []timing.WordTiming {
	var (
		out     []timing.WordTiming
		inWords bool
		xmin    float64
		xmax    float64
	)

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if strings.HasPrefix(line, "name =") {
			tier := strings.Trim(strings.TrimSpace(strings.TrimPrefix(line, "name =")), `"`)
			inWords = tier == "words"
			continue
		}
		if !inWords {
			continue
		}

		switch {
		case strings.HasPrefix(line, "xmin ="):
			xmin = parseGridFloat(line, "xmin =")
		case strings.HasPrefix(line, "xmax ="):
			xmax = parseGridFloat(line, "xmax =")
		case strings.HasPrefix(line, "text ="):
			word := strings.Trim(strings.TrimSpace(strings.TrimPrefix(line, "text =")), `"`)
			if silenceLabels[strings.ToLower(word)] {
				continue
			}
			out = append(out, timing.WordTiming{
				Word:       word,
				StartMS:    xmin * 1000,
				EndMS:      xmax * 1000,
				Source:     timing.SourceAligned,
				Confidence: 1,
			})
		}
	}
	return out
}

func parseGridFloat(line, prefix string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(line, prefix)), 64)
	if err != nil {
		return 0
	}
	return v
}
