package timing

const (
	// minWordDurationMS keeps single-character words from getting
	// implausibly short slots.
	minWordDurationMS = 100

	// fallbackPerWordMS sizes the total when no duration is known at all.
	fallbackPerWordMS = 400
)

// Estimate distributes totalDurationMS across words proportionally to their
// character count. Timestamps accumulate from zero; the normalizer offsets
// them into the global timeline for multi-chunk jobs. Every entry carries
// SourceEstimated with zero confidence.
func Estimate(words []string, totalDurationMS float64) []WordTiming {
	if len(words) == 0 {
		return nil
	}
	if totalDurationMS <= 0 {
		totalDurationMS = float64(len(words)) * fallbackPerWordMS
	}

	totalChars := 0
	for _, w := range words {
		totalChars += len([]rune(w))
	}
	if totalChars == 0 {
		return nil
	}

	timings := make([]WordTiming, 0, len(words))
	current := 0.0
	for _, w := range words {
		duration := totalDurationMS * float64(len([]rune(w))) / float64(totalChars)
		if duration < minWordDurationMS {
			duration = minWordDurationMS
		}
		timings = append(timings, WordTiming{
			Word:       w,
			StartMS:    current,
			EndMS:      current + duration,
			Source:     SourceEstimated,
			Confidence: 0,
		})
		current += duration
	}
	return timings
}
