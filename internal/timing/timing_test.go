package timing

import (
	"math"
	"testing"
)

func TestEstimateProportionalDistribution(t *testing.T) {
	words := []string{"今天", "天气", "很", "好"}
	timings := Estimate(words, 6000)
	if len(timings) != len(words) {
		t.Fatalf("expected %d timings, got %d", len(words), len(timings))
	}
	// 6 characters over 6000ms: two-character words get 2000ms, single 1000ms.
	if math.Abs(timings[0].DurationMS()-2000) > 1 {
		t.Fatalf("expected ~2000ms for first word, got %v", timings[0].DurationMS())
	}
	if math.Abs(timings[2].DurationMS()-1000) > 1 {
		t.Fatalf("expected ~1000ms for single character, got %v", timings[2].DurationMS())
	}
	for i, wt := range timings {
		if wt.Source != SourceEstimated || wt.Confidence != 0 {
			t.Fatalf("entry %d should be an estimate with zero confidence: %+v", i, wt)
		}
		if wt.StartMS >= wt.EndMS {
			t.Fatalf("entry %d has invalid span: %+v", i, wt)
		}
	}
	last := timings[len(timings)-1]
	if math.Abs(last.EndMS-6000) > 1 {
		t.Fatalf("expected total span ~6000ms, got %v", last.EndMS)
	}
}

func TestEstimateAppliesDurationFloor(t *testing.T) {
	words := []string{"一", "个", "很", "长", "的", "句", "子"}
	timings := Estimate(words, 140)
	for i, wt := range timings {
		if wt.DurationMS() < minWordDurationMS {
			t.Fatalf("entry %d below floor: %v", i, wt.DurationMS())
		}
	}
}

func TestEstimateWithoutDuration(t *testing.T) {
	timings := Estimate([]string{"你好", "世界"}, 0)
	if len(timings) != 2 {
		t.Fatalf("expected 2 timings, got %d", len(timings))
	}
	if timings[1].EndMS <= 0 {
		t.Fatal("expected positive synthetic duration")
	}
}

func TestEstimateEmpty(t *testing.T) {
	if timings := Estimate(nil, 1000); timings != nil {
		t.Fatalf("expected nil for empty input, got %v", timings)
	}
}

func TestOffsetShiftsTimeline(t *testing.T) {
	timings := []WordTiming{{Word: "你好", StartMS: 0, EndMS: 500}}
	shifted := Offset(timings, 1200)
	if shifted[0].StartMS != 1200 || shifted[0].EndMS != 1700 {
		t.Fatalf("unexpected shift: %+v", shifted[0])
	}
	if timings[0].StartMS != 0 {
		t.Fatal("offset must not mutate its input")
	}
}

func TestNormalizeDropsPunctuation(t *testing.T) {
	n := NewNormalizer()
	in := []WordTiming{
		{Word: "你好", StartMS: 0, EndMS: 400, Source: SourceAligned},
		{Word: "，", StartMS: 400, EndMS: 450, Source: SourceAligned},
		{Word: "世界", StartMS: 450, EndMS: 900, Source: SourceAligned},
		{Word: "。", StartMS: 900, EndMS: 950, Source: SourceAligned},
	}
	out := n.Normalize(in)
	if len(out) != 2 {
		t.Fatalf("expected 2 lexical entries, got %d", len(out))
	}
	for _, wt := range out {
		if wt.Word == "，" || wt.Word == "。" {
			t.Fatalf("punctuation survived normalization: %+v", wt)
		}
	}
}

func TestNormalizeConvertsVariantSpellings(t *testing.T) {
	n := NewNormalizer()
	in := []WordTiming{
		{Word: "什麽", StartMS: 0, EndMS: 300, Source: SourceAligned},
		{Word: "瞭", StartMS: 300, EndMS: 500, Source: SourceAligned},
	}
	out := n.Normalize(in)
	if out[0].Word != "什么" {
		t.Fatalf("expected 什么, got %q", out[0].Word)
	}
	if out[1].Word != "了" {
		t.Fatalf("expected 了, got %q", out[1].Word)
	}
}

func TestNormalizeEnforcesMonotonicSpans(t *testing.T) {
	n := NewNormalizer()
	in := []WordTiming{
		{Word: "二", StartMS: 500, EndMS: 400, Source: SourceEstimated},
		{Word: "一", StartMS: 0, EndMS: 600, Source: SourceEstimated},
	}
	out := n.Normalize(in)
	prevEnd := 0.0
	for i, wt := range out {
		if wt.StartMS >= wt.EndMS {
			t.Fatalf("entry %d has start >= end: %+v", i, wt)
		}
		if wt.StartMS < prevEnd {
			t.Fatalf("entry %d overlaps previous: %+v", i, wt)
		}
		prevEnd = wt.EndMS
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	n := NewNormalizer()
	in := []WordTiming{
		{Word: "什麽", StartMS: 100, EndMS: 50, Source: SourceAligned},
		{Word: "你好", StartMS: 0, EndMS: 400, Source: SourceAligned},
		{Word: "！", StartMS: 400, EndMS: 420, Source: SourceAligned},
	}
	once := n.Normalize(in)
	twice := n.Normalize(once)
	if len(once) != len(twice) {
		t.Fatalf("second pass changed length: %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Fatalf("second pass changed entry %d: %+v vs %+v", i, once[i], twice[i])
		}
	}
}

func TestHasAligned(t *testing.T) {
	if HasAligned([]WordTiming{{Source: SourceEstimated}}) {
		t.Fatal("estimated-only list reported aligned")
	}
	if !HasAligned([]WordTiming{{Source: SourceEstimated}, {Source: SourceAligned}}) {
		t.Fatal("aligned entry not detected")
	}
}
