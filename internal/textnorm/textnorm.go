// Package textnorm prepares raw text for synthesis: Arabic numerals become
// Chinese numerals so the provider pronounces them, and symbols that disrupt
// word-level playback are stripped.
package textnorm

import (
	"regexp"
	"strconv"
	"strings"
)

var digits = [10]string{"零", "一", "二", "三", "四", "五", "六", "七", "八", "九"}

var (
	numberPattern     = regexp.MustCompile(`\d+`)
	bracketPattern    = regexp.MustCompile(`[【】\[\]{}「」『』〈〉《》（）()〔〕［］｛｝＜＞]`)
	quotePattern      = regexp.MustCompile("['\"“”‘’‛‟„‚‹›«»]")
	dashPattern       = regexp.MustCompile(`[—–―\-]`)
	symbolPattern     = regexp.MustCompile(`[～@#$%^&*_+=|\\<>/]`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Preprocess runs the full normalization applied before segmentation.
func Preprocess(text string) string {
	if text == "" {
		return ""
	}
	return Sanitize(ConvertNumbers(text))
}

// ConvertNumbers replaces standalone 1-4 digit numbers with their Chinese
// reading. Longer runs are read digit by digit, matching how years and phone
// numbers are usually spoken.
func ConvertNumbers(text string) string {
	if text == "" {
		return ""
	}
	return numberPattern.ReplaceAllStringFunc(text, func(match string) string {
		if len(match) > 4 {
			return digitByDigit(match)
		}
		n, err := strconv.Atoi(match)
		if err != nil {
			return match
		}
		return numberToChinese(n)
	})
}

func digitByDigit(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteString(digits[r-'0'])
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func numberToChinese(n int) string {
	switch {
	case n == 0:
		return digits[0]
	case n < 10:
		return digits[n]
	case n < 100:
		tens, ones := n/10, n%10
		var b strings.Builder
		if tens > 1 {
			b.WriteString(digits[tens])
		}
		b.WriteString("十")
		if ones > 0 {
			b.WriteString(digits[ones])
		}
		return b.String()
	case n < 1000:
		hundreds, rest := n/100, n%100
		result := digits[hundreds] + "百"
		if rest == 0 {
			return result
		}
		if rest < 10 {
			return result + digits[0] + digits[rest]
		}
		return result + numberToChinese(rest)
	default:
		thousands, rest := n/1000, n%1000
		result := digits[thousands] + "千"
		if rest == 0 {
			return result
		}
		if rest < 100 {
			return result + digits[0] + numberToChinese(rest)
		}
		return result + numberToChinese(rest)
	}
}

// Sanitize removes brackets, quotes, dashes and loose symbols that would
// otherwise surface as empty word containers downstream, then collapses
// whitespace.
func Sanitize(text string) string {
	if text == "" {
		return ""
	}
	text = bracketPattern.ReplaceAllString(text, "")
	text = quotePattern.ReplaceAllString(text, "")
	text = dashPattern.ReplaceAllString(text, "")
	text = symbolPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
}
