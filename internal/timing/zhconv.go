package timing

import "github.com/longbridgeapp/opencc"

// Converter maps traditional and variant character spellings to their
// simplified forms. The alignment model emits traditional characters while
// downstream consumers expect simplified ones.
//
// Two stages: an explicit whole-word override map checked first, then a
// general OpenCC conversion. The override map exists for spellings OpenCC
// treats as ambiguous; keep it small and test-covered rather than exhaustive.
type Converter struct {
	overrides map[string]string
	cc        *opencc.OpenCC
}

func NewConverter() *Converter {
	c := &Converter{
		overrides: map[string]string{
			"那幺": "那么", "那麽": "那么",
			"要幺": "要么", "要麽": "要么",
			"什幺": "什么", "什麽": "什么",
			"瞭":  "了", "麽": "么", "幺": "么",
			"顯著": "显着",
		},
	}
	if cc, err := opencc.New("t2s"); err == nil {
		c.cc = cc
	}
	return c
}

// Convert returns the simplified form of word. Conversion is best effort:
// a failing or unavailable converter returns the input unchanged.
func (c *Converter) Convert(word string) string {
	if word == "" {
		return word
	}
	if mapped, ok := c.overrides[word]; ok {
		return mapped
	}
	if c.cc == nil {
		return word
	}
	converted, err := c.cc.Convert(word)
	if err != nil || converted == "" {
		return word
	}
	return converted
}
