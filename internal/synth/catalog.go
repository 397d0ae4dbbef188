package synth

// Voice describes one selectable provider voice.
type Voice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language"`
	Type     string `json:"type"`
}

// Model describes one selectable synthesis model.
type Model struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Catalog validates voice selections against the known set.
type Catalog struct {
	voices map[string]Voice
	order  []string
}

func NewCatalog(voices []Voice) *Catalog {
	c := &Catalog{voices: make(map[string]Voice, len(voices))}
	for _, v := range voices {
		if _, exists := c.voices[v.ID]; exists {
			continue
		}
		c.voices[v.ID] = v
		c.order = append(c.order, v.ID)
	}
	return c
}

// Voices lists the catalog in registration order.
func (c *Catalog) Voices() []Voice {
	out := make([]Voice, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.voices[id])
	}
	return out
}

// Validate reports whether the voice id is selectable. An empty catalog
// accepts anything, which keeps exec and mock providers unconstrained.
func (c *Catalog) Validate(voiceID string) bool {
	if len(c.voices) == 0 {
		return true
	}
	_, ok := c.voices[voiceID]
	return ok
}

// Default returns the first registered voice id, or empty for an open
// catalog.
func (c *Catalog) Default() string {
	if len(c.order) == 0 {
		return ""
	}
	return c.order[0]
}

// MinimaxVoices is the built-in voice set for the MiniMax provider.
func MinimaxVoices() []Voice {
	return []Voice{
		{ID: "moss_audio_96a80421-22ea-11f0-92db-0e8893cbb430", Name: "Aria (Custom Female)", Language: "zh-CN", Type: "custom"},
		{ID: "moss_audio_afeaf743-22e7-11f0-b934-42db1b8d9b3b", Name: "Kevin (Custom Male)", Language: "zh-CN", Type: "custom"},
		{ID: "moss_audio_2d7de658-22bd-11f0-92db-0e8893cbb430", Name: "Nelson (Custom Male)", Language: "zh-CN", Type: "custom"},
		{ID: "moss_audio_943faac0-1fbf-11f0-97b0-d62ca20b6c41", Name: "Vera (Custom Female)", Language: "zh-CN", Type: "custom"},
		{ID: "Chinese (Mandarin)_Lyrical_Voice", Name: "Liyue (Lyrical Voice)", Language: "zh-CN", Type: "custom"},
		{ID: "Chinese (Mandarin)_Gentleman", Name: "Willi (Gentleman)", Language: "zh-CN", Type: "custom"},
		{ID: "Chinese (Mandarin)_Reliable_Executive", Name: "Exe (Reliable Executive)", Language: "zh-CN", Type: "custom"},
	}
}

// ValidMinimaxModel reports whether the MiniMax provider accepts the model
// id.
func ValidMinimaxModel(id string) bool {
	for _, m := range MinimaxModels() {
		if m.ID == id {
			return true
		}
	}
	return false
}

// MinimaxModels lists the models the MiniMax provider accepts.
func MinimaxModels() []Model {
	return []Model{
		{ID: "speech-02-turbo", Name: "Speech-02 Turbo", Description: "Enhanced multilingual with low latency"},
		{ID: "speech-02-hd", Name: "Speech-02 HD", Description: "Superior rhythm and stability"},
		{ID: "speech-01-turbo", Name: "Speech-01 Turbo", Description: "Legacy low-latency model"},
		{ID: "speech-01-hd", Name: "Speech-01 HD", Description: "Legacy expressive model"},
	}
}
