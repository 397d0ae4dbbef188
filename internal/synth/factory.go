package synth

import (
	"fmt"

	"github.com/fasttts-labs/fasttts-core/internal/config"
)

// FromConfig builds the configured provider and its voice catalog.
func FromConfig(cfg config.SynthesisConfig) (Provider, *Catalog, error) {
	switch cfg.Mode {
	case "minimax":
		if !ValidMinimaxModel(cfg.Model) {
			return nil, nil, fmt.Errorf("unknown synthesis model %q", cfg.Model)
		}
		return NewMinimax(cfg), NewCatalog(MinimaxVoices()), nil
	case "exec":
		provider, err := NewExec(cfg.Command)
		if err != nil {
			return nil, nil, err
		}
		return provider, NewCatalog(nil), nil
	case "mock":
		return NewMock(cfg.SampleRate), NewCatalog(nil), nil
	default:
		return nil, nil, fmt.Errorf("unknown synthesis mode %q", cfg.Mode)
	}
}
