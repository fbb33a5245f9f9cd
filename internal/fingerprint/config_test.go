package fingerprint

import (
	"errors"
	"testing"

	"github.com/himanishpuri/landmark/internal/model"
)

func TestValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig is invalid: %v", err)
	}

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero magnitude floor", func(c *Config) { c.MinMagnitude = 0 }},
		{"negative magnitude floor", func(c *Config) { c.MinMagnitude = -1 }},
		{"negative adaptive threshold", func(c *Config) { c.AdaptiveThreshold = -0.5 }},
		{"negative radius", func(c *Config) { c.TimeRadius = -1 }},
		{"unknown window", func(c *Config) { c.Window = "kaiser" }},
		{"unknown backend", func(c *Config) { c.Backend = "fftw" }},
		{"zero fan-out", func(c *Config) { c.FanOut = 0 }},
		{"inverted delta", func(c *Config) { c.MinDeltaFrames, c.MaxDeltaFrames = 10, 5 }},
		{"inverted freq delta", func(c *Config) { c.MinFreqDelta, c.MaxFreqDelta = 20, 10 }},
		{"negative freq delta", func(c *Config) { c.MinFreqDelta = -1 }},
		{"bits overflow", func(c *Config) { c.FreqBits = 12; c.DeltaBits = 10 }},
		{"delta does not fit", func(c *Config) { c.DeltaBits = 6; c.MaxDeltaFrames = 64 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			if err := cfg.Validate(); !errors.Is(err, model.ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}
