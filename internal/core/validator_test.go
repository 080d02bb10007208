package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateConfig_Default(t *testing.T) {
	res := ValidateConfig(DefaultProcessingConfig())
	assert.True(t, res.IsValid)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Warnings)
}

func TestValidateConfig_RuleDurationOnlyCheckedWhenActive(t *testing.T) {
	cfg := DefaultProcessingConfig()
	cfg.AutomaticDurationRules = []DurationRule{{ID: "zero", Keywords: "x", Duration: 0, Priority: 1, Active: true}}

	res := ValidateConfig(cfg)
	assert.False(t, res.IsValid)
	assert.Equal(t, []string{`rule "zero": duration must be greater than 0`}, res.Errors)

	cfg.AutomaticDurationRules[0].Active = false
	res = ValidateConfig(cfg)
	assert.True(t, res.IsValid)
	assert.Empty(t, res.Errors)
}

func TestValidateConfig_RuleDurationIgnoredOutsideAutomatic(t *testing.T) {
	cfg := DefaultProcessingConfig()
	cfg.AppointmentDurationMode = ModeFixed
	cfg.AutomaticDurationRules = []DurationRule{{Keywords: "x", Duration: 0, Priority: 1, Active: true}}

	assert.True(t, ValidateConfig(cfg).IsValid)
}

func TestValidateConfig_DuplicatePriorityWarns(t *testing.T) {
	cfg := DefaultProcessingConfig()
	cfg.AutomaticDurationRules = []DurationRule{
		{ID: "a", Keywords: "a", Duration: 15, Priority: 1, Active: true},
		{ID: "b", Keywords: "b", Duration: 30, Priority: 1, Active: true},
		{ID: "c", Keywords: "c", Duration: 45, Priority: 1, Active: false},
	}

	res := ValidateConfig(cfg)
	assert.True(t, res.IsValid)
	assert.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], `"a", "b"`)
	assert.Contains(t, res.Warnings[0], "priority 1")
}

func TestValidateConfig_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*EmailProcessingConfig)
		errors []string
	}{
		{"default duration", func(c *EmailProcessingConfig) { c.DefaultAppointmentDuration = 0 }, []string{"defaultAppointmentDuration must be greater than 0"}},
		{"fallback duration", func(c *EmailProcessingConfig) { c.FallbackDuration = -5 }, []string{"fallbackDuration must be greater than 0"}},
		{"threshold above one", func(c *EmailProcessingConfig) { c.ConfidenceThreshold = 1.5 }, []string{"confidenceThreshold must be between 0 and 1"}},
		{"negative threshold", func(c *EmailProcessingConfig) { c.ConfidenceThreshold = -0.1 }, []string{"confidenceThreshold must be between 0 and 1"}},
		{"NaN threshold", func(c *EmailProcessingConfig) { c.ConfidenceThreshold = math.NaN() }, []string{"confidenceThreshold must be between 0 and 1"}},
		{"both durations", func(c *EmailProcessingConfig) {
			c.DefaultAppointmentDuration = 0
			c.FallbackDuration = 0
		}, []string{"defaultAppointmentDuration must be greater than 0", "fallbackDuration must be greater than 0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultProcessingConfig()
			tt.mutate(&cfg)
			res := ValidateConfig(cfg)
			assert.False(t, res.IsValid)
			assert.Equal(t, tt.errors, res.Errors)
		})
	}
}

func TestValidateConfig_ThresholdBounds(t *testing.T) {
	for _, threshold := range []float64{0, 0.5, 0.9, 1} {
		cfg := DefaultProcessingConfig()
		cfg.ConfidenceThreshold = threshold
		assert.True(t, ValidateConfig(cfg).IsValid, "threshold %v", threshold)
	}

	cfg := DefaultProcessingConfig()
	cfg.ConfidenceThreshold = 0.95
	res := ValidateConfig(cfg)
	assert.True(t, res.IsValid)
	assert.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "very high")
}

func TestValidateConfig_Warnings(t *testing.T) {
	cfg := DefaultProcessingConfig()
	cfg.AutomaticDurationRules = []DurationRule{{ID: "blank", Keywords: " | ", Duration: 30, Priority: 1, Active: true}}
	res := ValidateConfig(cfg)
	assert.True(t, res.IsValid)
	assert.Equal(t, []string{`rule "blank" has no keywords and will never match`}, res.Warnings)

	cfg = DefaultProcessingConfig()
	cfg.AutomaticDurationRules = nil
	cfg.EnableAIAnalysis = false
	res = ValidateConfig(cfg)
	assert.True(t, res.IsValid)
	assert.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "no active rules")

	cfg = DefaultProcessingConfig()
	cfg.AppointmentDurationMode = "monthly"
	res = ValidateConfig(cfg)
	assert.True(t, res.IsValid)
	assert.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], `"monthly"`)
}
