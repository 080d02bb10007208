package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/calendaria/duration-engine/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())

	assert.Equal(t, "openai", cfg.GetLLM().Provider)

	engine, err := cfg.GetEngine()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, engine.AnalysisTimeout)
	assert.Equal(t, 10, engine.BatchSize)

	store, err := cfg.GetStore()
	require.NoError(t, err)
	assert.Equal(t, "memory", store.Type)
	assert.Equal(t, 720*time.Hour, store.Retention)

	processing, err := cfg.GetProcessing()
	require.NoError(t, err)
	assert.Equal(t, core.ModeAutomatic, processing.AppointmentDurationMode)
	assert.Equal(t, 30, processing.FallbackDuration)
	assert.InDelta(t, 0.7, processing.ConfidenceThreshold, 1e-9)
	assert.Len(t, processing.AutomaticDurationRules, 3)
	assert.True(t, core.ValidateConfig(processing).IsValid)
}

func TestNewFromFileReadsRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
llm:
  provider: gemini
processing:
  appointment_duration_mode: automatic
  fallback_duration: 45
  confidence_threshold: 0.8
  automatic_duration_rules:
    - id: massage
      keywords: "massage|masaje"
      duration: 90
      priority: 4
      active: true
      category: wellness
    - id: cleaning
      keywords: "cleaning"
      duration: 40
      priority: 2
      active: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := NewFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.GetLLM().Provider)

	processing, err := cfg.GetProcessing()
	require.NoError(t, err)
	assert.Equal(t, 45, processing.FallbackDuration)
	assert.Equal(t, 30, processing.DefaultAppointmentDuration)
	require.Len(t, processing.AutomaticDurationRules, 2)
	assert.Equal(t, core.DurationRule{
		ID:       "massage",
		Keywords: "massage|masaje",
		Duration: 90,
		Priority: 4,
		Active:   true,
		Category: "wellness",
	}, processing.AutomaticDurationRules[0])
	assert.False(t, processing.AutomaticDurationRules[1].Active)
}

func TestNewFromFileMissing(t *testing.T) {
	_, err := NewFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestInvalidDuration(t *testing.T) {
	v := NewEmptyViper()
	v.Set("engine.analysis_timeout", "soon")
	_, err := NewFromViper(v).GetEngine()
	assert.Error(t, err)
}
